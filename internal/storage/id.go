package storage

import "github.com/google/uuid"

// NewID 生成新的文档 ID / NewID generates a new document ID
func NewID() string {
	return uuid.NewString()
}
