package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound 记录不存在 / ErrNotFound indicates a requested document is missing
var ErrNotFound = errors.New("document not found")

// 集合名称 / Collection names
const (
	CollectionRocks         = "rocks"
	CollectionTodos         = "todos"
	CollectionIssues        = "issues"
	CollectionQualityOfLife = "qualityOfLife"
	CollectionMeetings      = "meetings"
	CollectionMeetingSteps  = "meetingSteps"
)

// Collections 返回所有已知集合 / Collections lists every known collection
func Collections() []string {
	return []string{
		CollectionRocks,
		CollectionTodos,
		CollectionIssues,
		CollectionQualityOfLife,
		CollectionMeetings,
		CollectionMeetingSteps,
	}
}

// Document 文档记录，Body 对存储层不透明
// Document is a stored record; Body is opaque JSON to the store
type Document struct {
	Collection string
	ID         string
	OwnerID    string
	// Key 可选的自然键，(Collection, OwnerID, Key) 唯一
	// Key is an optional natural key, unique per (Collection, OwnerID)
	Key       string
	Body      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Query 按所有者查询文档 / Query selects documents of one collection
type Query struct {
	Collection string
	OwnerID    string
	Key        string
	// ExcludeStatus 过滤 body.status 等于该值的文档
	// ExcludeStatus drops documents whose body.status equals the value
	ExcludeStatus string
	// OrderBy 按 body 顶层字段排序，空则按创建时间
	// OrderBy sorts by a top-level body field; empty sorts by creation time
	OrderBy string
	Desc    bool
	Limit   int
}

// Store 文档持久化接口
// Store is the document persistence interface
type Store interface {
	Insert(ctx context.Context, doc Document) (Document, error)
	// Upsert 按 Key 插入或覆盖，返回是否新建
	// Upsert inserts or overwrites by Key and reports whether a row was created
	Upsert(ctx context.Context, doc Document) (Document, bool, error)
	// Update 只合并给定字段，其他字段保持不变
	// Update merges only the given fields into the stored body. Update, Get
	// and Delete are scoped to ownerID; another owner's document reads as
	// ErrNotFound.
	Update(ctx context.Context, collection, ownerID, id string, fields map[string]any) error
	Get(ctx context.Context, collection, ownerID, id string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Delete(ctx context.Context, collection, ownerID, id string) error
	Close() error
}
