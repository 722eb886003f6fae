package syncer

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCollection 集合不支持状态同步 / the collection has no status to sync
var ErrUnsupportedCollection = errors.New("collection does not support status sync")

// ErrNoOwner 缺少所有者 / the caller passed an owner without an id
var ErrNoOwner = errors.New("owner is required")

// SyncError 可恢复的同步失败，本地状态保持不变
// SyncError is a recoverable sync failure; local state stays optimistic
type SyncError struct {
	Collection string
	EntityID   string
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s/%s: %v", e.Collection, e.EntityID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsSyncError reports whether err carries a *SyncError.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}
