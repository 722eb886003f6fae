// Package syncer 将会议中的状态修改同步到 Rock/To-Do/Issue 集合
// Package syncer pushes meeting-local status changes for rocks, todos and
// issues into the entity store and derives issues from off-track rocks.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"huddle/internal/entities"
	"huddle/internal/storage"
)

const defaultConcurrency = 4

// StatusFields 会议可写的字段集 / StatusFields is the field set the meeting may write.
// Status uses the meeting's local vocabulary. Note, when non-nil, lands in
// "comment" for rocks and "notes" for todos and issues.
type StatusFields struct {
	Status string
	Note   *string
}

// NoteOf returns a pointer to s for StatusFields.Note.
func NoteOf(s string) *string {
	return &s
}

// Result 一次同步的结果 / Result of one status sync
type Result struct {
	Collection   string
	EntityID     string
	StoredStatus string
	// DerivedIssue 新建的派生 Issue，已存在或未派生时为 nil
	// DerivedIssue is set only when this sync created a derived issue
	DerivedIssue *entities.Issue
}

// Adapter 状态同步适配器 / Adapter translates and writes status changes
type Adapter struct {
	store       storage.Store
	deriver     *Deriver
	now         func() time.Time
	logger      *slog.Logger
	concurrency int
}

// Option 定制 Adapter / Option customizes an Adapter
type Option func(*Adapter)

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithConcurrency 限制 SyncBatch 的并发数 / bounds SyncBatch fan-out
func WithConcurrency(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAdapter creates an Adapter. deriver may be nil to disable derivation.
func NewAdapter(store storage.Store, deriver *Deriver, opts ...Option) *Adapter {
	a := &Adapter{
		store:       store,
		deriver:     deriver,
		now:         time.Now,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Deriver returns the issue deriver, or nil when derivation is disabled.
func (a *Adapter) Deriver() *Deriver {
	return a.deriver
}

// SyncStatus 只写入状态字段和时间戳，不触碰标题、描述等字段
// SyncStatus writes status, the note field and timestamps for one entity and
// nothing else. Failures come back as *SyncError. A rock moving to off-track
// triggers issue derivation; derivation failures are logged, never returned.
func (a *Adapter) SyncStatus(ctx context.Context, owner entities.Owner, collection, id string, fields StatusFields) (Result, error) {
	result := Result{Collection: collection, EntityID: id}
	if !owner.Valid() {
		return result, &SyncError{Collection: collection, EntityID: id, Err: ErrNoOwner}
	}
	if !Syncable(collection) {
		return result, &SyncError{Collection: collection, EntityID: id, Err: ErrUnsupportedCollection}
	}
	stored, err := ToStore(collection, fields.Status)
	if err != nil {
		return result, &SyncError{Collection: collection, EntityID: id, Err: err}
	}
	result.StoredStatus = stored

	now := a.now().UTC()
	update := map[string]any{
		"status":    stored,
		"updatedAt": now,
	}
	if collection != storage.CollectionIssues {
		update["statusChangedAt"] = now
	}
	if fields.Note != nil {
		update[noteField(collection)] = *fields.Note
	}
	if err := a.store.Update(ctx, collection, owner.ID, id, update); err != nil {
		a.logger.Warn("status sync failed", "collection", collection, "id", id, "err", err)
		return result, &SyncError{Collection: collection, EntityID: id, Err: err}
	}
	a.logger.Debug("status synced", "collection", collection, "id", id, "status", stored)

	if collection == storage.CollectionRocks && stored == entities.RockOffTrack {
		if issue, ok := a.derive(ctx, owner, id); ok {
			result.DerivedIssue = &issue
		}
	}
	return result, nil
}

func (a *Adapter) derive(ctx context.Context, owner entities.Owner, rockID string) (entities.Issue, bool) {
	if a.deriver == nil {
		return entities.Issue{}, false
	}
	var title, description string
	if doc, err := a.store.Get(ctx, storage.CollectionRocks, owner.ID, rockID); errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("rock not owned, skipping derivation", "id", rockID, "owner", owner.ID)
		return entities.Issue{}, false
	} else if err != nil {
		a.logger.Warn("read rock for derivation failed", "id", rockID, "err", err)
	} else {
		var rock entities.Rock
		if err := json.Unmarshal(doc.Body, &rock); err == nil {
			title, description = rock.Title, rock.Description
		}
	}
	issue, created, err := a.deriver.EnsureIssueForOffTrackRock(ctx, owner, rockID, title, description)
	if err != nil {
		a.logger.Error("issue derivation failed", "rock", rockID, "err", err)
		return entities.Issue{}, false
	}
	return issue, created
}

// Change 批量同步中的一项 / Change is one entry of a batch sync
type Change struct {
	Collection string
	EntityID   string
	Fields     StatusFields
}

// Outcome 批量同步中一项的结果 / Outcome of one batch entry
type Outcome struct {
	Change Change
	Result Result
	Err    error
}

// SyncBatch 以有限并发执行多次 SyncStatus，逐项报告结果，单项失败不影响其他项
// SyncBatch runs SyncStatus for every change with bounded concurrency.
// Outcomes keep the input order; one failure never cancels the others.
func (a *Adapter) SyncBatch(ctx context.Context, owner entities.Owner, changes []Change) []Outcome {
	outcomes := make([]Outcome, len(changes))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, change := range changes {
		g.Go(func() error {
			res, err := a.SyncStatus(ctx, owner, change.Collection, change.EntityID, change.Fields)
			outcomes[i] = Outcome{Change: change, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func noteField(collection string) string {
	if collection == storage.CollectionRocks {
		return "comment"
	}
	return "notes"
}
