package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"huddle/internal/storage"
)

// Repo 基于文档存储的实体读写
// Repo reads and writes entities on top of the document store
type Repo struct {
	store storage.Store
	now   func() time.Time
}

// NewRepo creates a Repo. A nil now defaults to time.Now.
func NewRepo(store storage.Store, now func() time.Time) *Repo {
	if now == nil {
		now = time.Now
	}
	return &Repo{store: store, now: now}
}

// Store exposes the underlying document store.
func (r *Repo) Store() storage.Store {
	return r.store
}

// --- Queries ---

// ListRocks 返回未归档的 Rock / ListRocks returns non-archived rocks
func (r *Repo) ListRocks(ctx context.Context, owner Owner) ([]Rock, error) {
	docs, err := r.active(ctx, storage.CollectionRocks, owner)
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(v *Rock, id string) { v.ID = id })
}

// ListTodos 返回未归档的 To-Do / ListTodos returns non-archived todos
func (r *Repo) ListTodos(ctx context.Context, owner Owner) ([]Todo, error) {
	docs, err := r.active(ctx, storage.CollectionTodos, owner)
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(v *Todo, id string) { v.ID = id })
}

// ListIssues 返回未归档的 Issue / ListIssues returns non-archived issues
func (r *Repo) ListIssues(ctx context.Context, owner Owner) ([]Issue, error) {
	docs, err := r.active(ctx, storage.CollectionIssues, owner)
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(v *Issue, id string) { v.ID = id })
}

// LatestQualityOfLife 返回最近一次评分，按 date 排序
// LatestQualityOfLife returns the most recent check-in by date
func (r *Repo) LatestQualityOfLife(ctx context.Context, owner Owner) (QualityOfLife, bool, error) {
	docs, err := r.store.Query(ctx, storage.Query{
		Collection: storage.CollectionQualityOfLife,
		OwnerID:    owner.ID,
		OrderBy:    "date",
		Desc:       true,
		Limit:      1,
	})
	if err != nil {
		return QualityOfLife{}, false, fmt.Errorf("query quality of life: %w", err)
	}
	if len(docs) == 0 {
		return QualityOfLife{}, false, nil
	}
	out, err := decode(docs[0], func(v *QualityOfLife, id string) { v.ID = id })
	if err != nil {
		return QualityOfLife{}, false, err
	}
	return out, true, nil
}

func (r *Repo) GetRock(ctx context.Context, owner Owner, id string) (Rock, error) {
	doc, err := r.store.Get(ctx, storage.CollectionRocks, owner.ID, id)
	if err != nil {
		return Rock{}, err
	}
	return decode(doc, func(v *Rock, id string) { v.ID = id })
}

func (r *Repo) GetTodo(ctx context.Context, owner Owner, id string) (Todo, error) {
	doc, err := r.store.Get(ctx, storage.CollectionTodos, owner.ID, id)
	if err != nil {
		return Todo{}, err
	}
	return decode(doc, func(v *Todo, id string) { v.ID = id })
}

// --- Writes ---

func (r *Repo) CreateRock(ctx context.Context, owner Owner, rock Rock) (Rock, error) {
	rock.OwnerID = owner.ID
	if rock.Status == "" {
		rock.Status = RockOnTrack
	}
	id, err := r.insert(ctx, storage.CollectionRocks, owner, rock)
	rock.ID = id
	return rock, err
}

func (r *Repo) CreateTodo(ctx context.Context, owner Owner, todo Todo) (Todo, error) {
	todo.OwnerID = owner.ID
	if todo.Status == "" {
		todo.Status = TodoNew
	}
	id, err := r.insert(ctx, storage.CollectionTodos, owner, todo)
	todo.ID = id
	return todo, err
}

// CreateIssue 插入 Issue，缺省字段按手动创建填充
// CreateIssue inserts an issue, defaulting fields for a manual entry
func (r *Repo) CreateIssue(ctx context.Context, owner Owner, issue Issue) (Issue, error) {
	issue.OwnerID = owner.ID
	if issue.Status == "" {
		issue.Status = IssueOpen
	}
	if issue.Priority == "" {
		issue.Priority = PriorityMedium
	}
	if issue.Source == "" {
		issue.Source = SourceManual
	}
	if issue.CreatedBy == "" {
		issue.CreatedBy = owner.ID
		issue.CreatedByName = owner.DisplayName
	}
	id, err := r.insert(ctx, storage.CollectionIssues, owner, issue)
	issue.ID = id
	return issue, err
}

func (r *Repo) CreateQualityOfLife(ctx context.Context, owner Owner, qol QualityOfLife) (QualityOfLife, error) {
	qol.OwnerID = owner.ID
	if qol.Date == "" {
		qol.Date = r.now().Format(time.DateOnly)
	}
	id, err := r.insert(ctx, storage.CollectionQualityOfLife, owner, qol)
	qol.ID = id
	return qol, err
}

// Archive 归档记录，会议查询将不再返回它
// Archive hides one of the owner's records from every meeting query
func (r *Repo) Archive(ctx context.Context, owner Owner, collection, id string) error {
	return r.store.Update(ctx, collection, owner.ID, id, map[string]any{
		"status":    StatusArchived,
		"updatedAt": r.now().UTC(),
	})
}

// --- Helpers ---

func (r *Repo) active(ctx context.Context, collection string, owner Owner) ([]storage.Document, error) {
	docs, err := r.store.Query(ctx, storage.Query{
		Collection:    collection,
		OwnerID:       owner.ID,
		ExcludeStatus: StatusArchived,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return docs, nil
}

func (r *Repo) insert(ctx context.Context, collection string, owner Owner, v any) (string, error) {
	if !owner.Valid() {
		return "", fmt.Errorf("create %s: owner is empty", collection)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", collection, err)
	}
	doc, err := r.store.Insert(ctx, storage.Document{
		Collection: collection,
		OwnerID:    owner.ID,
		Body:       body,
	})
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

func decode[T any](doc storage.Document, setID func(*T, string)) (T, error) {
	var out T
	if err := json.Unmarshal(doc.Body, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", doc.Collection, doc.ID, err)
	}
	setID(&out, doc.ID)
	return out, nil
}

func decodeAll[T any](docs []storage.Document, setID func(*T, string)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode(doc, setID)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Kind 将集合名映射为单数显示名 / Kind maps a collection to its singular label
func Kind(collection string) string {
	switch collection {
	case storage.CollectionRocks:
		return "rock"
	case storage.CollectionTodos:
		return "todo"
	case storage.CollectionIssues:
		return "issue"
	default:
		return strings.TrimSuffix(collection, "s")
	}
}

// CollectionFor 将单数名称映射回集合 / CollectionFor maps a singular kind to its collection
func CollectionFor(kind string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "rock", "rocks":
		return storage.CollectionRocks, true
	case "todo", "todos", "to-do":
		return storage.CollectionTodos, true
	case "issue", "issues":
		return storage.CollectionIssues, true
	}
	return "", false
}
