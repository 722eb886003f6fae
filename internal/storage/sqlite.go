package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的文档存储
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db    *sql.DB
	path  string
	now   func() time.Time
	newID func() string
}

// Option 定制 SQLiteStore / Option customizes a SQLiteStore
type Option func(*SQLiteStore)

// WithClock 注入时间源（测试用）/ WithClock injects a time source (for tests)
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator 注入 ID 生成器 / WithIDGenerator injects the ID generator
func WithIDGenerator(newID func() string) Option {
	return func(s *SQLiteStore) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath, now: time.Now, newID: NewID}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		owner_id   TEXT NOT NULL DEFAULT '',
		doc_key    TEXT,
		body       TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY(collection, id),
		UNIQUE(collection, owner_id, doc_key)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(collection, owner_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path 返回数据库文件路径 / Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Write Operations ---

func (s *SQLiteStore) Insert(ctx context.Context, doc Document) (Document, error) {
	doc, err := s.prepare(doc)
	if err != nil {
		return Document{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, owner_id, doc_key, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.Collection, doc.ID, doc.OwnerID, nullableKey(doc.Key), string(doc.Body),
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return Document{}, fmt.Errorf("insert %s: %w", doc.Collection, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, doc Document) (Document, bool, error) {
	if strings.TrimSpace(doc.Key) == "" {
		return Document{}, false, fmt.Errorf("upsert %s: key is empty", doc.Collection)
	}
	doc, err := s.prepare(doc)
	if err != nil {
		return Document{}, false, err
	}

	// 冲突时整体覆盖 body，后写入者胜出
	// On conflict the body is overwritten wholesale; the last writer wins
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, owner_id, doc_key, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, owner_id, doc_key) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
		RETURNING id, created_at`,
		doc.Collection, doc.ID, doc.OwnerID, doc.Key, string(doc.Body),
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt),
	)
	proposedID := doc.ID
	var createdAt string
	if err := row.Scan(&doc.ID, &createdAt); err != nil {
		return Document{}, false, fmt.Errorf("upsert %s: %w", doc.Collection, err)
	}
	doc.CreatedAt = parseTime(createdAt)
	return doc, doc.ID == proposedID, nil
}

func (s *SQLiteStore) Update(ctx context.Context, collection, ownerID, id string, fields map[string]any) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("update %s: id is empty", collection)
	}
	if len(fields) == 0 {
		return nil
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal %s patch: %w", collection, err)
	}
	// json_patch 只覆盖给定键，重复调用结果一致
	// json_patch overwrites only the given keys, so repeated calls converge
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET body = json_patch(body, ?), updated_at = ?
		WHERE collection = ? AND owner_id = ? AND id = ?`,
		string(patch), formatTime(s.now()), collection, ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection=? AND owner_id=? AND id=?", collection, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// --- Read Operations ---

func (s *SQLiteStore) Get(ctx context.Context, collection, ownerID, id string) (Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, fmt.Errorf("get %s: id is empty", collection)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, id, owner_id, doc_key, body, created_at, updated_at
		FROM documents WHERE collection=? AND owner_id=? AND id=?`, collection, ownerID, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
		}
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if strings.TrimSpace(q.Collection) == "" {
		return nil, fmt.Errorf("query: collection is empty")
	}
	var (
		clauses = []string{"collection = ?"}
		args    = []any{q.Collection}
	)
	if q.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.Key != "" {
		clauses = append(clauses, "doc_key = ?")
		args = append(args, q.Key)
	}
	if q.ExcludeStatus != "" {
		clauses = append(clauses, "(json_extract(body, '$.status') IS NULL OR json_extract(body, '$.status') != ?)")
		args = append(args, q.ExcludeStatus)
	}

	order := "created_at"
	if q.OrderBy != "" {
		if !validField(q.OrderBy) {
			return nil, fmt.Errorf("query: invalid order field %q", q.OrderBy)
		}
		order = "json_extract(body, '$." + q.OrderBy + "')"
	}
	direction := "ASC"
	if q.Desc {
		direction = "DESC"
	}

	stmt := `SELECT collection, id, owner_id, doc_key, body, created_at, updated_at
		FROM documents WHERE ` + strings.Join(clauses, " AND ") +
		" ORDER BY " + order + " " + direction + ", created_at " + direction + ", id " + direction
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// --- Helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc       Document
		key       sql.NullString
		body      string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&doc.Collection, &doc.ID, &doc.OwnerID, &key, &body, &createdAt, &updatedAt); err != nil {
		return Document{}, err
	}
	doc.Key = key.String
	doc.Body = json.RawMessage(body)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return doc, nil
}

func (s *SQLiteStore) prepare(doc Document) (Document, error) {
	doc.Collection = strings.TrimSpace(doc.Collection)
	if doc.Collection == "" {
		return Document{}, fmt.Errorf("collection is empty")
	}
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = s.newID()
	}
	if len(doc.Body) == 0 {
		doc.Body = json.RawMessage("{}")
	}
	if !json.Valid(doc.Body) {
		return Document{}, fmt.Errorf("%s body is not valid JSON", doc.Collection)
	}
	now := s.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	return doc, nil
}

func nullableKey(key string) any {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return key
}

func validField(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return name != ""
}

// 定宽格式保证字符串排序与时间顺序一致
// Fixed-width layout keeps lexical order equal to chronological order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err == nil {
		return t
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
