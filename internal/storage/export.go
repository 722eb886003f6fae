package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// 导出格式 / Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Exporter 将集合导出为文件
// Exporter writes the documents of a collection to a directory
type Exporter struct {
	dir    string
	format string
}

// NewExporter 创建导出器，format 为 json 或 yaml
// NewExporter creates an exporter; format is json or yaml
func NewExporter(dir, format string) (*Exporter, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("export dir is empty")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	return &Exporter{dir: dir, format: format}, nil
}

// Export 写出一个集合：每个文档一个文件，另加一个 .jsonl 流水
// Export writes one file per document plus a <collection>.jsonl log, and
// returns the number of documents written.
func (e *Exporter) Export(ctx context.Context, store Store, collection, ownerID string) (int, error) {
	docs, err := store.Query(ctx, Query{Collection: collection, OwnerID: ownerID})
	if err != nil {
		return 0, err
	}
	collectionDir := filepath.Join(e.dir, collection)
	if err := os.MkdirAll(collectionDir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir %s: %w", collectionDir, err)
	}

	for _, doc := range docs {
		record, err := exportRecord(doc)
		if err != nil {
			return 0, err
		}
		path := filepath.Join(collectionDir, doc.ID+"."+e.format)
		switch e.format {
		case FormatYAML:
			err = writeYAMLFile(path, record)
		default:
			err = writeJSONFile(path, record)
		}
		if err != nil {
			return 0, err
		}
	}
	if err := writeDocumentLog(filepath.Join(e.dir, collection+".jsonl"), docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func exportRecord(doc Document) (map[string]any, error) {
	record := map[string]any{}
	if err := json.Unmarshal(doc.Body, &record); err != nil {
		return nil, fmt.Errorf("parse %s/%s body: %w", doc.Collection, doc.ID, err)
	}
	record["id"] = doc.ID
	if doc.Key != "" {
		record["key"] = doc.Key
	}
	return record, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeYAMLFile(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeDocumentLog(path string, docs []Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for i, doc := range docs {
		record := map[string]any{
			"collection": doc.Collection,
			"index":      i,
			"id":         doc.ID,
			"owner_id":   doc.OwnerID,
			"body":       doc.Body,
			"created_at": formatTime(doc.CreatedAt),
			"updated_at": formatTime(doc.UpdatedAt),
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
