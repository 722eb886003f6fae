package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ImportJSON 将 JSON 导出文件导入到存储
// ImportJSON loads a JSON export of the form {"<collection>": [ {...}, ... ]}
// into the store. Each object must carry "id"; "ownerId" becomes the owner
// column. Documents that already exist are skipped, so re-running an import
// is harmless.
func ImportJSON(ctx context.Context, path string, store Store) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read import file: %w", err)
	}

	var export map[string][]map[string]any
	if err := json.Unmarshal(data, &export); err != nil {
		return 0, fmt.Errorf("parse import file %q: %w", path, err)
	}

	imported := 0
	for _, collection := range Collections() {
		for _, raw := range export[collection] {
			id, _ := raw["id"].(string)
			id = strings.TrimSpace(id)
			if id == "" {
				fmt.Fprintf(os.Stderr, "skip import %s: document without id\n", collection)
				continue
			}

			owner, _ := raw["ownerId"].(string)
			// 检查是否已存在 / Check if already imported
			if _, err := store.Get(ctx, collection, owner, id); err == nil {
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return imported, err
			}

			key, _ := raw["key"].(string)
			delete(raw, "id")
			delete(raw, "key")
			body, err := json.Marshal(raw)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skip import %s/%s: %v\n", collection, id, err)
				continue
			}
			if _, err := store.Insert(ctx, Document{
				Collection: collection,
				ID:         id,
				OwnerID:    owner,
				Key:        key,
				Body:       body,
			}); err != nil {
				fmt.Fprintf(os.Stderr, "import %s/%s failed: %v\n", collection, id, err)
				continue
			}
			imported++
		}
	}
	return imported, nil
}
