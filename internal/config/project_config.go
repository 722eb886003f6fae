package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// InitProjectConfigScaffold 在目录下初始化项目级配置模板（./.huddle/config.json）
// InitProjectConfigScaffold writes a project config scaffold (./.huddle/config.json)
// under projectDir unless one already exists. It reports whether a file was written.
func InitProjectConfigScaffold(projectDir string) (bool, error) {
	dir := filepath.Join(strings.TrimSpace(projectDir), ".huddle")
	path := filepath.Join(dir, "config.json")

	// 已有配置则保留 / keep an existing config
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return false, fmt.Errorf("project config path is a directory: %s", path)
		}
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat project config: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("mkdir .huddle: %w", err)
	}

	cfg := Default()
	cfg.Recap.APIKey = ""
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write project config: %w", err)
	}
	return true, nil
}

// WriteOwner 将 owner.id / owner.display_name 写入项目配置，其他键保持不变
// WriteOwner writes owner.id and owner.display_name to ./.huddle/config.json,
// keeping every other key; creates the directory if needed
func WriteOwner(projectDir, id, name string) error {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" && name == "" {
		return errors.New("owner id and name are empty")
	}
	dir := filepath.Join(strings.TrimSpace(projectDir), ".huddle")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir .huddle: %w", err)
	}
	path := filepath.Join(dir, "config.json")
	var out map[string]any
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(jsonc.ToJSON(data), &out); err != nil {
			out = nil
		}
	}
	if out == nil {
		out = make(map[string]any)
	}
	ownerMap, _ := out["owner"].(map[string]any)
	if ownerMap == nil {
		ownerMap = make(map[string]any)
	}
	if id != "" {
		ownerMap["id"] = id
	}
	if name != "" {
		ownerMap["display_name"] = name
	}
	out["owner"] = ownerMap
	data, err = json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
