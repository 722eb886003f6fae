package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tidwall/jsonc"

	"huddle/internal/i18n"
)

type OwnerConfig struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	// User1Name/User2Name 会议中两位伙伴的称呼 / labels for the two partners
	User1Name string `json:"user1_name"`
	User2Name string `json:"user2_name"`
}

type MeetingConfig struct {
	TickIntervalMS  int `json:"tick_interval_ms"`
	SyncConcurrency int `json:"sync_concurrency"`
	SaveTimeoutMS   int `json:"save_timeout_ms"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir"`
	DBFile  string `json:"db_file"`
}

type RecapConfig struct {
	Enabled           bool   `json:"enabled"`
	BaseURL           string `json:"base_url"`
	Model             string `json:"model"`
	APIKey            string `json:"api_key"`
	TimeoutMS         int    `json:"timeout_ms"`
	PromptTokenBudget int    `json:"prompt_token_budget"`
}

type UIConfig struct {
	Locale string `json:"locale"`
	// Mode "tui" 或 "line" / Mode is "tui" or "line"
	Mode string `json:"mode"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type Config struct {
	Owner   OwnerConfig   `json:"owner"`
	Meeting MeetingConfig `json:"meeting"`
	Storage StorageConfig `json:"storage"`
	Recap   RecapConfig   `json:"recap"`
	UI      UIConfig      `json:"ui"`
	Log     LogConfig     `json:"log"`
}

type fileRecapConfig struct {
	Enabled           *bool   `json:"enabled"`
	BaseURL           *string `json:"base_url"`
	Model             *string `json:"model"`
	APIKey            *string `json:"api_key"`
	TimeoutMS         *int    `json:"timeout_ms"`
	PromptTokenBudget *int    `json:"prompt_token_budget"`
}

type fileConfig struct {
	Owner   *OwnerConfig     `json:"owner"`
	Meeting *MeetingConfig   `json:"meeting"`
	Storage *StorageConfig   `json:"storage"`
	Recap   *fileRecapConfig `json:"recap"`
	UI      *UIConfig        `json:"ui"`
	Log     *LogConfig       `json:"log"`
}

// envConfig HUDDLE_* 环境变量覆盖 / envConfig holds HUDDLE_* overrides
type envConfig struct {
	OwnerID      string `env:"HUDDLE_OWNER_ID"`
	OwnerName    string `env:"HUDDLE_OWNER_NAME"`
	BaseDir      string `env:"HUDDLE_HOME"`
	DBFile       string `env:"HUDDLE_DB_FILE"`
	TickMS       int    `env:"HUDDLE_TICK_MS"`
	RecapEnabled *bool  `env:"HUDDLE_RECAP_ENABLED"`
	RecapBaseURL string `env:"HUDDLE_RECAP_BASE_URL"`
	RecapModel   string `env:"HUDDLE_RECAP_MODEL"`
	RecapAPIKey  string `env:"HUDDLE_RECAP_API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	Locale       string `env:"HUDDLE_LOCALE"`
	UIMode       string `env:"HUDDLE_UI"`
	LogLevel     string `env:"HUDDLE_LOG_LEVEL"`
}

func Default() Config {
	return Config{
		Owner: OwnerConfig{
			User1Name: "Partner 1",
			User2Name: "Partner 2",
		},
		Meeting: MeetingConfig{
			TickIntervalMS:  DefaultTickIntervalMS,
			SyncConcurrency: DefaultSyncConcurrency,
			SaveTimeoutMS:   DefaultSaveTimeoutMS,
		},
		Storage: StorageConfig{
			BaseDir: "~/.huddle",
			DBFile:  "huddle.db",
		},
		Recap: RecapConfig{
			Enabled:           false,
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			TimeoutMS:         60000,
			PromptTokenBudget: DefaultPromptTokenBudget,
		},
		UI: UIConfig{
			// 空值表示跟随系统 / empty follows LC_ALL, LC_MESSAGES, LANG
			Locale: "",
			Mode:   "tui",
		},
		Log: LogConfig{Level: "info"},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("HUDDLE_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DBPath 数据库文件的绝对路径 / DBPath is the absolute SQLite file path
func (c Config) DBPath() string {
	if filepath.IsAbs(c.Storage.DBFile) {
		return c.Storage.DBFile
	}
	return filepath.Join(c.Storage.BaseDir, c.Storage.DBFile)
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Meeting.TickIntervalMS) * time.Millisecond
}

func (c Config) SaveTimeout() time.Duration {
	return time.Duration(c.Meeting.SaveTimeoutMS) * time.Millisecond
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".huddle", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"huddle.config.json",
		".huddle/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Owner != nil {
		cfg.Owner = mergeOwner(cfg.Owner, *fc.Owner)
	}
	if fc.Meeting != nil {
		cfg.Meeting = mergeMeeting(cfg.Meeting, *fc.Meeting)
	}
	if fc.Storage != nil {
		if strings.TrimSpace(fc.Storage.BaseDir) != "" {
			cfg.Storage.BaseDir = fc.Storage.BaseDir
		}
		if strings.TrimSpace(fc.Storage.DBFile) != "" {
			cfg.Storage.DBFile = fc.Storage.DBFile
		}
	}
	if fc.Recap != nil {
		if fc.Recap.Enabled != nil {
			cfg.Recap.Enabled = *fc.Recap.Enabled
		}
		if fc.Recap.BaseURL != nil {
			cfg.Recap.BaseURL = *fc.Recap.BaseURL
		}
		if fc.Recap.Model != nil {
			cfg.Recap.Model = *fc.Recap.Model
		}
		if fc.Recap.APIKey != nil {
			cfg.Recap.APIKey = *fc.Recap.APIKey
		}
		if fc.Recap.TimeoutMS != nil {
			cfg.Recap.TimeoutMS = *fc.Recap.TimeoutMS
		}
		if fc.Recap.PromptTokenBudget != nil {
			cfg.Recap.PromptTokenBudget = *fc.Recap.PromptTokenBudget
		}
	}
	if fc.UI != nil {
		if strings.TrimSpace(fc.UI.Locale) != "" {
			cfg.UI.Locale = fc.UI.Locale
		}
		if strings.TrimSpace(fc.UI.Mode) != "" {
			cfg.UI.Mode = fc.UI.Mode
		}
	}
	if fc.Log != nil && strings.TrimSpace(fc.Log.Level) != "" {
		cfg.Log.Level = fc.Log.Level
	}
}

func mergeOwner(base OwnerConfig, override OwnerConfig) OwnerConfig {
	if strings.TrimSpace(override.ID) != "" {
		base.ID = override.ID
	}
	if strings.TrimSpace(override.DisplayName) != "" {
		base.DisplayName = override.DisplayName
	}
	if strings.TrimSpace(override.User1Name) != "" {
		base.User1Name = override.User1Name
	}
	if strings.TrimSpace(override.User2Name) != "" {
		base.User2Name = override.User2Name
	}
	return base
}

func mergeMeeting(base MeetingConfig, override MeetingConfig) MeetingConfig {
	if override.TickIntervalMS > 0 {
		base.TickIntervalMS = override.TickIntervalMS
	}
	if override.SyncConcurrency > 0 {
		base.SyncConcurrency = override.SyncConcurrency
	}
	if override.SaveTimeoutMS > 0 {
		base.SaveTimeoutMS = override.SaveTimeoutMS
	}
	return base
}

func applyEnv(cfg *Config) error {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setString(&cfg.Owner.ID, ec.OwnerID)
	setString(&cfg.Owner.DisplayName, ec.OwnerName)
	setString(&cfg.Storage.BaseDir, ec.BaseDir)
	setString(&cfg.Storage.DBFile, ec.DBFile)
	if ec.TickMS < 0 {
		return fmt.Errorf("invalid HUDDLE_TICK_MS: %d", ec.TickMS)
	}
	if ec.TickMS > 0 {
		cfg.Meeting.TickIntervalMS = ec.TickMS
	}
	if ec.RecapEnabled != nil {
		cfg.Recap.Enabled = *ec.RecapEnabled
	}
	setString(&cfg.Recap.BaseURL, ec.RecapBaseURL)
	setString(&cfg.Recap.Model, ec.RecapModel)
	if strings.TrimSpace(ec.RecapAPIKey) != "" {
		cfg.Recap.APIKey = strings.TrimSpace(ec.RecapAPIKey)
	} else if cfg.Recap.APIKey == "" {
		setString(&cfg.Recap.APIKey, ec.OpenAIAPIKey)
	}
	setString(&cfg.UI.Locale, ec.Locale)
	setString(&cfg.UI.Mode, ec.UIMode)
	setString(&cfg.Log.Level, ec.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func normalize(cfg *Config) error {
	def := Default()

	cfg.Owner.ID = strings.TrimSpace(cfg.Owner.ID)
	cfg.Owner.DisplayName = strings.TrimSpace(cfg.Owner.DisplayName)
	if cfg.Owner.DisplayName == "" {
		cfg.Owner.DisplayName = cfg.Owner.ID
	}
	if strings.TrimSpace(cfg.Owner.User1Name) == "" {
		cfg.Owner.User1Name = def.Owner.User1Name
	}
	if strings.TrimSpace(cfg.Owner.User2Name) == "" {
		cfg.Owner.User2Name = def.Owner.User2Name
	}

	if cfg.Meeting.TickIntervalMS <= 0 {
		cfg.Meeting.TickIntervalMS = def.Meeting.TickIntervalMS
	}
	if cfg.Meeting.SyncConcurrency <= 0 {
		cfg.Meeting.SyncConcurrency = def.Meeting.SyncConcurrency
	}
	if cfg.Meeting.SaveTimeoutMS <= 0 {
		cfg.Meeting.SaveTimeoutMS = def.Meeting.SaveTimeoutMS
	}

	if strings.TrimSpace(cfg.Storage.BaseDir) == "" {
		cfg.Storage.BaseDir = def.Storage.BaseDir
	}
	baseDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = baseDir
	if strings.TrimSpace(cfg.Storage.DBFile) == "" {
		cfg.Storage.DBFile = def.Storage.DBFile
	}

	if cfg.Recap.BaseURL == "" {
		cfg.Recap.BaseURL = def.Recap.BaseURL
	}
	if cfg.Recap.Model == "" {
		cfg.Recap.Model = def.Recap.Model
	}
	if cfg.Recap.TimeoutMS <= 0 {
		cfg.Recap.TimeoutMS = def.Recap.TimeoutMS
	}
	if cfg.Recap.PromptTokenBudget <= 0 {
		cfg.Recap.PromptTokenBudget = def.Recap.PromptTokenBudget
	}

	switch strings.ToLower(strings.TrimSpace(cfg.UI.Mode)) {
	case "line", "repl":
		cfg.UI.Mode = "line"
	case "", "tui":
		cfg.UI.Mode = "tui"
	default:
		return fmt.Errorf("invalid ui.mode %q (want tui or line)", cfg.UI.Mode)
	}
	if strings.TrimSpace(cfg.UI.Locale) == "" {
		cfg.UI.Locale = systemLocale()
	}
	cfg.UI.Locale = i18n.Match(cfg.UI.Locale)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	return nil
}

// systemLocale 按 POSIX 优先级读取语言环境变量
// systemLocale reads the locale variables in POSIX precedence order
func systemLocale() string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}
