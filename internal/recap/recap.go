// Package recap 调用 OpenAI 兼容模型为已完成的会议生成简短回顾
// Package recap asks an OpenAI-compatible model for a short recap of a
// completed meeting and stores it next to the database.
package recap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"huddle/internal/config"
	"huddle/internal/meeting"
)

// ErrDisabled 配置未启用回顾 / recap is switched off in the config
var ErrDisabled = errors.New("recap is disabled")

// Recap 一次生成的结果 / Recap is one generated recap
type Recap struct {
	MeetingID    string
	Text         string
	Path         string
	PromptTokens int
	Trimmed      bool
}

// Generator 组装提示词、调用模型并写入 <dir>/<meetingID>.md
// Generator builds the prompt, calls the model and writes <dir>/<meetingID>.md
type Generator struct {
	client    Client
	tokenizer *Tokenizer
	budget    int
	dir       string
	partners  meeting.Partners
	logger    *slog.Logger
}

type Option func(*Generator)

func WithTokenizer(t *Tokenizer) Option {
	return func(g *Generator) {
		if t != nil {
			g.tokenizer = t
		}
	}
}

func WithPartners(p meeting.Partners) Option {
	return func(g *Generator) { g.partners = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator budget 为提示词 token 上限，<= 0 表示不截断
// NewGenerator creates a generator. budget caps the summary's prompt
// tokens; <= 0 disables trimming.
func NewGenerator(client Client, dir string, budget int, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, errors.New("recap: client is nil")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("recap: output dir is empty")
	}
	g := &Generator{
		client: client,
		budget: budget,
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.tokenizer == nil {
		g.tokenizer = NewTokenizer("cl100k_base")
	}
	return g, nil
}

// FromConfig 按配置创建生成器；未启用时返回 ErrDisabled
// FromConfig wires a generator from config; it returns ErrDisabled when
// recaps are off
func FromConfig(cfg config.Config, logger *slog.Logger) (*Generator, error) {
	if !cfg.Recap.Enabled {
		return nil, ErrDisabled
	}
	client := NewOpenAIClient(ClientConfig{
		BaseURL:   cfg.Recap.BaseURL,
		APIKey:    cfg.Recap.APIKey,
		Model:     cfg.Recap.Model,
		TimeoutMS: cfg.Recap.TimeoutMS,
	})
	return NewGenerator(client, filepath.Join(cfg.Storage.BaseDir, "recaps"), cfg.Recap.PromptTokenBudget,
		WithTokenizer(NewTokenizerForModel(cfg.Recap.Model)),
		WithPartners(meeting.Partners{User1: cfg.Owner.User1Name, User2: cfg.Owner.User2Name}),
		WithLogger(logger),
	)
}

// Generate 渲染总结、截断到预算、请求模型并写入文件
// Generate renders the summary, trims it to the budget, asks the model and
// writes the recap file
func (g *Generator) Generate(ctx context.Context, s meeting.Summary) (Recap, error) {
	if strings.TrimSpace(s.ID) == "" {
		return Recap{}, errors.New("recap: summary has no id")
	}
	markdown, trimmed := g.tokenizer.Trim(meeting.RenderMarkdown(s, g.partners), g.budget)
	user := buildUserPrompt(markdown, trimmed)
	tokens := g.tokenizer.CountText(SystemPrompt) + g.tokenizer.CountText(user)
	g.logger.Debug("recap prompt", "meeting", s.ID, "tokens", tokens, "trimmed", trimmed, "precise", g.tokenizer.IsPrecise(), "encoding", g.tokenizer.EncodingName())

	text, err := g.client.Complete(ctx, SystemPrompt, user)
	if err != nil {
		return Recap{}, fmt.Errorf("recap %s: %w", s.ID, err)
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return Recap{}, fmt.Errorf("create recap dir: %w", err)
	}
	path := filepath.Join(g.dir, s.ID+".md")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(text)+"\n"), 0o644); err != nil {
		return Recap{}, fmt.Errorf("write recap: %w", err)
	}
	g.logger.Info("recap written", "meeting", s.ID, "path", path)
	return Recap{
		MeetingID:    s.ID,
		Text:         text,
		Path:         path,
		PromptTokens: tokens,
		Trimmed:      trimmed,
	}, nil
}

// Load 读取已生成的回顾 / Load reads a previously written recap
func (g *Generator) Load(meetingID string) (string, bool, error) {
	return Read(g.dir, meetingID)
}

// Read 不需要模型即可读取回顾文件 / reads a recap file without a client
func Read(dir, meetingID string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, meetingID+".md"))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}
