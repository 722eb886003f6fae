// Package logging 将结构化日志追加到 <base>/logs/huddle.log
// Package logging appends structured JSON logs to <base>/logs/huddle.log so
// sync failures stay inspectable after the terminal UI exits.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger 持有日志文件和 slog 句柄 / Logger owns the log file and its slog handle
type Logger struct {
	*slog.Logger
	file *os.File
}

// New 创建（或复用）日志文件 / New creates (or reuses) the log file under baseDir.
func New(baseDir, level string) (*Logger, error) {
	logDir := filepath.Join(baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, "huddle.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{Logger: newJSONLogger(f, level), file: f}, nil
}

func newJSONLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// Discard 丢弃所有输出 / Discard returns a logger that writes nowhere
func Discard() *slog.Logger {
	return newJSONLogger(io.Discard, "error")
}

// ParseLevel 解析级别，未知值回退到 info / ParseLevel falls back to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
