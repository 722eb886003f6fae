// Package notify 将会议中的警告交给外部展示
// Package notify hands user-facing warnings from the meeting to whatever
// surface presents them (status bar, line output, log).
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Severity 通知级别 / Severity of a notice
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Notice 一条可关闭的通知 / Notice is one dismissible notification
type Notice struct {
	Message  string
	Severity Severity
}

// Notifier 通知接收方 / Notifier receives notices. Notify must not block.
type Notifier interface {
	Notify(n Notice)
}

// Func 函数适配器 / Func adapts a plain function to Notifier
type Func func(Notice)

func (f Func) Notify(n Notice) {
	if f != nil {
		f(n)
	}
}

// Discard 丢弃所有通知 / Discard drops every notice
var Discard Notifier = Func(nil)

// Log 将通知写入结构化日志 / Log writes notices to a structured logger
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, n.Message, "component", "notify")
}

// Multi 广播到多个接收方 / Multi fans a notice out to several notifiers
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(n Notice) {
		for _, target := range notifiers {
			if target != nil {
				target.Notify(n)
			}
		}
	})
}

// Recorder 收集通知，供 REPL 和测试读取
// Recorder collects notices for the line REPL and for tests
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Drain returns and clears the recorded notices.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}
