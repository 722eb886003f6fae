// Package repl 行模式会议界面：每行一个命令，直接作用于会议引擎
// Package repl is the line-mode meeting interface. Every line is one
// command executed against the meeting engine.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"huddle/internal/i18n"
	"huddle/internal/meeting"
	"huddle/internal/notify"
)

// ANSI colors for prompt and notices
const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[90m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiRed    = "\x1b[31m"
	ansiBold   = "\x1b[1m"
)

// LineReader 提供一行输入，EOF 结束会话
// LineReader supplies input lines; io.EOF ends the session
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Session 持有 REPL 状态 / Session holds the REPL state
type Session struct {
	engine     *meeting.Engine
	out        io.Writer
	notices    *notify.Recorder
	partners   meeting.Partners
	color      bool
	onComplete func(context.Context, meeting.Summary)
}

type Option func(*Session)

func WithPartners(p meeting.Partners) Option {
	return func(s *Session) { s.partners = p }
}

func WithColor(on bool) Option {
	return func(s *Session) { s.color = on }
}

// OnComplete 会议完成后调用（例如生成回顾）/ runs after the meeting completes
func OnComplete(fn func(context.Context, meeting.Summary)) Option {
	return func(s *Session) { s.onComplete = fn }
}

// New notices must be the recorder the engine notifies; it is drained
// after every command.
func New(engine *meeting.Engine, out io.Writer, notices *notify.Recorder, opts ...Option) *Session {
	s := &Session{
		engine:  engine,
		out:     out,
		notices: notices,
		color:   useColor(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.partners.User1 == "" {
		s.partners.User1 = "1"
	}
	if s.partners.User2 == "" {
		s.partners.User2 = "2"
	}
	return s
}

// Run 读取并执行命令直到 quit、会议完成或输入结束
// Run reads and executes commands until quit, completion or end of input
func Run(ctx context.Context, s *Session, in LineReader) error {
	if s.engine == nil {
		return errors.New("meeting engine is nil")
	}
	fmt.Fprintln(s.out, i18n.T("repl.welcome"))
	s.printStep(ctx)

	for {
		line, err := in.ReadLine(s.Prompt())
		if errors.Is(err, io.EOF) {
			s.flushNotices()
			fmt.Fprintln(s.out, i18n.T("repl.bye"))
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := s.Execute(ctx, line)
		s.flushNotices()
		if err != nil {
			s.printError(err)
		}
		if quit {
			return nil
		}
	}
}

// Prompt 显示当前步骤和本节计时 / shows the current section and its timer
func (s *Session) Prompt() string {
	step := s.engine.CurrentStep()
	el := s.engine.Elapsed()
	prompt := fmt.Sprintf("[%d/%d %s %s] > ",
		s.engine.CurrentIndex()+1, meeting.StepCount(), i18n.T(step.ID.TitleKey()), meeting.FormatDuration(el.Section))
	return s.paint(ansiGreen, prompt)
}

func (s *Session) flushNotices() {
	if s.notices == nil {
		return
	}
	for _, n := range s.notices.Drain() {
		switch n.Severity {
		case notify.SeverityError:
			fmt.Fprintln(s.out, s.paint(ansiRed, "x "+n.Message))
		case notify.SeverityWarning:
			fmt.Fprintln(s.out, s.paint(ansiYellow, "! "+n.Message))
		default:
			fmt.Fprintln(s.out, s.paint(ansiCyan, "* "+n.Message))
		}
	}
}

func (s *Session) printError(err error) {
	fmt.Fprintln(s.out, s.paint(ansiRed, "error: "+err.Error()))
}

func (s *Session) paint(color, text string) string {
	if !s.color {
		return text
	}
	return color + text + ansiReset
}

func useColor() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("HUDDLE_NO_COLOR")) != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
