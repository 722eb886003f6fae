package repl

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"huddle/internal/clock"
	"huddle/internal/entities"
	"huddle/internal/i18n"
	"huddle/internal/logging"
	"huddle/internal/meeting"
	"huddle/internal/notify"
	"huddle/internal/storage"
)

var alex = entities.Owner{ID: "u1", DisplayName: "Alex"}

type scriptReader struct {
	lines   []string
	prompts []string
}

func (r *scriptReader) ReadLine(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

type harness struct {
	session *Session
	engine  *meeting.Engine
	repo    *entities.Repo
	store   *storage.SQLiteStore
	out     *bytes.Buffer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	i18n.Init("en")
	fake := clock.Fake(time.Date(2026, 5, 4, 19, 0, 0, 0, time.UTC))
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "huddle.db"), storage.WithClock(fake.Now))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	notices := &notify.Recorder{}
	engine, err := meeting.New(alex, store, nil,
		meeting.WithClock(fake),
		meeting.WithLogger(logging.Discard()),
		meeting.WithNotifier(notices),
	)
	if err != nil {
		t.Fatalf("meeting.New: %v", err)
	}
	t.Cleanup(engine.Close)

	out := &bytes.Buffer{}
	base := []Option{WithColor(false), WithPartners(meeting.Partners{User1: "Alex", User2: "Sam"})}
	return &harness{
		session: New(engine, out, notices, append(base, opts...)...),
		engine:  engine,
		repo:    entities.NewRepo(store, fake.Now),
		store:   store,
		out:     out,
	}
}

func (h *harness) exec(t *testing.T, line string) {
	t.Helper()
	if _, err := h.session.Execute(context.Background(), line); err != nil {
		t.Fatalf("%q: %v", line, err)
	}
}

func TestScriptedMeeting(t *testing.T) {
	var completed meeting.Summary
	h := newHarness(t, OnComplete(func(_ context.Context, s meeting.Summary) { completed = s }))
	ctx := context.Background()
	rock, err := h.repo.CreateRock(ctx, alex, entities.Rock{Title: "Renovate kitchen"})
	if err != nil {
		t.Fatal(err)
	}

	in := &scriptReader{lines: []string{
		"checkin 1 tired",
		"checkin 2 hopeful",
		"next",
		"rate physical 1 7",
		"goto 3",
		"rock 1 off-track slipping",
		"goto issues",
		"goto 6",
		"close 1 8",
		"close 2 9",
		"next",
		"status",
	}}
	if err := Run(ctx, h.session, in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(in.lines) != 1 {
		t.Fatalf("session should stop after completion, %d lines left", len(in.lines))
	}
	if !strings.HasPrefix(in.prompts[0], "[1/6 Check-in ") {
		t.Fatalf("prompt=%q", in.prompts[0])
	}

	out := h.out.String()
	for _, want := range []string{
		"Weekly meeting started",
		"Renovate kitchen set to off-track",
		`Created issue "Off-track: Renovate kitchen"`,
		"Off-track: Renovate kitchen",
		"Meeting complete.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	if completed.ID == "" {
		t.Fatal("OnComplete not called")
	}
	if c := completed.Steps.Checkin(); c.User1Word != "tired" || c.User2Word != "hopeful" {
		t.Fatalf("checkin=%+v", c)
	}
	if completed.Steps.QualityOfLife().Ratings["physical_user1"] != 7 {
		t.Fatalf("qol=%+v", completed.Steps.QualityOfLife())
	}
	stored, _ := h.repo.GetRock(ctx, alex, rock.ID)
	if stored.Status != entities.RockOffTrack || stored.Comment != "slipping" {
		t.Fatalf("stored rock=%+v", stored)
	}
}

func TestExecuteErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tests := []struct {
		line string
		want string
	}{
		{"dance", "Unknown command: dance"},
		{"goto 7", "No section 7"},
		{"goto", "Usage: goto <1-6>"},
		{"checkin 3 happy", "partner must be 1 or 2"},
		{"rate mood 1 5", "unknown category"},
		{"rate physical 1 11", "rating must be 1-10"},
		{"rock 1 off-track", "no rock #1"},
		{"note hello", "Usage: note"},
	}
	for _, tt := range tests {
		_, err := h.session.Execute(ctx, tt.line)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%q err=%v, want %q", tt.line, err, tt.want)
		}
	}
	if h.engine.CurrentIndex() != 0 {
		t.Fatalf("index=%d after failed commands", h.engine.CurrentIndex())
	}
}

func TestUnknownStatusIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.repo.CreateTodo(ctx, alex, entities.Todo{Title: "Call plumber"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.session.Execute(ctx, "todo 1 finished"); err == nil {
		t.Fatal("expected unknown status error")
	}
	h.exec(t, "todo 1 complete")
	todos, _ := h.repo.ListTodos(ctx, alex)
	if todos[0].Status != entities.TodoCompleted {
		t.Fatalf("status=%q", todos[0].Status)
	}
}

func TestSaveAndStatus(t *testing.T) {
	h := newHarness(t)
	h.exec(t, "save")
	if !strings.Contains(h.out.String(), "Ready") {
		t.Fatalf("untouched save output:\n%s", h.out.String())
	}
	h.exec(t, "checkin 1 calm")
	h.exec(t, "save")
	if !strings.Contains(h.out.String(), "Saved Check-in") {
		t.Fatalf("save output:\n%s", h.out.String())
	}

	h.out.Reset()
	h.exec(t, "back")
	h.exec(t, "status")
	out := h.out.String()
	if !strings.Contains(out, "> 1. [ ] Check-in") || !strings.Contains(out, "Alex") || !strings.Contains(out, "calm") {
		t.Fatalf("status output:\n%s", out)
	}
}

func TestQuitAndEOF(t *testing.T) {
	h := newHarness(t)
	quit, err := h.session.Execute(context.Background(), "quit")
	if err != nil || !quit {
		t.Fatalf("quit=%v err=%v", quit, err)
	}
	if err := Run(context.Background(), h.session, &scriptReader{}); err != nil {
		t.Fatalf("Run on EOF: %v", err)
	}
	if !strings.Contains(h.out.String(), "Meeting left open") {
		t.Fatalf("output:\n%s", h.out.String())
	}
	if h.engine.Completed() {
		t.Fatal("quitting must not complete the meeting")
	}
}
