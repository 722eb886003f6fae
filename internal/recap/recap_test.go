package recap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"huddle/internal/config"
	"huddle/internal/i18n"
	"huddle/internal/logging"
	"huddle/internal/meeting"
)

type fakeClient struct {
	system, user string
	reply        string
	err          error
}

func (f *fakeClient) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func testSummary() meeting.Summary {
	ws := meeting.NewWorkingSet()
	ws.Set(meeting.Checkin{User1Word: "tired", User2Word: "hopeful"})
	ws.Set(meeting.Rocks{{RockID: "r1", Title: "Renovate kitchen", Status: "off-track", Comment: "slipping"}})
	start := time.Date(2026, 5, 4, 19, 0, 0, 0, time.UTC)
	return meeting.Summary{
		ID:         "m1",
		OwnerID:    "u1",
		StartedAt:  start,
		EndedAt:    start.Add(40 * time.Minute),
		DurationMs: (40 * time.Minute).Milliseconds(),
		Steps:      ws,
		Status:     meeting.SummaryStatusCompleted,
	}
}

func heuristic() *Tokenizer {
	return &Tokenizer{fallback: true, encodingName: "cl100k_base"}
}

func TestTokenizer_Heuristic(t *testing.T) {
	tok := heuristic()
	if tok.CountText("") != 0 {
		t.Fatal("empty text should count 0")
	}
	if tok.CountText("Hello world") <= 0 || tok.CountText("你好世界") <= 0 {
		t.Fatal("heuristic should count > 0")
	}
	if tok.IsPrecise() {
		t.Fatal("fallback tokenizer is not precise")
	}
	if tok.EncodingName() != "cl100k_base" {
		t.Fatalf("EncodingName=%q", tok.EncodingName())
	}
}

func TestTokenizer_Trim(t *testing.T) {
	tok := heuristic()
	text := strings.Repeat("one two three four\n", 20)

	out, trimmed := tok.Trim(text, 0)
	if trimmed || out != text {
		t.Fatal("budget 0 should not trim")
	}
	out, trimmed = tok.Trim(text, 20)
	if !trimmed {
		t.Fatal("expected trimming")
	}
	if n := tok.CountText(out); n > 20 {
		t.Fatalf("trimmed count=%d, want <= 20", n)
	}
	if !strings.HasPrefix(text, out) {
		t.Fatal("trim should keep the leading lines")
	}

	long := strings.Repeat("x", 400)
	out, trimmed = tok.Trim(long, 10)
	if !trimmed || tok.CountText(out) > 10 {
		t.Fatalf("single line trim count=%d", tok.CountText(out))
	}
}

func TestModelToEncoding(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4", "cl100k_base"},
		{"gpt-4o-mini", "o200k_base"},
		{"o3-mini", "o200k_base"},
		{"qwen-plus", "cl100k_base"},
		{"", "cl100k_base"},
	}
	for _, tt := range tests {
		if got := modelToEncoding(tt.model); got != tt.want {
			t.Fatalf("modelToEncoding(%q)=%q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestGenerateWritesRecap(t *testing.T) {
	i18n.Init("en")
	dir := t.TempDir()
	client := &fakeClient{reply: "Good week.\n\nFollow-ups:\n- Renovate kitchen"}
	g, err := NewGenerator(client, dir, 0,
		WithTokenizer(heuristic()),
		WithPartners(meeting.Partners{User1: "Alex", User2: "Sam"}),
		WithLogger(logging.Discard()),
	)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	r, err := g.Generate(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if r.Path != filepath.Join(dir, "m1.md") || r.Trimmed {
		t.Fatalf("recap=%+v", r)
	}
	if !strings.Contains(client.user, "Renovate kitchen") || !strings.Contains(client.user, "Alex: tired") {
		t.Fatalf("prompt missing summary:\n%s", client.user)
	}
	if client.system != SystemPrompt {
		t.Fatal("system prompt not sent")
	}
	text, ok, err := g.Load("m1")
	if err != nil || !ok {
		t.Fatalf("Load ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(text, "Good week.") {
		t.Fatalf("file=%q", text)
	}
	if _, ok, _ := Read(dir, "missing"); ok {
		t.Fatal("missing recap should not be found")
	}
}

func TestGenerateTrimsToBudget(t *testing.T) {
	i18n.Init("en")
	client := &fakeClient{reply: "ok"}
	g, _ := NewGenerator(client, t.TempDir(), 12, WithTokenizer(heuristic()), WithLogger(logging.Discard()))
	r, err := g.Generate(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !r.Trimmed || !strings.Contains(client.user, "shortened") {
		t.Fatalf("expected a trimmed prompt, got:\n%s", client.user)
	}
}

func TestGenerateClientError(t *testing.T) {
	dir := t.TempDir()
	g, _ := NewGenerator(&fakeClient{err: errors.New("503")}, dir, 0, WithTokenizer(heuristic()), WithLogger(logging.Discard()))
	if _, err := g.Generate(context.Background(), testSummary()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, "m1.md")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("no file should be written on failure")
	}
}

func TestFromConfigDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Recap.Enabled = false
	if _, err := FromConfig(cfg, logging.Discard()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err=%v, want ErrDisabled", err)
	}
}

func TestOpenAIClientStreams(t *testing.T) {
	auth := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		select {
		case auth <- r.Header.Get("Authorization"):
		default:
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Good ", "week."} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	var chunks []string
	c := NewOpenAIClient(ClientConfig{BaseURL: server.URL + "/", APIKey: "sk-test", Model: "gpt-4o-mini", TimeoutMS: 5000})
	c.OnChunk = func(s string) { chunks = append(chunks, s) }

	text, err := c.Complete(context.Background(), SystemPrompt, "summary")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Good week." {
		t.Fatalf("text=%q, want %q", text, "Good week.")
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks=%v", chunks)
	}
	if got := <-auth; got != "Bearer sk-test" {
		t.Fatalf("Authorization=%q", got)
	}
}

func TestOpenAIClientRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewOpenAIClient(ClientConfig{BaseURL: server.URL, Model: "gpt-4o-mini", MaxRetries: 1})
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls=%d, want 2", n)
	}
}
