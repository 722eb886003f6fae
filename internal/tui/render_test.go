package tui

import (
	"strings"
	"testing"

	"huddle/internal/storage"
)

func TestRenderMarkdown_Basic(t *testing.T) {
	input := "# Meeting\n\n- **Total**: 15:00"
	result := RenderMarkdown(input, 80)
	if result == "" {
		t.Fatal("RenderMarkdown returned empty")
	}
	// Glamour 应该渲染了标题 / Glamour should have rendered the heading
	if !strings.Contains(result, "Meeting") {
		t.Fatalf("result should contain 'Meeting': %q", result)
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	if RenderMarkdown("", 80) != "" {
		t.Fatal("empty input should return empty")
	}
	if RenderMarkdown("  ", 80) != "" {
		t.Fatal("whitespace input should return empty")
	}
}

func TestRenderStatus(t *testing.T) {
	theme := DarkTheme()
	for _, status := range []string{"on-track", "off-track", "complete", "solved", "open"} {
		if got := RenderStatus(status, theme); !strings.Contains(got, status) {
			t.Errorf("RenderStatus(%q)=%q", status, got)
		}
	}
	if got := RenderStatus("", theme); !strings.Contains(got, "-") {
		t.Errorf("empty status should render a dash, got %q", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		done, total, width int
		filled             int
	}{
		{0, 6, 12, 0},
		{3, 6, 12, 6},
		{6, 6, 12, 12},
		{9, 6, 12, 12},
		{1, 0, 8, 0},
	}
	for _, tt := range tests {
		bar := renderProgressBar(tt.done, tt.total, tt.width)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderProgressBar(%d,%d,%d) filled=%d, want %d", tt.done, tt.total, tt.width, got, tt.filled)
		}
	}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		collection, from, want string
	}{
		{storage.CollectionRocks, "on-track", "off-track"},
		{storage.CollectionRocks, "off-track", "complete"},
		{storage.CollectionRocks, "complete", "on-track"},
		{storage.CollectionTodos, "incomplete", "complete"},
		{storage.CollectionIssues, "solved", "open"},
		{storage.CollectionIssues, "weird", "open"},
		{storage.CollectionMeetings, "x", "x"},
	}
	for _, tt := range tests {
		if got := nextStatus(tt.collection, tt.from); got != tt.want {
			t.Errorf("nextStatus(%s, %q)=%q, want %q", tt.collection, tt.from, got, tt.want)
		}
	}
}
