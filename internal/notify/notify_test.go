package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRecorderDrain(t *testing.T) {
	var rec Recorder
	rec.Notify(Notice{Message: "a", Severity: SeverityWarning})
	rec.Notify(Notice{Message: "b"})

	if got := len(rec.Notices()); got != 2 {
		t.Fatalf("len=%d, want 2", got)
	}
	drained := rec.Drain()
	if len(drained) != 2 || drained[0].Message != "a" {
		t.Fatalf("drained=%+v", drained)
	}
	if got := len(rec.Notices()); got != 0 {
		t.Fatalf("len after drain=%d, want 0", got)
	}
}

func TestMultiAndLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var rec Recorder

	Multi(&rec, Log{Logger: logger}, nil).Notify(Notice{Message: "sync failed", Severity: SeverityError})

	if len(rec.Notices()) != 1 {
		t.Fatal("recorder did not receive notice")
	}
	out := buf.String()
	if !strings.Contains(out, "sync failed") || !strings.Contains(out, "level=ERROR") {
		t.Fatalf("log output=%q", out)
	}
}

func TestSeverityString(t *testing.T) {
	if SeverityWarning.String() != "warning" || SeverityInfo.String() != "info" || SeverityError.String() != "error" {
		t.Fatal("unexpected severity names")
	}
}

func TestDiscard(t *testing.T) {
	Discard.Notify(Notice{Message: "ignored"})
}
