package meeting

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"huddle/internal/i18n"
	"huddle/internal/storage"
)

func newRecordStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSummaryHistory(t *testing.T) {
	store := newRecordStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		start := testStart.AddDate(0, 0, 7*i)
		ws := NewWorkingSet()
		ws.Set(Checkin{User1Word: "week", User2Word: string(rune('a' + i))})
		s, err := SaveSummary(ctx, store, Summary{
			OwnerID:    "u1",
			StartedAt:  start,
			EndedAt:    start.Add(time.Hour),
			DurationMs: time.Hour.Milliseconds(),
			Steps:      ws,
			Status:     SummaryStatusCompleted,
		})
		if err != nil {
			t.Fatalf("SaveSummary: %v", err)
		}
		ids = append(ids, s.ID)
	}

	list, err := ListSummaries(ctx, store, "u1", 2)
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Fatalf("order=%v, want newest first", []string{list[0].ID, list[1].ID})
	}
	if list[0].Steps.Checkin().User2Word != "c" {
		t.Fatalf("steps not decoded: %+v", list[0].Steps.Checkin())
	}

	// 其他所有者既看不到也删不掉 / another owner can neither read nor delete it
	if _, err := GetSummary(ctx, store, "u2", ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetSummary as u2 err=%v, want ErrNotFound", err)
	}
	if err := DeleteSummary(ctx, store, "u2", ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeleteSummary as u2 err=%v, want ErrNotFound", err)
	}

	if err := DeleteSummary(ctx, store, "u1", ids[0]); err != nil {
		t.Fatalf("DeleteSummary: %v", err)
	}
	if _, err := GetSummary(ctx, store, "u1", ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetSummary err=%v, want ErrNotFound", err)
	}
	if err := DeleteSummary(ctx, store, "u1", ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete err=%v, want ErrNotFound", err)
	}
}

func TestLoadSnapshotsInMeetingOrder(t *testing.T) {
	store := newRecordStore(t)
	ctx := context.Background()
	save := func(p Payload, date string) {
		t.Helper()
		if _, _, err := SaveSnapshot(ctx, store, StepSnapshot{OwnerID: "u1", StepID: p.Step(), MeetingDate: date, Payload: p, SavedAt: testStart}); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	save(Close{Notes: "bye"}, "2026-05-04")
	save(Checkin{User1Word: "hi"}, "2026-05-04")
	save(Checkin{User1Word: "last week"}, "2026-04-27")

	snaps, err := LoadSnapshots(ctx, store, "u1", "2026-05-04")
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if len(snaps) != 2 || snaps[0].StepID != StepCheckin || snaps[1].StepID != StepClose {
		t.Fatalf("snapshots=%+v", snaps)
	}
	if snaps[0].Payload.(Checkin).User1Word != "hi" {
		t.Fatalf("payload=%+v", snaps[0].Payload)
	}

	if _, _, err := SaveSnapshot(ctx, store, StepSnapshot{OwnerID: "u1", StepID: StepRocks}); err == nil {
		t.Fatal("nil payload should be rejected")
	}
}

func TestRenderMarkdown(t *testing.T) {
	i18n.Init("en")
	ws := NewWorkingSet()
	ws.Set(Checkin{User1Word: "tired", User2Word: "hopeful"})
	ws.Set(Rocks{{RockID: "r1", Title: "Renovate kitchen", Status: "off-track", Comment: "slipping"}})
	ws.Set(Close{User1Rating: Rating(8)})

	out := RenderMarkdown(Summary{
		StartedAt:             testStart,
		DurationMs:            (75 * time.Minute).Milliseconds(),
		PerSectionDurationsMs: map[StepID]int64{StepCheckin: 60000},
		Steps:                 ws,
	}, Partners{User1: "Alex", User2: "Sam"})

	for _, want := range []string{
		"- **Total**: 1:15:00",
		"- Check-in: 01:00",
		"## Check-in",
		"- Alex: tired",
		"- Sam: hopeful",
		"- Renovate kitchen **off-track**: slipping",
		"- Alex: 8/10",
		"- Sam: -",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "## To-Dos") {
		t.Fatalf("unvisited step rendered:\n%s", out)
	}
}
