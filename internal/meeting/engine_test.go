package meeting

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"huddle/internal/clock"
	"huddle/internal/entities"
	"huddle/internal/i18n"
	"huddle/internal/logging"
	"huddle/internal/notify"
	"huddle/internal/storage"
)

var (
	testOwner = entities.Owner{ID: "u1", DisplayName: "Alex"}
	testStart = time.Date(2026, 5, 4, 19, 0, 0, 0, time.UTC)
)

// flakyStore 按开关让写入失败 / flakyStore fails writes while a switch is on
type flakyStore struct {
	storage.Store
	failUpdate atomic.Bool
	failInsert atomic.Bool
	// holdInsert 非空时，meetings 写入在收到信号前阻塞
	holdInsert chan struct{}
	inInsert   chan struct{}
}

func (s *flakyStore) Update(ctx context.Context, collection, ownerID, id string, fields map[string]any) error {
	if s.failUpdate.Load() {
		return errors.New("network unreachable")
	}
	return s.Store.Update(ctx, collection, ownerID, id, fields)
}

func (s *flakyStore) Insert(ctx context.Context, doc storage.Document) (storage.Document, error) {
	if s.failInsert.Load() {
		return storage.Document{}, errors.New("disk full")
	}
	if s.holdInsert != nil && doc.Collection == storage.CollectionMeetings {
		close(s.inInsert)
		<-s.holdInsert
	}
	return s.Store.Insert(ctx, doc)
}

type fixture struct {
	engine *Engine
	store  *flakyStore
	repo   *entities.Repo
	clock  *clock.FakeClock
	notes  *notify.Recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	i18n.Init("en")
	fake := clock.Fake(testStart)
	sqlite, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "huddle.db"), storage.WithClock(fake.Now))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	store := &flakyStore{Store: sqlite}
	return newFixtureOn(t, store, fake, opts...)
}

func newFixtureOn(t *testing.T, store *flakyStore, fake *clock.FakeClock, opts ...Option) *fixture {
	t.Helper()
	notes := &notify.Recorder{}
	base := []Option{
		WithClock(fake),
		WithLogger(logging.Discard()),
		WithNotifier(notes),
		WithTickInterval(time.Second),
	}
	e, err := New(testOwner, store, nil, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return &fixture{
		engine: e,
		store:  store,
		repo:   entities.NewRepo(store, fake.Now),
		clock:  fake,
		notes:  notes,
	}
}

func waitTask(t *testing.T, task *Task[SaveResult]) (SaveResult, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("save task did not finish")
	}
	return res, err
}

func mustWait(t *testing.T, task *Task[SaveResult]) SaveResult {
	t.Helper()
	res, err := waitTask(t, task)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return res
}

func (f *fixture) createRock(t *testing.T, title string) entities.Rock {
	t.Helper()
	rock, err := f.repo.CreateRock(context.Background(), testOwner, entities.Rock{Title: title, Description: "by June"})
	if err != nil {
		t.Fatalf("CreateRock: %v", err)
	}
	return rock
}

func TestNewRequiresOwnerAndStore(t *testing.T) {
	if _, err := New(entities.Owner{}, &flakyStore{}, nil); err == nil {
		t.Fatal("expected error for empty owner")
	}
	if _, err := New(testOwner, nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestNewStartsAtCheckin(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	if e.CurrentIndex() != 0 || e.CurrentStep().ID != StepCheckin {
		t.Fatalf("current=%d %s, want 0 checkin", e.CurrentIndex(), e.CurrentStep().ID)
	}
	if e.WorkingSet().Len() != 0 {
		t.Fatal("working set should start empty")
	}
	if !e.StartedAt().Equal(testStart) || !e.SectionStartedAt().Equal(testStart) {
		t.Fatalf("StartedAt=%v SectionStartedAt=%v", e.StartedAt(), e.SectionStartedAt())
	}
	if e.MeetingDate() != "2026-05-04" {
		t.Fatalf("MeetingDate=%q", e.MeetingDate())
	}
	if !e.TimersRunning() {
		t.Fatal("timers should run after New")
	}
}

func TestGoToRejectsOutOfRange(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	if err := e.GoTo(3); err != nil {
		t.Fatalf("GoTo(3): %v", err)
	}
	for _, i := range []int{-1, StepCount()} {
		if err := e.GoTo(i); !errors.Is(err, ErrInvalidStep) {
			t.Fatalf("GoTo(%d) err=%v, want ErrInvalidStep", i, err)
		}
	}
	if e.CurrentIndex() != 3 {
		t.Fatalf("index=%d after invalid GoTo, want 3", e.CurrentIndex())
	}
}

func TestGoToResetsSectionClock(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(90 * time.Second)
	if err := f.engine.GoTo(2); err != nil {
		t.Fatal(err)
	}
	if !f.engine.SectionStartedAt().Equal(testStart.Add(90 * time.Second)) {
		t.Fatalf("SectionStartedAt=%v", f.engine.SectionStartedAt())
	}
	el := f.engine.Elapsed()
	if el.Total != 90*time.Second || el.Section != 0 || el.Step != StepRocks {
		t.Fatalf("Elapsed=%+v", el)
	}
}

func TestRetreat(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	if err := e.Retreat(); err != nil {
		t.Fatalf("Retreat at 0: %v", err)
	}
	if e.CurrentIndex() != 0 {
		t.Fatalf("index=%d, want 0", e.CurrentIndex())
	}
	_ = e.GoTo(4)
	if err := e.Retreat(); err != nil {
		t.Fatal(err)
	}
	if e.CurrentIndex() != 3 {
		t.Fatalf("index=%d, want 3", e.CurrentIndex())
	}
}

func TestUpdateFieldSurvivesNavigation(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	if err := e.UpdateField(StepCheckin, CheckinPatch{User1Word: Text("happy")}); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	_ = e.GoTo(2)
	_ = e.GoTo(0)
	if got := e.WorkingSet().Checkin().User1Word; got != "happy" {
		t.Fatalf("user1Word=%q, want happy", got)
	}
	if _, ok, _ := LoadSnapshot(context.Background(), f.store, testOwner.ID, StepCheckin, e.MeetingDate()); ok {
		t.Fatal("UpdateField must not persist")
	}
}

func TestUpdateFieldRejectsMismatchedPatch(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.UpdateField(StepRocks, CheckinPatch{}); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("err=%v, want ErrWrongStep", err)
	}
	if err := f.engine.UpdateField(StepID("agenda"), CheckinPatch{}); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("err=%v, want ErrInvalidStep", err)
	}
}

func TestSaveStepLastWriteWins(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	ctx := context.Background()

	first := e.SaveStep(StepCheckin, Checkin{User1Word: "a", User2Word: "b"})
	f.clock.Advance(time.Second)
	second := e.SaveStep(StepCheckin, Checkin{User1Word: "c", User2Word: "d"})
	mustWait(t, first)
	mustWait(t, second)

	docs, err := f.store.Query(ctx, storage.Query{Collection: storage.CollectionMeetingSteps, OwnerID: testOwner.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("snapshots=%d, want 1", len(docs))
	}
	snap, ok, err := LoadSnapshot(ctx, f.store, testOwner.ID, StepCheckin, e.MeetingDate())
	if err != nil || !ok {
		t.Fatalf("LoadSnapshot ok=%v err=%v", ok, err)
	}
	if c := snap.Payload.(Checkin); c.User1Word != "c" || c.User2Word != "d" {
		t.Fatalf("payload=%+v, want second save", c)
	}
	if !snap.SavedAt.Equal(testStart.Add(time.Second)) {
		t.Fatalf("SavedAt=%v, want second save time", snap.SavedAt)
	}
}

func TestRapidRockSavesKeepLastComment(t *testing.T) {
	f := newFixture(t)
	rock := f.createRock(t, "Renovate kitchen")
	e := f.engine

	var last *Task[SaveResult]
	for _, comment := range []string{"one", "two", "three", "four"} {
		last = e.SetRockStatus(rock.ID, rock.Title, "on-track", comment)
	}
	mustWait(t, last)

	stored, err := f.repo.GetRock(context.Background(), testOwner, rock.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Comment != "four" {
		t.Fatalf("comment=%q, want four", stored.Comment)
	}
	snap, _, _ := LoadSnapshot(context.Background(), f.store, testOwner.ID, StepRocks, e.MeetingDate())
	if r, _ := snap.Payload.(Rocks).Find(rock.ID); r.Comment != "four" {
		t.Fatalf("snapshot comment=%q, want four", r.Comment)
	}
}

func TestSaveStepSkipsUnchangedEntries(t *testing.T) {
	f := newFixture(t)
	rock := f.createRock(t, "Trip")
	e := f.engine

	res := mustWait(t, e.SetRockStatus(rock.ID, rock.Title, "on-track", "fine"))
	if len(res.Synced) != 1 {
		t.Fatalf("synced=%d, want 1", len(res.Synced))
	}
	res = mustWait(t, e.SaveStep(StepRocks, e.WorkingSet().Rocks()))
	if len(res.Synced) != 0 {
		t.Fatalf("unchanged save synced %d entries", len(res.Synced))
	}
}

func TestAdvanceFromCheckin(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	ctx := context.Background()

	task, summary, err := e.Advance(ctx)
	if err != nil || summary != nil {
		t.Fatalf("Advance: summary=%v err=%v", summary, err)
	}
	if task != nil {
		t.Fatal("advance without checkin data should not save")
	}
	if e.CurrentIndex() != 1 {
		t.Fatalf("index=%d, want 1", e.CurrentIndex())
	}

	_ = e.GoTo(0)
	_ = e.UpdateField(StepCheckin, CheckinPatch{User1Word: Text("tired"), User2Word: Text("hopeful")})
	task, _, err = e.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	res := mustWait(t, task)
	if res.Snapshot.ID == "" || res.Step != StepCheckin {
		t.Fatalf("result=%+v", res)
	}
	if e.CurrentIndex() != 1 {
		t.Fatalf("index=%d, want 1", e.CurrentIndex())
	}
}

func TestCompleteOnlyFromFinalStep(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Complete(context.Background()); !errors.Is(err, ErrNotFinalStep) {
		t.Fatalf("err=%v, want ErrNotFinalStep", err)
	}
	if f.engine.Completed() {
		t.Fatal("meeting should still be open")
	}
}

func TestCompleteWithPartialSteps(t *testing.T) {
	var hooked atomic.Int32
	f := newFixture(t, OnComplete(func(Summary) { hooked.Add(1) }))
	e := f.engine
	ctx := context.Background()

	_ = e.UpdateField(StepCheckin, CheckinPatch{User1Word: Text("ok")})
	mustWait(t, e.SaveStep(StepRocks, Rocks{}))
	_ = e.GoTo(5)
	f.clock.Advance(30 * time.Minute)

	_, summary, err := e.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance at close: %v", err)
	}
	if summary == nil {
		t.Fatal("Advance on the final step should return the summary")
	}
	steps := summary.Steps.Steps()
	if len(steps) != 2 || steps[0] != StepCheckin || steps[1] != StepRocks {
		t.Fatalf("steps=%v, want [checkin rocks]", steps)
	}
	if summary.Status != SummaryStatusCompleted || summary.DurationMs <= 0 {
		t.Fatalf("summary=%+v", summary)
	}
	if hooked.Load() != 1 {
		t.Fatalf("OnComplete called %d times", hooked.Load())
	}

	stored, err := GetSummary(ctx, f.store, testOwner.ID, summary.ID)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if stored.DurationMs != 30*60*1000 {
		t.Fatalf("DurationMs=%d", stored.DurationMs)
	}
	if stored.PerSectionDurationsMs[StepClose] != 30*60*1000 {
		t.Fatalf("per section=%v", stored.PerSectionDurationsMs)
	}
}

func TestCompleteClampsDuration(t *testing.T) {
	f := newFixture(t)
	_ = f.engine.GoTo(5)
	s, err := f.engine.Complete(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.DurationMs != 1 {
		t.Fatalf("DurationMs=%d, want 1", s.DurationMs)
	}
}

func TestCompleteStopsTimersAndLocks(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	ctx := context.Background()
	_ = e.GoTo(5)
	if _, err := e.Complete(ctx); err != nil {
		t.Fatal(err)
	}
	if e.TimersRunning() || f.clock.ActiveTickers() != 0 {
		t.Fatalf("timers running=%v tickers=%d", e.TimersRunning(), f.clock.ActiveTickers())
	}
	if err := e.GoTo(0); !errors.Is(err, ErrMeetingComplete) {
		t.Fatalf("GoTo err=%v", err)
	}
	if err := e.UpdateField(StepClose, ClosePatch{Notes: Text("x")}); !errors.Is(err, ErrMeetingComplete) {
		t.Fatalf("UpdateField err=%v", err)
	}
	if _, err := waitTask(t, e.SaveStep(StepClose, Close{})); !errors.Is(err, ErrMeetingComplete) {
		t.Fatalf("SaveStep err=%v", err)
	}
	if _, _, err := e.Advance(ctx); !errors.Is(err, ErrMeetingComplete) {
		t.Fatalf("Advance err=%v", err)
	}
	if _, err := e.Complete(ctx); !errors.Is(err, ErrMeetingComplete) {
		t.Fatalf("Complete err=%v", err)
	}
}

func TestCloseStopsTimers(t *testing.T) {
	f := newFixture(t)
	f.engine.Close()
	f.engine.Close()
	if f.engine.TimersRunning() || f.clock.ActiveTickers() != 0 {
		t.Fatalf("timers running=%v tickers=%d", f.engine.TimersRunning(), f.clock.ActiveTickers())
	}
	summaries, _ := ListSummaries(context.Background(), f.store, testOwner.ID, 0)
	if len(summaries) != 0 {
		t.Fatal("abandoning a meeting must not write a summary")
	}
}

func TestCompleteFailureKeepsSessionOpen(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	ctx := context.Background()
	_ = e.GoTo(5)

	f.store.failInsert.Store(true)
	if _, err := e.Complete(ctx); err == nil {
		t.Fatal("expected persistence error")
	}
	if e.Completed() || !e.TimersRunning() {
		t.Fatalf("completed=%v running=%v, want open session", e.Completed(), e.TimersRunning())
	}
	notes := f.notes.Drain()
	if len(notes) != 1 || notes[0].Severity != notify.SeverityError {
		t.Fatalf("notices=%+v", notes)
	}

	f.store.failInsert.Store(false)
	if _, err := e.Complete(ctx); err != nil {
		t.Fatalf("retry Complete: %v", err)
	}
	if !e.Completed() {
		t.Fatal("retry should complete the meeting")
	}
}

func TestCompleteDoesNotHoldLockDuringSave(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_ = e.GoTo(5)
	f.store.holdInsert = make(chan struct{})
	f.store.inInsert = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := e.Complete(context.Background())
		done <- err
	}()
	select {
	case <-f.store.inInsert:
	case <-time.After(5 * time.Second):
		t.Fatal("summary insert never started")
	}

	// 写入阻塞期间读取不应被锁住 / reads must not wait on the pending insert
	read := make(chan StepID, 1)
	go func() {
		_ = e.Progress()
		read <- e.CurrentStep().ID
	}()
	select {
	case id := <-read:
		if id != StepClose {
			t.Fatalf("CurrentStep=%q, want %q", id, StepClose)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("accessors blocked while the summary was saving")
	}
	if err := e.UpdateField(StepClose, ClosePatch{Notes: Text("late")}); !errors.Is(err, ErrCompleting) {
		t.Fatalf("UpdateField err=%v, want ErrCompleting", err)
	}
	if _, err := e.Complete(context.Background()); !errors.Is(err, ErrCompleting) {
		t.Fatalf("second Complete err=%v, want ErrCompleting", err)
	}

	close(f.store.holdInsert)
	if err := <-done; err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !e.Completed() {
		t.Fatal("meeting should be complete")
	}
}

func TestSyncFailureNotifiesAndRetries(t *testing.T) {
	f := newFixture(t)
	rock := f.createRock(t, "Trip")
	e := f.engine
	ctx := context.Background()

	f.store.failUpdate.Store(true)
	_, err := waitTask(t, e.SetRockStatus(rock.ID, rock.Title, "complete", "done"))
	if err == nil {
		t.Fatal("expected sync error from the task")
	}
	notes := f.notes.Drain()
	if len(notes) != 1 || notes[0].Severity != notify.SeverityWarning {
		t.Fatalf("notices=%+v", notes)
	}
	if r, _ := e.WorkingSet().Rocks().Find(rock.ID); r.Status != "complete" {
		t.Fatalf("working set status=%q, want complete", r.Status)
	}
	if _, ok, _ := LoadSnapshot(ctx, f.store, testOwner.ID, StepRocks, e.MeetingDate()); !ok {
		t.Fatal("snapshot should persist despite the sync failure")
	}
	stored, _ := f.repo.GetRock(ctx, testOwner, rock.ID)
	if stored.Status != entities.RockOnTrack {
		t.Fatalf("stored status=%q, want unchanged", stored.Status)
	}

	f.store.failUpdate.Store(false)
	res := mustWait(t, e.SaveStep(StepRocks, e.WorkingSet().Rocks()))
	if len(res.Synced) != 1 {
		t.Fatalf("retry synced=%d, want 1", len(res.Synced))
	}
	stored, _ = f.repo.GetRock(ctx, testOwner, rock.ID)
	if stored.Status != entities.RockCompleted || stored.Comment != "done" {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestTodoStatusUsesStoredVocabulary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	todo, err := f.repo.CreateTodo(ctx, testOwner, entities.Todo{Title: "Call plumber"})
	if err != nil {
		t.Fatal(err)
	}
	mustWait(t, f.engine.SetTodoStatus(todo.ID, todo.Title, "complete", ""))
	stored, _ := f.repo.GetTodo(ctx, testOwner, todo.ID)
	if stored.Status != entities.TodoCompleted {
		t.Fatalf("status=%q, want %q", stored.Status, entities.TodoCompleted)
	}
	if _, err := waitTask(t, f.engine.SetTodoStatus(todo.ID, "", "done", "")); err == nil {
		t.Fatal("unknown status should be rejected")
	}
}

func TestWeeklyMeetingEndToEnd(t *testing.T) {
	f := newFixture(t)
	rock := f.createRock(t, "Renovate kitchen")
	e := f.engine
	ctx := context.Background()

	_ = e.UpdateField(StepCheckin, CheckinPatch{User1Word: Text("tired"), User2Word: Text("hopeful")})
	task, _, err := e.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mustWait(t, task)

	_ = e.UpdateField(StepQualityOfLife, QualityOfLifePatch{Ratings: map[string]int{"physical_user1": 7}})
	mustWait(t, e.SaveCurrent())
	f.clock.Advance(5 * time.Minute)

	if err := e.GoTo(2); err != nil {
		t.Fatal(err)
	}
	res := mustWait(t, e.SetRockStatus(rock.ID, rock.Title, "off-track", "slipping"))
	if len(res.DerivedIssues) != 1 {
		t.Fatalf("derived=%d, want 1", len(res.DerivedIssues))
	}

	stored, _ := f.repo.GetRock(ctx, testOwner, rock.ID)
	if stored.Status != entities.RockOffTrack || stored.Comment != "slipping" || stored.Title != "Renovate kitchen" {
		t.Fatalf("stored rock=%+v", stored)
	}
	if stored.StatusChangedAt == nil {
		t.Fatal("statusChangedAt should be set")
	}

	if n := e.RefreshIssues(ctx); n != 0 {
		t.Fatalf("RefreshIssues created %d, want 0", n)
	}
	issues, err := f.repo.ListIssues(ctx, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 1 {
		t.Fatalf("issues=%d, want 1", len(issues))
	}
	issue := issues[0]
	if issue.Name != "Off-track: Renovate kitchen" || issue.SourceRockID != rock.ID ||
		issue.Source != entities.SourceRock || issue.Priority != entities.PriorityMedium || issue.Status != entities.IssueOpen {
		t.Fatalf("issue=%+v", issue)
	}
	local, ok := e.WorkingSet().Issues().Find(issue.ID)
	if !ok || local.Status != "open" || local.SourceRockID != rock.ID {
		t.Fatalf("working set issue=%+v ok=%v", local, ok)
	}

	if err := e.GoTo(5); err != nil {
		t.Fatal(err)
	}
	_ = e.UpdateField(StepClose, ClosePatch{User1Rating: Rating(8), User2Rating: Rating(9)})
	f.clock.Advance(10 * time.Minute)
	_, summary, err := e.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if got := summary.Steps.Checkin(); got.User1Word != "tired" || got.User2Word != "hopeful" {
		t.Fatalf("checkin=%+v", got)
	}
	if got := summary.Steps.QualityOfLife().Ratings["physical_user1"]; got != 7 {
		t.Fatalf("physical_user1=%d", got)
	}
	if r, _ := summary.Steps.Rocks().Find(rock.ID); r.Status != "off-track" || r.Comment != "slipping" {
		t.Fatalf("rock entry=%+v", r)
	}
	if c := summary.Steps.Close(); *c.User1Rating != 8 || *c.User2Rating != 9 {
		t.Fatalf("close=%+v", c)
	}
	if summary.DurationMs != (15 * time.Minute).Milliseconds() {
		t.Fatalf("DurationMs=%d", summary.DurationMs)
	}
	if summary.PerSectionDurationsMs[StepQualityOfLife] != (5 * time.Minute).Milliseconds() {
		t.Fatalf("per section=%v", summary.PerSectionDurationsMs)
	}

	list, _ := ListSummaries(ctx, f.store, testOwner.ID, 0)
	if len(list) != 1 || list[0].ID != summary.ID {
		t.Fatalf("summaries=%+v", list)
	}
}

func TestRefreshIssuesDerivesForUnsyncedRock(t *testing.T) {
	f := newFixture(t)
	rock := f.createRock(t, "Budget")
	e := f.engine
	ctx := context.Background()

	_ = e.UpdateField(StepRocks, RockPatch{RockID: rock.ID, Status: Text("off-track")})
	if n := e.RefreshIssues(ctx); n != 1 {
		t.Fatalf("first RefreshIssues=%d, want 1", n)
	}
	if n := e.RefreshIssues(ctx); n != 0 {
		t.Fatalf("second RefreshIssues=%d, want 0", n)
	}
	issues := e.WorkingSet().Issues()
	if len(issues) != 1 || issues[0].Name != "Off-track: Budget" {
		t.Fatalf("issues=%+v", issues)
	}
	found := false
	for _, n := range f.notes.Notices() {
		if n.Severity == notify.SeverityInfo {
			found = true
		}
	}
	if !found {
		t.Fatal("derived issue should be announced")
	}
}

func TestBoardOverlaysWorkingSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rock := f.createRock(t, "Trip")
	todo, _ := f.repo.CreateTodo(ctx, testOwner, entities.Todo{Title: "Book flights"})
	archived, _ := f.repo.CreateIssue(ctx, testOwner, entities.Issue{Name: "Old"})
	_ = f.repo.Archive(ctx, testOwner, storage.CollectionIssues, archived.ID)
	_, _ = f.repo.CreateQualityOfLife(ctx, testOwner, entities.QualityOfLife{Ratings: map[string]int{"physical_user1": 6}})

	_ = f.engine.UpdateField(StepRocks, RockPatch{RockID: rock.ID, Status: Text("off-track"), Comment: Text("late")})

	board, err := f.engine.Board(ctx)
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	if len(board.Rocks) != 1 || board.Rocks[0].Status != "off-track" || board.Rocks[0].Note != "late" {
		t.Fatalf("rocks=%+v", board.Rocks)
	}
	if len(board.Todos) != 1 || board.Todos[0].ID != todo.ID || board.Todos[0].Status != "incomplete" {
		t.Fatalf("todos=%+v", board.Todos)
	}
	if len(board.Issues) != 0 {
		t.Fatalf("archived issue listed: %+v", board.Issues)
	}
	if board.QualityOfLife == nil || board.QualityOfLife.Ratings["physical_user1"] != 6 {
		t.Fatalf("qol=%+v", board.QualityOfLife)
	}
}

func TestRestoreFillsUntouchedSteps(t *testing.T) {
	f := newFixture(t)
	mustWait(t, f.engine.SaveStep(StepCheckin, Checkin{User1Word: "calm", User2Word: "busy"}))
	mustWait(t, f.engine.SaveStep(StepClose, Close{Notes: "later"}))
	f.engine.Close()

	next := newFixtureOn(t, f.store, f.clock)
	_ = next.engine.UpdateField(StepClose, ClosePatch{Notes: Text("now")})
	n, err := next.engine.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("restored=%d, want 1", n)
	}
	ws := next.engine.WorkingSet()
	if ws.Checkin().User1Word != "calm" {
		t.Fatalf("checkin=%+v", ws.Checkin())
	}
	if ws.Close().Notes != "now" {
		t.Fatalf("close notes=%q, local edit should win", ws.Close().Notes)
	}
}

func TestOnTickReceivesDisplay(t *testing.T) {
	ticks := make(chan Elapsed, 4)
	f := newFixture(t, OnTick(func(e Elapsed) {
		select {
		case ticks <- e:
		default:
		}
	}))
	f.clock.Advance(time.Second)
	select {
	case e := <-ticks:
		if e.Step != StepCheckin {
			t.Fatalf("tick step=%s", e.Step)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick")
	}
}
