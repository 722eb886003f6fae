package meeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"huddle/internal/clock"
	"huddle/internal/entities"
	"huddle/internal/i18n"
	"huddle/internal/notify"
	"huddle/internal/storage"
	"huddle/internal/syncer"
)

var (
	// ErrInvalidStep 步骤索引或 ID 越界，属于编程错误，从不截断
	// ErrInvalidStep marks an out-of-range index or unknown step id. It is a
	// programming error; indexes are never clamped.
	ErrInvalidStep     = errors.New("invalid meeting step")
	ErrMeetingComplete = errors.New("meeting already complete")
	ErrCompleting      = errors.New("meeting completion in progress")
	ErrWrongStep       = errors.New("payload does not belong to step")
	ErrNotFinalStep    = errors.New("meeting can only be completed from the final step")
)

const (
	defaultTickInterval = time.Second
	defaultSaveTimeout  = 10 * time.Second
)

// SaveResult 一次保存的结果 / SaveResult reports what one save did
type SaveResult struct {
	Step          StepID
	Snapshot      StepSnapshot
	Synced        []syncer.Outcome
	DerivedIssues []entities.Issue
}

// Engine 会议流程状态机 / Engine is the meeting flow state machine.
//
// The working set is mutated synchronously; snapshot writes and status
// syncs run as background tasks. Saves for the same step run in call order,
// so the last save wins in the store.
type Engine struct {
	owner       entities.Owner
	store       storage.Store
	repo        *entities.Repo
	adapter     *syncer.Adapter
	notifier    notify.Notifier
	clock       clock.Clock
	logger      *slog.Logger
	tick        time.Duration
	saveTimeout time.Duration
	onComplete  func(Summary)
	onTick      func(Elapsed)
	newID       func() string

	timer       *SectionTimer
	meetingDate string

	mu      sync.Mutex
	current int
	ws      WorkingSet
	// synced 最近一次推送到存储的状态，用于变更检测
	// synced holds the last value pushed per entity, for change detection
	synced   map[string]string
	lastSave map[StepID]*Task[SaveResult]
	summary  *Summary
	// completing 总结写入期间为 true，此时拒绝修改
	// completing is true while the summary is being written; edits are refused
	completing bool

	tasks     sync.WaitGroup
	closeOnce sync.Once
}

// Option 定制 Engine / Option customizes an Engine
type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithTickInterval 计时器刷新间隔 / display timer refresh interval
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tick = d
		}
	}
}

func WithSaveTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.saveTimeout = d
		}
	}
}

// OnComplete 会议完成后回调 / called once after the summary is persisted
func OnComplete(fn func(Summary)) Option {
	return func(e *Engine) { e.onComplete = fn }
}

// OnTick 计时器刷新回调，在计时器 goroutine 上执行
// OnTick runs on a timer goroutine after each display recomputation
func OnTick(fn func(Elapsed)) Option {
	return func(e *Engine) { e.onTick = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New 开始一次会议：当前步骤为 checkin，计时器立即启动
// New starts a meeting session at the first step and starts its timers.
// adapter may be nil, in which case one with issue derivation is built on
// store. Close must be called when the hosting view goes away.
func New(owner entities.Owner, store storage.Store, adapter *syncer.Adapter, opts ...Option) (*Engine, error) {
	if !owner.Valid() {
		return nil, errors.New("meeting: owner is empty")
	}
	if store == nil {
		return nil, errors.New("meeting: store is nil")
	}
	e := &Engine{
		owner:       owner,
		store:       store,
		notifier:    notify.Discard,
		clock:       clock.Real(),
		logger:      slog.Default(),
		tick:        defaultTickInterval,
		saveTimeout: defaultSaveTimeout,
		newID:       storage.NewID,
		ws:          NewWorkingSet(),
		synced:      make(map[string]string),
		lastSave:    make(map[StepID]*Task[SaveResult]),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.repo = entities.NewRepo(store, e.clock.Now)
	if adapter == nil {
		adapter = syncer.NewAdapter(store, syncer.NewDeriver(e.repo, e.logger),
			syncer.WithClock(e.clock.Now),
			syncer.WithLogger(e.logger),
		)
	}
	e.adapter = adapter

	e.timer = NewSectionTimer(e.clock, e.tick, registry[0].ID)
	e.meetingDate = e.timer.StartedAt().Format(time.DateOnly)
	e.timer.Start(e.onTick)
	e.logger.Info("meeting started", "owner", owner.ID, "date", e.meetingDate)
	return e, nil
}

// --- Read accessors ---

func (e *Engine) Owner() entities.Owner { return e.owner }

// MeetingDate 会议日期，快照按此区分 / the date snapshots are keyed by
func (e *Engine) MeetingDate() string { return e.meetingDate }

func (e *Engine) StartedAt() time.Time { return e.timer.StartedAt() }

func (e *Engine) SectionStartedAt() time.Time { return e.timer.SectionStartedAt() }

func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) CurrentStep() Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return registry[e.current]
}

// WorkingSet returns a deep copy of the working set.
func (e *Engine) WorkingSet() WorkingSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ws.Clone()
}

// Payload returns a copy of the step's payload, if the step was touched.
func (e *Engine) Payload(id StepID) (Payload, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ws.Get(id)
}

// IsStepComplete 仅用于进度展示 / advisory progress only
func (e *Engine) IsStepComplete(id StepID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ws.IsStepComplete(id)
}

// Progress returns IsStepComplete for every step in order.
func (e *Engine) Progress() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]bool, len(registry))
	for i, s := range registry {
		out[i] = e.ws.IsStepComplete(s.ID)
	}
	return out
}

// Elapsed 按当前时钟计算 / fresh values from the clock
func (e *Engine) Elapsed() Elapsed { return e.timer.Measure() }

// Display 计时器最近一次刷新的值 / last values the repeaters computed
func (e *Engine) Display() Elapsed { return e.timer.Display() }

// TimersRunning reports whether the display repeaters are active.
func (e *Engine) TimersRunning() bool { return e.timer.Running() }

// Summary returns the persisted summary once the meeting is complete.
func (e *Engine) Summary() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return Summary{}, false
	}
	return *e.summary, true
}

func (e *Engine) Completed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary != nil
}

// --- Navigation ---

// GoTo 跳转到任意有效步骤并重置本节计时；不触发持久化
// GoTo moves to any valid index and resets the section clock. It never
// persists anything. Out-of-range indexes return ErrInvalidStep.
func (e *Engine) GoTo(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goToLocked(i)
}

func (e *Engine) goToLocked(i int) error {
	if err := e.closedLocked(); err != nil {
		return err
	}
	step, ok := StepAt(i)
	if !ok {
		return fmt.Errorf("%w: index %d outside 0..%d", ErrInvalidStep, i, len(registry)-1)
	}
	e.current = i
	e.timer.Switch(step.ID)
	e.logger.Debug("meeting step", "step", step.ID)
	return nil
}

// Retreat 返回上一步，第一步时不做任何事 / no-op at the first step
func (e *Engine) Retreat() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.closedLocked(); err != nil {
		return err
	}
	if e.current == 0 {
		return nil
	}
	return e.goToLocked(e.current - 1)
}

// Advance 前进一步。从 checkin 前进时先保存 checkin（若有数据）；
// 在最后一步时完成会议并返回总结。
// Advance moves forward. Leaving checkin first saves the checkin payload,
// when there is one, and returns that save's task. On the final step it
// completes the meeting and returns the summary instead.
func (e *Engine) Advance(ctx context.Context) (*Task[SaveResult], *Summary, error) {
	e.mu.Lock()
	if err := e.closedLocked(); err != nil {
		e.mu.Unlock()
		return nil, nil, err
	}
	if e.current == len(registry)-1 {
		e.mu.Unlock()
		s, err := e.Complete(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, &s, nil
	}

	var job *saveJob
	if registry[e.current].ID == StepCheckin {
		if p, ok := e.ws.payloads[StepCheckin]; ok {
			job = e.prepareSaveLocked(StepCheckin, p)
		}
	}
	err := e.goToLocked(e.current + 1)
	e.mu.Unlock()

	if job == nil {
		return nil, nil, err
	}
	return e.launch(job), nil, err
}

// --- Working set ---

// UpdateField 将补丁合并到工作集，纯内存操作
// UpdateField merges patch into the working set. Nothing is persisted.
func (e *Engine) UpdateField(id StepID, patch Patch) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStep, id)
	}
	if patch == nil || patch.Step() != id {
		return fmt.Errorf("%w: %T for %s", ErrWrongStep, patch, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.closedLocked(); err != nil {
		return err
	}
	e.ws.Apply(patch)
	return nil
}

// SaveStep 写入工作集并在后台持久化快照；rocks/todos/issues 随后同步变更的条目。
// 同步失败会通知用户，但不会回滚已写入的快照。
// SaveStep stores payload in the working set, then in the background
// upserts the step snapshot and, for rocks, todos and issues, syncs every
// changed entry. Failures are reported through the notifier and the task;
// the snapshot is never rolled back and the working set stays as edited.
func (e *Engine) SaveStep(id StepID, payload Payload) *Task[SaveResult] {
	if !id.Valid() {
		return resolvedTask(SaveResult{Step: id}, fmt.Errorf("%w: %q", ErrInvalidStep, id))
	}
	if payload == nil || payload.Step() != id {
		return resolvedTask(SaveResult{Step: id}, fmt.Errorf("%w: %T for %s", ErrWrongStep, payload, id))
	}
	e.mu.Lock()
	if err := e.closedLocked(); err != nil {
		e.mu.Unlock()
		return resolvedTask(SaveResult{Step: id}, err)
	}
	e.ws.Set(payload)
	job := e.prepareSaveLocked(id, e.ws.payloads[id])
	e.mu.Unlock()
	return e.launch(job)
}

// SaveCurrent 保存当前步骤；未编辑过的步骤返回 nil
// SaveCurrent saves the current step; it returns nil when the step is untouched
func (e *Engine) SaveCurrent() *Task[SaveResult] {
	e.mu.Lock()
	id := registry[e.current].ID
	p, ok := e.ws.Get(id)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return e.SaveStep(id, p)
}

// SetRockStatus 修改会议中的 Rock 状态并立即保存 rocks 步骤
// SetRockStatus records a local rock status and saves the rocks step
func (e *Engine) SetRockStatus(rockID, title, status, comment string) *Task[SaveResult] {
	return e.setStatus(StepRocks, storage.CollectionRocks, status, RockPatch{
		RockID:  rockID,
		Title:   optional(title),
		Status:  Text(status),
		Comment: Text(comment),
	})
}

func (e *Engine) SetTodoStatus(todoID, title, status, notes string) *Task[SaveResult] {
	return e.setStatus(StepTodos, storage.CollectionTodos, status, TodoPatch{
		TodoID: todoID,
		Title:  optional(title),
		Status: Text(status),
		Notes:  Text(notes),
	})
}

func (e *Engine) SetIssueStatus(issueID, name, status, notes string) *Task[SaveResult] {
	return e.setStatus(StepIssues, storage.CollectionIssues, status, IssuePatch{
		IssueID: issueID,
		Name:    optional(name),
		Status:  Text(status),
		Notes:   Text(notes),
	})
}

func (e *Engine) setStatus(id StepID, collection, status string, patch Patch) *Task[SaveResult] {
	if _, err := syncer.ToStore(collection, status); err != nil {
		return resolvedTask(SaveResult{Step: id}, err)
	}
	e.mu.Lock()
	if err := e.closedLocked(); err != nil {
		e.mu.Unlock()
		return resolvedTask(SaveResult{Step: id}, err)
	}
	e.ws.Apply(patch)
	job := e.prepareSaveLocked(id, e.ws.payloads[id])
	e.mu.Unlock()
	return e.launch(job)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- Background saves ---

type pendingSync struct {
	prev string
	had  bool
	next string
}

type saveJob struct {
	step     StepID
	snapshot StepSnapshot
	changes  []syncer.Change
	pending  map[string]pendingSync
	labels   map[string]string
	prev     *Task[SaveResult]
	task     *Task[SaveResult]
}

func (e *Engine) prepareSaveLocked(id StepID, payload Payload) *saveJob {
	job := &saveJob{
		step: id,
		snapshot: StepSnapshot{
			OwnerID:     e.owner.ID,
			StepID:      id,
			MeetingDate: e.meetingDate,
			Payload:     payload.clone(),
			SavedAt:     e.clock.Now(),
		},
		pending: make(map[string]pendingSync),
		labels:  make(map[string]string),
		prev:    e.lastSave[id],
		task:    newTask[SaveResult](),
	}
	e.lastSave[id] = job.task

	add := func(collection, entityID, label, status, note string) {
		if entityID == "" {
			return
		}
		if status == "" {
			status = syncer.Baseline(collection)
		}
		key := collection + "/" + entityID
		value := status + "\x00" + note
		prev, had := e.synced[key]
		if had && prev == value {
			return
		}
		fields := syncer.StatusFields{Status: status}
		if note != "" {
			fields.Note = syncer.NoteOf(note)
		}
		job.changes = append(job.changes, syncer.Change{Collection: collection, EntityID: entityID, Fields: fields})
		job.pending[key] = pendingSync{prev: prev, had: had, next: value}
		job.labels[key] = label
		// 乐观更新，失败时回退 / optimistic; reverted on failure
		e.synced[key] = value
	}
	switch p := payload.(type) {
	case Rocks:
		for _, r := range p {
			add(storage.CollectionRocks, r.RockID, r.Title, r.Status, r.Comment)
		}
	case Todos:
		for _, t := range p {
			add(storage.CollectionTodos, t.TodoID, t.Title, t.Status, t.Notes)
		}
	case Issues:
		for _, is := range p {
			add(storage.CollectionIssues, is.IssueID, is.Name, is.Status, is.Notes)
		}
	}
	return job
}

func (e *Engine) launch(job *saveJob) *Task[SaveResult] {
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		// 同一步骤的保存按调用顺序执行 / saves of one step run in call order
		<-job.prev.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.saveTimeout)
		defer cancel()
		res, err := e.runSave(ctx, job)
		job.task.resolve(res, err)
	}()
	return job.task
}

func (e *Engine) runSave(ctx context.Context, job *saveJob) (SaveResult, error) {
	res := SaveResult{Step: job.step}
	var errs []error

	snap, _, err := SaveSnapshot(ctx, e.store, job.snapshot)
	if err != nil {
		e.logger.Warn("snapshot save failed", "step", job.step, "err", err)
		e.notifier.Notify(notify.Notice{
			Message:  i18n.T("notify.save_failed", i18n.T(job.step.TitleKey()), err),
			Severity: notify.SeverityWarning,
		})
		errs = append(errs, err)
	} else {
		res.Snapshot = snap
		e.logger.Debug("snapshot saved", "step", job.step, "id", snap.ID)
	}

	if len(job.changes) == 0 {
		return res, errors.Join(errs...)
	}
	res.Synced = e.adapter.SyncBatch(ctx, e.owner, job.changes)
	for _, o := range res.Synced {
		key := o.Change.Collection + "/" + o.Change.EntityID
		if o.Err != nil {
			e.revertSynced(key, job.pending[key])
			label := job.labels[key]
			if label == "" {
				label = o.Change.EntityID
			}
			e.notifier.Notify(notify.Notice{
				Message:  i18n.T("notify.sync_failed", fmt.Sprintf("%s %q", entities.Kind(o.Change.Collection), label), o.Err),
				Severity: notify.SeverityWarning,
			})
			errs = append(errs, o.Err)
			continue
		}
		if issue := o.Result.DerivedIssue; issue != nil {
			res.DerivedIssues = append(res.DerivedIssues, *issue)
			e.reflectIssue(*issue)
		}
	}
	return res, errors.Join(errs...)
}

// revertSynced 同步失败时恢复基线，手动重试会再次推送
// revertSynced restores the baseline so a manual retry pushes again
func (e *Engine) revertSynced(key string, p pendingSync) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.synced[key] != p.next {
		return
	}
	if p.had {
		e.synced[key] = p.prev
	} else {
		delete(e.synced, key)
	}
}

// reflectIssue 将新派生的 Issue 加入工作集，无需重新查询
// reflectIssue adds a derived issue to the working set without a re-fetch
func (e *Engine) reflectIssue(issue entities.Issue) {
	e.mu.Lock()
	if e.summary != nil {
		e.mu.Unlock()
		return
	}
	list, _ := e.ws.payloads[StepIssues].(Issues)
	if _, ok := list.Find(issue.ID); ok {
		e.mu.Unlock()
		return
	}
	status := syncer.ToLocal(storage.CollectionIssues, issue.Status)
	list = append(list.clone().(Issues), IssueEntry{
		IssueID:      issue.ID,
		Name:         issue.Name,
		Status:       status,
		Source:       issue.Source,
		SourceRockID: issue.SourceRockID,
	})
	e.ws.Set(list)
	e.synced[storage.CollectionIssues+"/"+issue.ID] = status + "\x00"
	e.mu.Unlock()

	e.notifier.Notify(notify.Notice{
		Message:  i18n.T("notify.derived_issue", issue.Name),
		Severity: notify.SeverityInfo,
	})
}

// RefreshIssues 为工作集中偏离轨道的 Rock 确保派生 Issue（渲染 Issues 步骤前调用）。
// 派生失败只记录日志。
// RefreshIssues ensures a derived issue for every off-track rock in the
// working set; the issues view calls it before rendering. Failures are
// logged only. It returns how many issues were created.
func (e *Engine) RefreshIssues(ctx context.Context) int {
	deriver := e.adapter.Deriver()
	if deriver == nil {
		return 0
	}
	rocks := e.WorkingSet().Rocks()
	created := 0
	for _, r := range rocks {
		if r.Status != syncer.OffTrack {
			continue
		}
		title, description := r.Title, ""
		rock, err := e.repo.GetRock(ctx, e.owner, r.RockID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			e.logger.Warn("rock not owned, skipping derivation", "rock", r.RockID)
			continue
		case err == nil:
			if title == "" {
				title = rock.Title
			}
			description = rock.Description
		}
		issue, ok, err := deriver.EnsureIssueForOffTrackRock(ctx, e.owner, r.RockID, title, description)
		if err != nil {
			e.logger.Error("issue derivation failed", "rock", r.RockID, "err", err)
			continue
		}
		if ok {
			created++
			e.reflectIssue(issue)
		}
	}
	return created
}

// Restore 用当天已保存的快照填充尚未编辑的步骤，返回恢复的步骤数
// Restore fills untouched steps from snapshots saved earlier for the same
// meeting date and returns how many steps it restored
func (e *Engine) Restore(ctx context.Context) (int, error) {
	snaps, err := LoadSnapshots(ctx, e.store, e.owner.ID, e.meetingDate)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.closedLocked(); err != nil {
		return 0, err
	}
	restored := 0
	for _, snap := range snaps {
		if e.ws.Has(snap.StepID) {
			continue
		}
		e.ws.Set(snap.Payload)
		restored++
	}
	return restored, nil
}

// --- Completion ---

// Complete 组装并持久化会议总结，停止计时器并通知调用方。
// 持久化失败时会话保持打开，可手动重试。
// Complete assembles and persists the summary, stops the timers and calls
// the OnComplete hook. Incomplete steps never block it. When persisting
// fails the session stays open for a manual retry.
func (e *Engine) Complete(ctx context.Context) (Summary, error) {
	e.mu.Lock()
	if err := e.closedLocked(); err != nil {
		e.mu.Unlock()
		return Summary{}, err
	}
	if e.current != len(registry)-1 {
		e.mu.Unlock()
		return Summary{}, ErrNotFinalStep
	}

	now := e.clock.Now()
	startedAt := e.timer.StartedAt()
	durationMs := now.Sub(startedAt).Milliseconds()
	if durationMs < 1 {
		durationMs = 1
	}
	perSection := make(map[StepID]int64)
	for id, d := range e.timer.PerSection(now) {
		perSection[id] = d.Milliseconds()
	}
	summary := Summary{
		ID:                    e.newID(),
		OwnerID:               e.owner.ID,
		StartedAt:             startedAt,
		EndedAt:               now,
		DurationMs:            durationMs,
		PerSectionDurationsMs: perSection,
		Steps:                 e.ws.Clone(),
		Status:                SummaryStatusCompleted,
	}
	e.completing = true
	e.mu.Unlock()

	// 写入期间不持有锁，View 和后台任务仍可读取
	saved, err := SaveSummary(ctx, e.store, summary)

	e.mu.Lock()
	e.completing = false
	if err != nil {
		e.mu.Unlock()
		e.logger.Error("meeting summary save failed", "err", err)
		e.notifier.Notify(notify.Notice{
			Message:  i18n.T("notify.complete_failed", err),
			Severity: notify.SeverityError,
		})
		return Summary{}, err
	}
	e.summary = &saved
	e.mu.Unlock()

	e.timer.Stop()
	e.logger.Info("meeting complete", "id", saved.ID, "duration_ms", saved.DurationMs)
	if e.onComplete != nil {
		e.onComplete(saved)
	}
	return saved, nil
}

// closedLocked 会话已完成或正在完成时返回错误 / refuses edits once completion started
func (e *Engine) closedLocked() error {
	switch {
	case e.summary != nil:
		return ErrMeetingComplete
	case e.completing:
		return ErrCompleting
	}
	return nil
}

// --- Lifecycle ---

// Wait 等待所有后台保存完成 / Wait blocks until every background save finished
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止计时器并等待后台保存结束；放弃会议时无需其他清理
// Close stops the timers and waits for pending saves. Abandoning a meeting
// needs nothing else: saved snapshots stay and no summary is written.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.timer.Stop()
		e.tasks.Wait()
		e.logger.Debug("meeting closed", "complete", e.Completed())
	})
}
