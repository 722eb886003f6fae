// Package tui 全屏会议界面：步骤标签、编辑区、计时侧边栏和状态栏
// Package tui is the full-screen meeting interface built on Bubble Tea:
// step tabs, a per-step editor, a sidebar with the timers and a status bar
// for save results and notices.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"huddle/internal/entities"
	"huddle/internal/i18n"
	"huddle/internal/meeting"
	"huddle/internal/notify"
	"huddle/internal/storage"
	"huddle/internal/syncer"
)

// maxNotices 侧边栏保留的通知数 / notices kept in the sidebar
const maxNotices = 5

// --- 消息类型 / Message types ---

// TickMsg 计时器刷新 / TickMsg carries refreshed timer values
type TickMsg struct{ Elapsed meeting.Elapsed }

// NoticeMsg 引擎发出的通知 / NoticeMsg carries a notice from the engine
type NoticeMsg struct{ Notice notify.Notice }

// BoardMsg 看板加载结果 / BoardMsg is the result of loading the board
type BoardMsg struct {
	Board meeting.Board
	Err   error
}

// SaveDoneMsg 后台保存结束 / SaveDoneMsg reports a finished background save
type SaveDoneMsg struct {
	Result meeting.SaveResult
	Err    error
}

// RecapMsg 会议回顾生成结果 / RecapMsg carries the generated recap
type RecapMsg struct {
	Text string
	Err  error
}

// RecapFunc 在会议完成后生成回顾 / produces a recap once the meeting completes
type RecapFunc func(context.Context, meeting.Summary) (string, error)

// App Bubble Tea 主 Model
// App is the main Bubble Tea model
type App struct {
	ctx    context.Context
	engine *meeting.Engine
	bridge *Bridge
	names  meeting.Partners
	recap  RecapFunc

	// 布局 / Layout
	width  int
	height int

	// 编辑区 / Editor
	fields []field
	focus  int

	// 列表步骤 / Status list steps
	board  meeting.Board
	loaded bool
	cursor int
	onList bool
	note   textinput.Model

	// 状态 / State
	elapsed   meeting.Elapsed
	saving    int
	status    string
	lastError string
	notices   []notify.Notice

	// 完成后 / After completion
	summary     *meeting.Summary
	summaryView viewport.Model
	recapText   string

	// 配置 / Config
	theme  Theme
	keys   KeyMap
	locale *i18n.Catalog
}

type Option func(*App)

func WithPartners(p meeting.Partners) Option {
	return func(a *App) { a.names = p }
}

// WithBridge 接收引擎的通知和计时 / receives the engine's notices and ticks
func WithBridge(b *Bridge) Option {
	return func(a *App) { a.bridge = b }
}

func WithRecap(fn RecapFunc) Option {
	return func(a *App) { a.recap = fn }
}

// NewApp 创建 TUI 应用
// NewApp creates the meeting screen for a running engine
func NewApp(ctx context.Context, engine *meeting.Engine, opts ...Option) App {
	a := App{
		ctx:    ctx,
		engine: engine,
		status: i18n.T("status.ready"),
		theme:  DarkTheme(),
		keys:   DefaultKeyMap(),
		locale: i18n.Current(),
	}
	for _, opt := range opts {
		opt(&a)
	}
	if a.names.User1 == "" {
		a.names.User1 = "Partner 1"
	}
	if a.names.User2 == "" {
		a.names.User2 = "Partner 2"
	}
	a.elapsed = engine.Display()
	a.enterStep()
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.bridge.listen(), a.loadBoard())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case TickMsg:
		a.elapsed = msg.Elapsed
		return a, a.bridge.listen()

	case NoticeMsg:
		a.pushNotice(msg.Notice)
		return a, a.bridge.listen()

	case BoardMsg:
		if msg.Err != nil {
			a.lastError = msg.Err.Error()
			return a, nil
		}
		a.board = msg.Board
		a.loaded = true
		if n := len(a.items()); a.cursor >= n {
			a.cursor = max(n-1, 0)
		}
		a.syncNote()
		return a, nil

	case SaveDoneMsg:
		if a.saving > 0 {
			a.saving--
		}
		switch {
		case msg.Err == nil:
			a.status = i18n.T("status.saved", i18n.T(msg.Result.Step.TitleKey()))
		case syncer.IsSyncError(msg.Err):
			// 已通过通知展示 / already surfaced as a notice
			a.status = i18n.T("status.ready")
		default:
			a.lastError = msg.Err.Error()
		}
		return a, a.loadBoard()

	case RecapMsg:
		if msg.Err != nil {
			a.pushNotice(notify.Notice{Message: i18n.T("notify.recap_failed", msg.Err), Severity: notify.SeverityWarning})
			return a, nil
		}
		a.recapText = msg.Text
		a.refreshSummary()
		return a, nil

	case tea.MouseMsg:
		if a.summary != nil {
			var cmd tea.Cmd
			a.summaryView, cmd = a.summaryView.Update(msg)
			return a, cmd
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.updateInput(msg)
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Quit) {
		return a, tea.Quit
	}
	if a.summary != nil {
		switch msg.String() {
		case "q", "esc", "enter":
			return a, tea.Quit
		}
		var cmd tea.Cmd
		a.summaryView, cmd = a.summaryView.Update(msg)
		return a, cmd
	}

	a.lastError = ""
	switch {
	case key.Matches(msg, a.keys.Next):
		return a.advance()
	case key.Matches(msg, a.keys.Back):
		return a.navigated(a.engine.Retreat())
	case key.Matches(msg, a.keys.Jump):
		i, _ := jumpIndex(msg.String())
		return a.navigated(a.engine.GoTo(i))
	case key.Matches(msg, a.keys.Save):
		return a, a.track(a.engine.SaveCurrent())
	case key.Matches(msg, a.keys.NextField):
		a.moveFocus(1)
		return a, nil
	case key.Matches(msg, a.keys.PrevField):
		a.moveFocus(-1)
		return a, nil
	}

	step := a.engine.CurrentStep()
	if step.Renderer == meeting.RendererStatusList {
		return a.handleListKey(msg)
	}
	if step.Renderer == meeting.RendererClose && key.Matches(msg, a.keys.Submit) {
		return a.advance()
	}
	return a.updateInput(msg)
}

// handleListKey 列表步骤：上下选择，空格切换状态，回车保存备注
// handleListKey drives status list steps: up/down selects, space cycles
// the status, enter applies the comment
func (a App) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := a.items()
	switch {
	case key.Matches(msg, a.keys.Up) && a.onList:
		if a.cursor > 0 {
			a.cursor--
			a.syncNote()
		}
		return a, nil
	case key.Matches(msg, a.keys.Down) && a.onList:
		if a.cursor < len(items)-1 {
			a.cursor++
			a.syncNote()
		}
		return a, nil
	case key.Matches(msg, a.keys.Cycle) && a.onList:
		if len(items) == 0 {
			return a, nil
		}
		item := items[a.cursor]
		item.Status = nextStatus(a.collection(), item.Status)
		return a, a.setStatus(item)
	case key.Matches(msg, a.keys.Submit) && !a.onList:
		if len(items) == 0 {
			return a, nil
		}
		item := items[a.cursor]
		item.Note = strings.TrimSpace(a.note.Value())
		return a, a.setStatus(item)
	}
	return a.updateInput(msg)
}

// updateInput 将按键交给聚焦的输入框，值变化时立即写入工作集
// updateInput forwards a message to the focused input and merges any
// change into the working set right away, so edits survive navigation
func (a App) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.summary != nil {
		return a, nil
	}
	if a.engine.CurrentStep().Renderer == meeting.RendererStatusList {
		if a.onList {
			return a, nil
		}
		var cmd tea.Cmd
		a.note, cmd = a.note.Update(msg)
		return a, cmd
	}
	if len(a.fields) == 0 {
		return a, nil
	}
	f := &a.fields[a.focus]
	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if value := f.input.Value(); value != before {
		if patch, ok := f.patch(value); ok {
			if err := a.engine.UpdateField(a.engine.CurrentStep().ID, patch); err != nil {
				a.setError(err)
			}
		}
	}
	return a, cmd
}

func (a App) advance() (tea.Model, tea.Cmd) {
	task, summary, err := a.engine.Advance(a.ctx)
	if err != nil {
		a.setError(err)
		return a, nil
	}
	if summary != nil {
		return a.completed(*summary)
	}
	saveCmd := a.track(task)
	a.enterStep()
	return a, tea.Batch(saveCmd, a.loadBoard())
}

func (a App) navigated(err error) (tea.Model, tea.Cmd) {
	if err != nil {
		a.setError(err)
		return a, nil
	}
	a.enterStep()
	return a, a.loadBoard()
}

func (a App) completed(s meeting.Summary) (tea.Model, tea.Cmd) {
	a.summary = &s
	a.status = i18n.T("status.complete")
	a.refreshSummary()
	if a.recap == nil {
		return a, nil
	}
	ctx, fn := a.ctx, a.recap
	return a, func() tea.Msg {
		text, err := fn(ctx, s)
		return RecapMsg{Text: text, Err: err}
	}
}

// --- 状态辅助 / State helpers ---

// enterStep 为当前步骤重建编辑区 / rebuilds the editor for the current step
func (a *App) enterStep() {
	step := a.engine.CurrentStep()
	a.fields = buildFields(step, a.engine.WorkingSet(), a.names)
	a.focus = 0
	if len(a.fields) > 0 {
		a.fields[0].input.Focus()
	}
	a.cursor = 0
	a.loaded = false
	a.onList = step.Renderer == meeting.RendererStatusList
	a.note = newInput("", 48, 500)
}

func (a *App) moveFocus(delta int) {
	if a.engine.CurrentStep().Renderer == meeting.RendererStatusList {
		a.onList = !a.onList
		if a.onList {
			a.note.Blur()
		} else {
			a.note.Focus()
		}
		return
	}
	n := len(a.fields)
	if n == 0 {
		return
	}
	a.fields[a.focus].input.Blur()
	a.focus = ((a.focus+delta)%n + n) % n
	a.fields[a.focus].input.Focus()
}

func (a *App) syncNote() {
	items := a.items()
	if a.cursor < len(items) {
		a.note.SetValue(items[a.cursor].Note)
		return
	}
	a.note.SetValue("")
}

// items 当前列表步骤的条目 / entries of the current status list step
func (a App) items() []meeting.BoardItem {
	switch a.engine.CurrentStep().ID {
	case meeting.StepRocks:
		return a.board.Rocks
	case meeting.StepTodos:
		return a.board.Todos
	case meeting.StepIssues:
		return a.board.Issues
	}
	return nil
}

func (a App) collection() string {
	switch a.engine.CurrentStep().ID {
	case meeting.StepRocks:
		return storage.CollectionRocks
	case meeting.StepTodos:
		return storage.CollectionTodos
	case meeting.StepIssues:
		return storage.CollectionIssues
	}
	return ""
}

// setStatus 立即更新看板显示并在后台保存 / updates the board optimistically and saves
func (a *App) setStatus(item meeting.BoardItem) tea.Cmd {
	var task *meeting.Task[meeting.SaveResult]
	switch a.engine.CurrentStep().ID {
	case meeting.StepRocks:
		task = a.engine.SetRockStatus(item.ID, item.Title, item.Status, item.Note)
	case meeting.StepTodos:
		task = a.engine.SetTodoStatus(item.ID, item.Title, item.Status, item.Note)
	case meeting.StepIssues:
		task = a.engine.SetIssueStatus(item.ID, item.Title, item.Status, item.Note)
	default:
		return nil
	}
	items := append([]meeting.BoardItem(nil), a.items()...)
	if a.cursor < len(items) {
		items[a.cursor] = item
	}
	switch a.engine.CurrentStep().ID {
	case meeting.StepRocks:
		a.board.Rocks = items
	case meeting.StepTodos:
		a.board.Todos = items
	case meeting.StepIssues:
		a.board.Issues = items
	}
	return a.track(task)
}

// track 等待后台保存并回报 SaveDoneMsg / waits for a save off the event loop
func (a *App) track(task *meeting.Task[meeting.SaveResult]) tea.Cmd {
	if task == nil {
		a.status = i18n.T("status.ready")
		return nil
	}
	a.saving++
	a.status = i18n.T("status.saving")
	ctx := a.ctx
	return func() tea.Msg {
		res, err := task.Wait(ctx)
		return SaveDoneMsg{Result: res, Err: err}
	}
}

// loadBoard 列表步骤需要看板；Issues 步骤先补齐派生 Issue
// loadBoard reads the board for status list steps. The issues step first
// derives issues for off-track rocks.
func (a App) loadBoard() tea.Cmd {
	step := a.engine.CurrentStep()
	if step.Renderer != meeting.RendererStatusList {
		return nil
	}
	ctx, engine := a.ctx, a.engine
	return func() tea.Msg {
		if step.ID == meeting.StepIssues {
			engine.RefreshIssues(ctx)
		}
		board, err := engine.Board(ctx)
		return BoardMsg{Board: board, Err: err}
	}
}

func (a *App) pushNotice(n notify.Notice) {
	a.notices = append(a.notices, n)
	if len(a.notices) > maxNotices {
		a.notices = a.notices[len(a.notices)-maxNotices:]
	}
}

func (a *App) setError(err error) {
	switch {
	case errors.Is(err, meeting.ErrInvalidStep):
		a.lastError = i18n.T("error.invalid_step", a.engine.CurrentIndex()+2)
	case errors.Is(err, meeting.ErrMeetingComplete):
		a.lastError = i18n.T("error.complete")
	default:
		a.lastError = err.Error()
	}
}

func (a *App) relayout() {
	if a.summary != nil {
		a.refreshSummary()
	}
}

// refreshSummary 渲染总结和回顾 / renders the summary and recap with Glamour
func (a *App) refreshSummary() {
	if a.summary == nil {
		return
	}
	width, height := a.width, a.height-2
	if width <= 0 {
		width = 80
	}
	if height < 3 {
		height = 20
	}
	md := meeting.RenderMarkdown(*a.summary, a.names)
	if a.recapText != "" {
		md += "\n## " + i18n.T("tui.recap") + "\n\n" + a.recapText + "\n"
	}
	a.summaryView = viewport.New(width, height)
	a.summaryView.SetContent(RenderMarkdown(md, width-2))
}

// Summary 会议完成后的总结 / the summary once the meeting completed
func (a App) Summary() (meeting.Summary, bool) {
	if a.summary == nil {
		return meeting.Summary{}, false
	}
	return *a.summary, true
}

// --- 渲染方法 / Render methods ---

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	statusBar := a.renderStatusBar(a.width)
	if a.summary != nil {
		hint := a.theme.MutedStyle.Render(" " + i18n.T("tui.summary_hint"))
		return lipgloss.JoinVertical(lipgloss.Left, a.summaryView.View(), hint, statusBar)
	}

	// 计算布局尺寸 / Calculate layout dimensions
	sidebarWidth := a.width * 25 / 100
	if sidebarWidth < 22 {
		sidebarWidth = 22
	}
	if sidebarWidth > 36 {
		sidebarWidth = 36
	}
	if a.width < 80 {
		sidebarWidth = 0
	}

	mainWidth := a.width - sidebarWidth
	if sidebarWidth > 0 {
		mainWidth-- // border
	}
	panelHeight := a.height - 2
	if panelHeight < 3 {
		panelHeight = 3
	}

	tabs := a.renderTabs()
	panel := a.renderStep(mainWidth, panelHeight)
	main := lipgloss.JoinVertical(lipgloss.Left, tabs, panel)

	if sidebarWidth > 0 {
		sidebar := a.renderSidebar(sidebarWidth, a.height-1)
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, statusBar)
}

func (a App) renderTabs() string {
	current := a.engine.CurrentIndex()
	progress := a.engine.Progress()
	var parts []string
	for i, step := range meeting.Steps() {
		style := a.theme.InactiveTabStyle
		switch {
		case i == current:
			style = a.theme.ActiveTabStyle
		case i < len(progress) && progress[i]:
			style = a.theme.DoneTabStyle
		}
		parts = append(parts, style.Render(fmt.Sprintf("%d %s", i+1, a.locale.T(step.ID.TitleKey()))))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a App) renderStep(width, height int) string {
	step := a.engine.CurrentStep()
	lines := []string{a.theme.TitleStyle.Render(a.locale.T(step.ID.TitleKey())), ""}

	switch step.Renderer {
	case meeting.RendererWords:
		lines = append(lines, a.renderFields(a.fields)...)
	case meeting.RendererRatings:
		lines = append(lines, a.renderRatings()...)
	case meeting.RendererStatusList:
		lines = append(lines, a.renderList()...)
	case meeting.RendererClose:
		lines = append(lines, a.renderFields(a.fields)...)
		lines = append(lines, "", a.theme.MutedStyle.Render(a.locale.T("close.confirm")))
	}

	style := a.theme.PanelStyle.
		Width(width).
		Height(height)
	return style.Render(strings.Join(lines, "\n"))
}

func (a App) marker(focused bool) string {
	if focused {
		return a.theme.CursorStyle.Render("> ")
	}
	return "  "
}

func (a App) renderFields(fields []field) []string {
	var lines []string
	for i, f := range fields {
		lines = append(lines, a.marker(i == a.focus)+a.theme.LabelStyle.Render(f.label+": ")+f.input.View())
	}
	return lines
}

// renderRatings 每个维度一行，两位伙伴各一列 / one row per category, one column per partner
func (a App) renderRatings() []string {
	header := fmt.Sprintf("  %-14s %-8s %-8s", "", a.names.User1, a.names.User2)
	lines := []string{a.theme.LabelStyle.Render(header)}
	for i, category := range meeting.QualityCategories {
		j := i * 2
		if j+1 >= len(a.fields) {
			break
		}
		row := fmt.Sprintf("%-14s ", a.locale.T("qol."+category))
		lines = append(lines, a.marker(a.focus == j || a.focus == j+1)+row+
			cell(a.fields[j].input.View())+" "+cell(a.fields[j+1].input.View()))
	}
	if n := len(a.fields); n > 0 && n%2 == 1 {
		notes := a.fields[n-1]
		lines = append(lines, "", a.marker(a.focus == n-1)+a.theme.LabelStyle.Render(notes.label+": ")+notes.input.View())
	}
	if prev := a.board.QualityOfLife; prev != nil {
		lines = append(lines, "", a.theme.MutedStyle.Render(fmt.Sprintf("%s: %s", prev.Date, prev.Notes)))
	}
	return lines
}

func cell(s string) string {
	return lipgloss.NewStyle().Width(8).Render(s)
}

func (a App) renderList() []string {
	if !a.loaded {
		return []string{a.theme.MutedStyle.Render(a.locale.T("tui.loading"))}
	}
	items := a.items()
	if len(items) == 0 {
		return []string{a.theme.MutedStyle.Render(a.locale.T("empty." + string(a.engine.CurrentStep().ID)))}
	}
	var lines []string
	for i, item := range items {
		title := item.Title
		if item.Source == entities.SourceRock {
			title += a.theme.MutedStyle.Render(" (rock)")
		}
		line := fmt.Sprintf("%d. %s  %s", i+1, title, RenderStatus(item.Status, a.theme))
		if item.Note != "" {
			line += a.theme.MutedStyle.Render("  " + item.Note)
		}
		lines = append(lines, a.marker(a.onList && i == a.cursor)+line)
	}
	label := a.locale.T("field.notes")
	if a.engine.CurrentStep().ID == meeting.StepRocks {
		label = a.locale.T("field.comment")
	}
	lines = append(lines, "", a.marker(!a.onList)+a.theme.LabelStyle.Render(label+": ")+a.note.View())
	return lines
}

func (a App) renderSidebar(width, height int) string {
	var parts []string

	parts = append(parts, a.theme.TitleStyle.Render(" Huddle"))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.total")))
	parts = append(parts, "  "+meeting.FormatDuration(a.elapsed.Total))
	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.section")))
	parts = append(parts, "  "+meeting.FormatDuration(a.elapsed.Section))
	parts = append(parts, "")

	progress := a.engine.Progress()
	done := 0
	for _, ok := range progress {
		if ok {
			done++
		}
	}
	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.progress")))
	parts = append(parts, "  "+renderProgressBar(done, len(progress), width-4))
	parts = append(parts, fmt.Sprintf("  %d / %d", done, len(progress)))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.owner")))
	parts = append(parts, "  "+a.engine.Owner().DisplayName)
	parts = append(parts, "")

	if len(a.notices) > 0 {
		parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("panel.notices")))
		for _, n := range a.notices {
			style := a.theme.MutedStyle
			switch n.Severity {
			case notify.SeverityError:
				style = a.theme.ErrorStyle
			case notify.SeverityWarning:
				style = a.theme.WarningStyle
			}
			parts = append(parts, style.Width(width-2).Render("  "+n.Message))
		}
	}

	content := strings.Join(parts, "\n")

	style := a.theme.SidebarStyle.
		Width(width).
		Height(height)

	return style.Render(content)
}

func (a App) renderStatusBar(width int) string {
	left := " " + a.status
	if a.lastError != "" {
		left = " " + a.theme.ErrorStyle.Render(a.lastError)
	}
	hints := []string{"keys.next", "keys.back", "keys.goto", "keys.field", "keys.save", "keys.quit"}
	switch a.engine.CurrentStep().Renderer {
	case meeting.RendererStatusList:
		hints = append([]string{"keys.cycle"}, hints...)
	case meeting.RendererClose:
		hints = append([]string{"keys.finish"}, hints...)
	}
	var right []string
	for _, h := range hints {
		right = append(right, a.locale.T(h))
	}
	rightText := strings.Join(right, " · ") + "  "

	gap := width - lipgloss.Width(left) - lipgloss.Width(rightText)
	if gap < 0 {
		gap = 0
		rightText = ""
	}

	bar := left + strings.Repeat(" ", gap) + rightText
	return a.theme.StatusBarStyle.Width(width).Render(bar)
}

// Run 运行全屏会议界面，返回会议总结（若已完成）
// Run drives the full-screen meeting until the user quits or the context
// ends. It returns the summary when the meeting was completed.
func Run(ctx context.Context, engine *meeting.Engine, bridge *Bridge, opts ...Option) (*meeting.Summary, error) {
	app := NewApp(ctx, engine, append([]Option{WithBridge(bridge)}, opts...)...)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	final, err := p.Run()
	if a, ok := final.(App); ok {
		if s, done := a.Summary(); done {
			return &s, err
		}
	}
	return nil, err
}
