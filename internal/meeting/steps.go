// Package meeting 周会流程引擎：固定步骤、工作集、快照、状态同步与会议总结
// Package meeting runs the guided weekly meeting: a fixed sequence of
// sections, an in-memory working set, per-section snapshots, status sync
// for rocks, todos and issues, and the immutable summary written on
// completion.
package meeting

// StepID 步骤标识，也是工作集和快照的键
// StepID identifies a section; it keys the working set and snapshots
type StepID string

const (
	StepCheckin       StepID = "checkin"
	StepQualityOfLife StepID = "qualityoflife"
	StepRocks         StepID = "rocks"
	StepTodos         StepID = "todos"
	StepIssues        StepID = "issues"
	StepClose         StepID = "close"
)

// Renderer 步骤的编辑器类型 / Renderer tags which editor a step needs
type Renderer string

const (
	RendererWords      Renderer = "words"
	RendererRatings    Renderer = "ratings"
	RendererStatusList Renderer = "status-list"
	RendererClose      Renderer = "close"
)

// Step 步骤定义 / Step is one entry of the registry
type Step struct {
	ID       StepID
	Title    string
	Renderer Renderer
}

var registry = []Step{
	{ID: StepCheckin, Title: "Check-in", Renderer: RendererWords},
	{ID: StepQualityOfLife, Title: "Quality of Life", Renderer: RendererRatings},
	{ID: StepRocks, Title: "Rocks", Renderer: RendererStatusList},
	{ID: StepTodos, Title: "To-Dos", Renderer: RendererStatusList},
	{ID: StepIssues, Title: "Issues", Renderer: RendererStatusList},
	{ID: StepClose, Title: "Close", Renderer: RendererClose},
}

// Steps returns the registry in meeting order.
func Steps() []Step {
	return append([]Step(nil), registry...)
}

func StepCount() int {
	return len(registry)
}

// StepAt 按索引取步骤 / StepAt returns the step at index i
func StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(registry) {
		return Step{}, false
	}
	return registry[i], true
}

// IndexOf returns the registry index of id, or -1.
func IndexOf(id StepID) int {
	for i, s := range registry {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (id StepID) Valid() bool {
	return IndexOf(id) >= 0
}

// TitleKey is the i18n key for the step title.
func (id StepID) TitleKey() string {
	return "step." + string(id)
}
