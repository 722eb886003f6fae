package meeting

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WorkingSet 会话内存数据，按步骤保存，未访问的步骤不存在
// WorkingSet holds the session's per-step payloads. A step nobody touched is
// simply absent. WorkingSet is not safe for concurrent use; the engine
// guards it.
type WorkingSet struct {
	payloads map[StepID]Payload
}

func NewWorkingSet() WorkingSet {
	return WorkingSet{payloads: make(map[StepID]Payload)}
}

// Get returns a copy of the payload for id.
func (w WorkingSet) Get(id StepID) (Payload, bool) {
	p, ok := w.payloads[id]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

func (w WorkingSet) Has(id StepID) bool {
	_, ok := w.payloads[id]
	return ok
}

// Set 覆盖步骤数据 / Set replaces the payload of its step
func (w *WorkingSet) Set(p Payload) {
	if w.payloads == nil {
		w.payloads = make(map[StepID]Payload)
	}
	w.payloads[p.Step()] = p.clone()
}

// Apply 将补丁合并到对应步骤 / Apply merges patch into its step's payload
func (w *WorkingSet) Apply(patch Patch) Payload {
	next := patch.apply(w.payloads[patch.Step()])
	w.Set(next)
	return next.clone()
}

// Steps 返回已存在的步骤，按会议顺序 / present steps in meeting order
func (w WorkingSet) Steps() []StepID {
	var out []StepID
	for _, s := range registry {
		if _, ok := w.payloads[s.ID]; ok {
			out = append(out, s.ID)
		}
	}
	return out
}

func (w WorkingSet) Len() int {
	return len(w.payloads)
}

// Clone returns a deep copy.
func (w WorkingSet) Clone() WorkingSet {
	out := NewWorkingSet()
	for id, p := range w.payloads {
		out.payloads[id] = p.clone()
	}
	return out
}

func (w WorkingSet) Checkin() Checkin {
	p, _ := w.payloads[StepCheckin].(Checkin)
	return p
}

func (w WorkingSet) QualityOfLife() QualityOfLife {
	p, _ := w.payloads[StepQualityOfLife].(QualityOfLife)
	return p.clone().(QualityOfLife)
}

func (w WorkingSet) Rocks() Rocks {
	p, _ := w.payloads[StepRocks].(Rocks)
	return p.clone().(Rocks)
}

func (w WorkingSet) Todos() Todos {
	p, _ := w.payloads[StepTodos].(Todos)
	return p.clone().(Todos)
}

func (w WorkingSet) Issues() Issues {
	p, _ := w.payloads[StepIssues].(Issues)
	return p.clone().(Issues)
}

func (w WorkingSet) Close() Close {
	p, _ := w.payloads[StepClose].(Close)
	return p.clone().(Close)
}

// MarshalJSON 只输出存在的步骤 / only present steps are written
func (w WorkingSet) MarshalJSON() ([]byte, error) {
	out := make(map[StepID]Payload, len(w.payloads))
	for id, p := range w.payloads {
		out[id] = p
	}
	return json.Marshal(out)
}

func (w *WorkingSet) UnmarshalJSON(data []byte) error {
	var raw map[StepID]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w.payloads = make(map[StepID]Payload, len(raw))
	for id, msg := range raw {
		p, err := decodePayload(id, msg)
		if err != nil {
			return fmt.Errorf("working set: %w", err)
		}
		w.payloads[id] = p
	}
	return nil
}

// IsStepComplete 进度提示用，不阻止导航；缺失的步骤视为未完成
// IsStepComplete is advisory progress only and never blocks navigation.
// An absent step is incomplete.
func (w WorkingSet) IsStepComplete(id StepID) bool {
	p, ok := w.payloads[id]
	if !ok {
		return false
	}
	switch v := p.(type) {
	case Checkin:
		return strings.TrimSpace(v.User1Word) != "" && strings.TrimSpace(v.User2Word) != ""
	case QualityOfLife:
		return len(v.Ratings) > 0
	case Rocks:
		return len(v) > 0
	case Todos:
		return len(v) > 0
	case Issues:
		return len(v) > 0
	case Close:
		return v.User1Rating != nil && v.User2Rating != nil
	}
	return false
}
