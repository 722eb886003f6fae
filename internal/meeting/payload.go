package meeting

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Payload 每个步骤的数据，按步骤区分具体类型
// Payload is the step-specific data held in the working set. Each step has
// exactly one concrete type.
type Payload interface {
	Step() StepID
	clone() Payload
}

// Quality of Life 维度 / rating categories
var QualityCategories = []string{"physical", "emotional", "relationship", "financial", "spiritual"}

// RatingKey 生成评分键，例如 physical_user1 / builds keys such as physical_user1
func RatingKey(category string, partner int) string {
	return fmt.Sprintf("%s_user%d", category, partner)
}

type Checkin struct {
	User1Word string `json:"user1Word,omitempty"`
	User2Word string `json:"user2Word,omitempty"`
}

type QualityOfLife struct {
	Ratings map[string]int `json:"ratings,omitempty"`
	Notes   string         `json:"notes,omitempty"`
}

// RockEntry 会议中对一个 Rock 的状态修改，Status 为本地词汇
// RockEntry is a meeting-local status edit; Status uses the local vocabulary
type RockEntry struct {
	RockID  string `json:"rockId"`
	Title   string `json:"title,omitempty"`
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

type TodoEntry struct {
	TodoID string `json:"todoId"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type IssueEntry struct {
	IssueID      string `json:"issueId"`
	Name         string `json:"name,omitempty"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
	Source       string `json:"source,omitempty"`
	SourceRockID string `json:"sourceRockId,omitempty"`
}

// Rocks, Todos, Issues 序列化为数组 / serialise as bare arrays
type (
	Rocks  []RockEntry
	Todos  []TodoEntry
	Issues []IssueEntry
)

type Close struct {
	User1Rating *int   `json:"user1Rating,omitempty"`
	User2Rating *int   `json:"user2Rating,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

func (Checkin) Step() StepID       { return StepCheckin }
func (QualityOfLife) Step() StepID { return StepQualityOfLife }
func (Rocks) Step() StepID         { return StepRocks }
func (Todos) Step() StepID         { return StepTodos }
func (Issues) Step() StepID        { return StepIssues }
func (Close) Step() StepID         { return StepClose }

func (p Checkin) clone() Payload { return p }

func (p QualityOfLife) clone() Payload {
	p.Ratings = maps.Clone(p.Ratings)
	return p
}

func (p Rocks) clone() Payload  { return slices.Clone(p) }
func (p Todos) clone() Payload  { return slices.Clone(p) }
func (p Issues) clone() Payload { return slices.Clone(p) }

func (p Close) clone() Payload {
	p.User1Rating = cloneInt(p.User1Rating)
	p.User2Rating = cloneInt(p.User2Rating)
	return p
}

// Find 按 ID 查找条目 / Find looks an entry up by entity id
func (p Rocks) Find(id string) (RockEntry, bool) {
	for _, e := range p {
		if e.RockID == id {
			return e, true
		}
	}
	return RockEntry{}, false
}

func (p Todos) Find(id string) (TodoEntry, bool) {
	for _, e := range p {
		if e.TodoID == id {
			return e, true
		}
	}
	return TodoEntry{}, false
}

func (p Issues) Find(id string) (IssueEntry, bool) {
	for _, e := range p {
		if e.IssueID == id {
			return e, true
		}
	}
	return IssueEntry{}, false
}

// Rating 返回评分指针 / Rating is a convenience for building Close payloads
func Rating(n int) *int {
	return &n
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// decodePayload 按步骤解码 / decodePayload decodes raw JSON for the given step
func decodePayload(id StepID, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch id {
	case StepCheckin:
		var v Checkin
		err = json.Unmarshal(raw, &v)
		p = v
	case StepQualityOfLife:
		var v QualityOfLife
		err = json.Unmarshal(raw, &v)
		p = v
	case StepRocks:
		var v Rocks
		err = json.Unmarshal(raw, &v)
		p = v
	case StepTodos:
		var v Todos
		err = json.Unmarshal(raw, &v)
		p = v
	case StepIssues:
		var v Issues
		err = json.Unmarshal(raw, &v)
		p = v
	case StepClose:
		var v Close
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStep, id)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", id, err)
	}
	return p, nil
}

// --- Patches ---

// Patch 对单个步骤的部分更新 / Patch is a partial update for one step
type Patch interface {
	Step() StepID
	// apply merges the patch into current (which may be nil) and returns a new payload
	apply(current Payload) Payload
}

type CheckinPatch struct {
	User1Word *string
	User2Word *string
}

// QualityOfLifePatch 合并到 ratings 子键，未提及的评分保留
// QualityOfLifePatch merges into the ratings map; unnamed ratings are kept
type QualityOfLifePatch struct {
	Ratings map[string]int
	Notes   *string
}

// RockPatch 按 RockID 合并或追加条目 / merges into or appends the entry for RockID
type RockPatch struct {
	RockID  string
	Title   *string
	Status  *string
	Comment *string
}

type TodoPatch struct {
	TodoID string
	Title  *string
	Status *string
	Notes  *string
}

type IssuePatch struct {
	IssueID string
	Name    *string
	Status  *string
	Notes   *string
}

type ClosePatch struct {
	User1Rating *int
	User2Rating *int
	Notes       *string
}

func (CheckinPatch) Step() StepID       { return StepCheckin }
func (QualityOfLifePatch) Step() StepID { return StepQualityOfLife }
func (RockPatch) Step() StepID          { return StepRocks }
func (TodoPatch) Step() StepID          { return StepTodos }
func (IssuePatch) Step() StepID         { return StepIssues }
func (ClosePatch) Step() StepID         { return StepClose }

// Text returns a pointer to s for patch fields.
func Text(s string) *string {
	return &s
}

func (p CheckinPatch) apply(current Payload) Payload {
	out, _ := current.(Checkin)
	setString(&out.User1Word, p.User1Word)
	setString(&out.User2Word, p.User2Word)
	return out
}

func (p QualityOfLifePatch) apply(current Payload) Payload {
	out, _ := current.(QualityOfLife)
	out = out.clone().(QualityOfLife)
	if len(p.Ratings) > 0 {
		if out.Ratings == nil {
			out.Ratings = make(map[string]int, len(p.Ratings))
		}
		maps.Copy(out.Ratings, p.Ratings)
	}
	setString(&out.Notes, p.Notes)
	return out
}

func (p RockPatch) apply(current Payload) Payload {
	list, _ := current.(Rocks)
	list = list.clone().(Rocks)
	i := indexWhere(len(list), func(i int) bool { return list[i].RockID == p.RockID })
	if i < 0 {
		list = append(list, RockEntry{RockID: p.RockID})
		i = len(list) - 1
	}
	setString(&list[i].Title, p.Title)
	setString(&list[i].Status, p.Status)
	setString(&list[i].Comment, p.Comment)
	return list
}

func (p TodoPatch) apply(current Payload) Payload {
	list, _ := current.(Todos)
	list = list.clone().(Todos)
	i := indexWhere(len(list), func(i int) bool { return list[i].TodoID == p.TodoID })
	if i < 0 {
		list = append(list, TodoEntry{TodoID: p.TodoID})
		i = len(list) - 1
	}
	setString(&list[i].Title, p.Title)
	setString(&list[i].Status, p.Status)
	setString(&list[i].Notes, p.Notes)
	return list
}

func (p IssuePatch) apply(current Payload) Payload {
	list, _ := current.(Issues)
	list = list.clone().(Issues)
	i := indexWhere(len(list), func(i int) bool { return list[i].IssueID == p.IssueID })
	if i < 0 {
		list = append(list, IssueEntry{IssueID: p.IssueID})
		i = len(list) - 1
	}
	setString(&list[i].Name, p.Name)
	setString(&list[i].Status, p.Status)
	setString(&list[i].Notes, p.Notes)
	return list
}

func (p ClosePatch) apply(current Payload) Payload {
	out, _ := current.(Close)
	out = out.clone().(Close)
	if p.User1Rating != nil {
		out.User1Rating = cloneInt(p.User1Rating)
	}
	if p.User2Rating != nil {
		out.User2Rating = cloneInt(p.User2Rating)
	}
	setString(&out.Notes, p.Notes)
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func indexWhere(n int, match func(int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}
