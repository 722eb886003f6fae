// Package entities 定义会议读写的外部记录：Rock、To-Do、Issue、Quality of Life
// Package entities defines the partner-owned records the meeting reads and
// updates. Their schemas belong to the list managers; the meeting engine only
// ever writes the status field set.
package entities

import "time"

// Owner 当前用户，显式传递 / Owner is the acting user, threaded explicitly
type Owner struct {
	ID          string
	DisplayName string
}

// Valid reports whether the owner carries a usable ID.
func (o Owner) Valid() bool {
	return o.ID != ""
}

// Store 中的状态值 / Status values as stored
const (
	StatusArchived = "archived"

	RockOnTrack   = "on-track"
	RockOffTrack  = "off-track"
	RockCompleted = "completed"

	TodoNew       = "new"
	TodoCompleted = "completed"

	IssueOpen   = "open"
	IssueSolved = "solved"
)

// Issue 来源与优先级 / Issue source and priority values
const (
	SourceManual = "manual"
	SourceRock   = "rock"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Rock 长期目标 / Rock is a long-horizon goal
type Rock struct {
	ID              string     `json:"-"`
	OwnerID         string     `json:"ownerId"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          string     `json:"status,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	DueDate         string     `json:"dueDate,omitempty"`
	StatusChangedAt *time.Time `json:"statusChangedAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Todo 短期行动项 / Todo is a short-horizon action item
type Todo struct {
	ID              string     `json:"-"`
	OwnerID         string     `json:"ownerId"`
	Title           string     `json:"title"`
	Notes           string     `json:"notes,omitempty"`
	Status          string     `json:"status,omitempty"`
	Assignee        string     `json:"assignee,omitempty"`
	DueDate         string     `json:"dueDate,omitempty"`
	StatusChangedAt *time.Time `json:"statusChangedAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Issue 待讨论的问题，可能由偏离轨道的 Rock 派生
// Issue is a discussion item, possibly derived from an off-track Rock
type Issue struct {
	ID            string     `json:"-"`
	OwnerID       string     `json:"ownerId"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	Status        string     `json:"status,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Source        string     `json:"source,omitempty"`
	SourceRockID  string     `json:"sourceRockId,omitempty"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	CreatedByName string     `json:"createdByName,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// QualityOfLife 周期性的幸福感评分 / QualityOfLife is a periodic rating check-in
type QualityOfLife struct {
	ID      string         `json:"-"`
	OwnerID string         `json:"ownerId"`
	Date    string         `json:"date"`
	Ratings map[string]int `json:"ratings,omitempty"`
	Notes   string         `json:"notes,omitempty"`
}
