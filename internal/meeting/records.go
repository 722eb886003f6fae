package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"huddle/internal/i18n"
	"huddle/internal/storage"
)

// SummaryStatusCompleted 会议总结的唯一状态 / the only status a summary carries
const SummaryStatusCompleted = "completed"

// StepSnapshot 单个步骤的持久化草稿，每个 (owner, step, 会议日期) 仅一条
// StepSnapshot is the saved draft of one section. There is at most one per
// (owner, step, meeting date).
type StepSnapshot struct {
	ID          string
	OwnerID     string
	StepID      StepID
	MeetingDate string
	Payload     Payload
	SavedAt     time.Time
}

type snapshotBody struct {
	OwnerID     string          `json:"ownerId"`
	StepID      StepID          `json:"stepId"`
	MeetingDate string          `json:"meetingDate"`
	Payload     json.RawMessage `json:"payload"`
	SavedAt     time.Time       `json:"savedAt"`
}

// SnapshotKey 快照的自然键 / natural key of a snapshot within its owner
func SnapshotKey(step StepID, meetingDate string) string {
	return string(step) + "@" + meetingDate
}

// SaveSnapshot 写入或覆盖快照，后写入者胜出
// SaveSnapshot inserts or overwrites the snapshot; the last write wins
func SaveSnapshot(ctx context.Context, store storage.Store, snap StepSnapshot) (StepSnapshot, bool, error) {
	if snap.Payload == nil {
		return StepSnapshot{}, false, fmt.Errorf("save snapshot %s: payload is nil", snap.StepID)
	}
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return StepSnapshot{}, false, fmt.Errorf("marshal %s payload: %w", snap.StepID, err)
	}
	body, err := json.Marshal(snapshotBody{
		OwnerID:     snap.OwnerID,
		StepID:      snap.StepID,
		MeetingDate: snap.MeetingDate,
		Payload:     payload,
		SavedAt:     snap.SavedAt,
	})
	if err != nil {
		return StepSnapshot{}, false, fmt.Errorf("marshal snapshot %s: %w", snap.StepID, err)
	}
	doc, created, err := store.Upsert(ctx, storage.Document{
		Collection: storage.CollectionMeetingSteps,
		OwnerID:    snap.OwnerID,
		Key:        SnapshotKey(snap.StepID, snap.MeetingDate),
		Body:       body,
		UpdatedAt:  snap.SavedAt,
	})
	if err != nil {
		return StepSnapshot{}, false, err
	}
	snap.ID = doc.ID
	return snap, created, nil
}

// LoadSnapshot 读取某一步骤在某会议日期的快照
// LoadSnapshot reads the snapshot of one step for a meeting date
func LoadSnapshot(ctx context.Context, store storage.Store, ownerID string, step StepID, meetingDate string) (StepSnapshot, bool, error) {
	docs, err := store.Query(ctx, storage.Query{
		Collection: storage.CollectionMeetingSteps,
		OwnerID:    ownerID,
		Key:        SnapshotKey(step, meetingDate),
		Limit:      1,
	})
	if err != nil {
		return StepSnapshot{}, false, fmt.Errorf("load snapshot %s: %w", step, err)
	}
	if len(docs) == 0 {
		return StepSnapshot{}, false, nil
	}
	snap, err := decodeSnapshot(docs[0])
	if err != nil {
		return StepSnapshot{}, false, err
	}
	return snap, true, nil
}

// LoadSnapshots returns every saved step for a meeting date, in meeting order.
func LoadSnapshots(ctx context.Context, store storage.Store, ownerID, meetingDate string) ([]StepSnapshot, error) {
	var out []StepSnapshot
	for _, step := range registry {
		snap, ok, err := LoadSnapshot(ctx, store, ownerID, step.ID, meetingDate)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func decodeSnapshot(doc storage.Document) (StepSnapshot, error) {
	var body snapshotBody
	if err := json.Unmarshal(doc.Body, &body); err != nil {
		return StepSnapshot{}, fmt.Errorf("decode snapshot %s: %w", doc.ID, err)
	}
	payload, err := decodePayload(body.StepID, body.Payload)
	if err != nil {
		return StepSnapshot{}, err
	}
	return StepSnapshot{
		ID:          doc.ID,
		OwnerID:     body.OwnerID,
		StepID:      body.StepID,
		MeetingDate: body.MeetingDate,
		Payload:     payload,
		SavedAt:     body.SavedAt,
	}, nil
}

// Summary 会议完成时生成的不可变记录
// Summary is the immutable record written when a meeting completes
type Summary struct {
	ID                    string           `json:"-"`
	OwnerID               string           `json:"ownerId"`
	StartedAt             time.Time        `json:"startedAt"`
	EndedAt               time.Time        `json:"endedAt"`
	DurationMs            int64            `json:"durationMs"`
	PerSectionDurationsMs map[StepID]int64 `json:"perSectionDurationsMs"`
	Steps                 WorkingSet       `json:"steps"`
	Status                string           `json:"status"`
}

func (s Summary) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// SaveSummary 插入新的总结记录 / SaveSummary inserts a new summary
func SaveSummary(ctx context.Context, store storage.Store, s Summary) (Summary, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return Summary{}, fmt.Errorf("marshal summary: %w", err)
	}
	doc, err := store.Insert(ctx, storage.Document{
		Collection: storage.CollectionMeetings,
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		Body:       body,
		CreatedAt:  s.EndedAt,
		UpdatedAt:  s.EndedAt,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("save summary: %w", err)
	}
	s.ID = doc.ID
	return s, nil
}

// ListSummaries 按完成时间倒序列出 / newest first; limit <= 0 means all
func ListSummaries(ctx context.Context, store storage.Store, ownerID string, limit int) ([]Summary, error) {
	docs, err := store.Query(ctx, storage.Query{
		Collection: storage.CollectionMeetings,
		OwnerID:    ownerID,
		Desc:       true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	out := make([]Summary, 0, len(docs))
	for _, doc := range docs {
		s, err := decodeSummary(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// GetSummary 只返回该所有者的会议 / only returns meetings owned by ownerID
func GetSummary(ctx context.Context, store storage.Store, ownerID, id string) (Summary, error) {
	doc, err := store.Get(ctx, storage.CollectionMeetings, ownerID, id)
	if err != nil {
		return Summary{}, err
	}
	return decodeSummary(doc)
}

// DeleteSummary 供历史视图删除记录，引擎本身从不调用
// DeleteSummary is for the history view; the engine never calls it
func DeleteSummary(ctx context.Context, store storage.Store, ownerID, id string) error {
	if err := store.Delete(ctx, storage.CollectionMeetings, ownerID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("meeting %s: %w", id, storage.ErrNotFound)
		}
		return err
	}
	return nil
}

func decodeSummary(doc storage.Document) (Summary, error) {
	var s Summary
	if err := json.Unmarshal(doc.Body, &s); err != nil {
		return Summary{}, fmt.Errorf("decode summary %s: %w", doc.ID, err)
	}
	s.ID = doc.ID
	return s, nil
}

// Partners 两位伙伴的称呼 / display names of the two partners
type Partners struct {
	User1 string
	User2 string
}

func (p Partners) orDefault() Partners {
	if strings.TrimSpace(p.User1) == "" {
		p.User1 = "Partner 1"
	}
	if strings.TrimSpace(p.User2) == "" {
		p.User2 = "Partner 2"
	}
	return p
}

// RenderMarkdown 将总结渲染为 Markdown，未访问的步骤省略
// RenderMarkdown renders a summary as markdown; unvisited steps are omitted
func RenderMarkdown(s Summary, names Partners) string {
	names = names.orDefault()
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s\n\n", i18n.T("panel.meeting"), s.StartedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- **%s**: %s\n", i18n.T("sidebar.total"), FormatDuration(s.Duration()))
	for _, step := range registry {
		if ms, ok := s.PerSectionDurationsMs[step.ID]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", i18n.T(step.ID.TitleKey()), FormatDuration(time.Duration(ms)*time.Millisecond))
		}
	}
	b.WriteString("\n")

	for _, id := range s.Steps.Steps() {
		fmt.Fprintf(&b, "## %s\n\n", i18n.T(id.TitleKey()))
		switch id {
		case StepCheckin:
			c := s.Steps.Checkin()
			fmt.Fprintf(&b, "- %s: %s\n- %s: %s\n", names.User1, dash(c.User1Word), names.User2, dash(c.User2Word))
		case StepQualityOfLife:
			q := s.Steps.QualityOfLife()
			keys := make([]string, 0, len(q.Ratings))
			for k := range q.Ratings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "- %s: %d\n", k, q.Ratings[k])
			}
			if q.Notes != "" {
				fmt.Fprintf(&b, "\n%s\n", q.Notes)
			}
		case StepRocks:
			for _, r := range s.Steps.Rocks() {
				fmt.Fprintf(&b, "- %s **%s**%s\n", dash(r.Title), r.Status, suffix(r.Comment))
			}
		case StepTodos:
			for _, t := range s.Steps.Todos() {
				fmt.Fprintf(&b, "- [%s] %s%s\n", check(t.Status == "complete"), dash(t.Title), suffix(t.Notes))
			}
		case StepIssues:
			for _, is := range s.Steps.Issues() {
				fmt.Fprintf(&b, "- %s **%s**%s\n", dash(is.Name), is.Status, suffix(is.Notes))
			}
		case StepClose:
			c := s.Steps.Close()
			fmt.Fprintf(&b, "- %s: %s\n- %s: %s\n", names.User1, ratingText(c.User1Rating), names.User2, ratingText(c.User2Rating))
			if c.Notes != "" {
				fmt.Fprintf(&b, "\n%s\n", c.Notes)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func suffix(note string) string {
	if strings.TrimSpace(note) == "" {
		return ""
	}
	return ": " + note
}

func check(done bool) string {
	if done {
		return "x"
	}
	return " "
}

func ratingText(r *int) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%d/10", *r)
}
