package meeting

import (
	"context"

	"huddle/internal/entities"
	"huddle/internal/storage"
	"huddle/internal/syncer"
)

// BoardItem 会议中展示的一条 Rock/To-Do/Issue，状态为本地词汇
// BoardItem is one rock, todo or issue as the meeting shows it. Status is
// the local override from the working set, or the stored value translated
// through the vocabulary table.
type BoardItem struct {
	ID     string
	Title  string
	Detail string
	Status string
	Note   string
	// Source 仅 Issue 使用 / issues only
	Source       string
	SourceRockID string
}

// Board 会议需要的外部记录 / Board is the external data the meeting reads
type Board struct {
	Rocks         []BoardItem
	Todos         []BoardItem
	Issues        []BoardItem
	QualityOfLife *entities.QualityOfLife
}

// Board 读取未归档的记录并叠加工作集中的本地修改
// Board loads non-archived records for the owner and overlays the
// working set's local edits.
func (e *Engine) Board(ctx context.Context) (Board, error) {
	var board Board

	rocks, err := e.repo.ListRocks(ctx, e.owner)
	if err != nil {
		return Board{}, err
	}
	todos, err := e.repo.ListTodos(ctx, e.owner)
	if err != nil {
		return Board{}, err
	}
	issues, err := e.repo.ListIssues(ctx, e.owner)
	if err != nil {
		return Board{}, err
	}
	qol, ok, err := e.repo.LatestQualityOfLife(ctx, e.owner)
	if err != nil {
		return Board{}, err
	}
	if ok {
		board.QualityOfLife = &qol
	}

	ws := e.WorkingSet()
	localRocks, localTodos, localIssues := ws.Rocks(), ws.Todos(), ws.Issues()

	for _, r := range rocks {
		item := BoardItem{
			ID:     r.ID,
			Title:  r.Title,
			Detail: r.Description,
			Status: syncer.ToLocal(storage.CollectionRocks, r.Status),
			Note:   r.Comment,
		}
		if local, ok := localRocks.Find(r.ID); ok {
			item.Status = orBaseline(storage.CollectionRocks, local.Status)
			item.Note = local.Comment
		}
		board.Rocks = append(board.Rocks, item)
	}
	for _, t := range todos {
		item := BoardItem{
			ID:     t.ID,
			Title:  t.Title,
			Detail: t.DueDate,
			Status: syncer.ToLocal(storage.CollectionTodos, t.Status),
			Note:   t.Notes,
		}
		if local, ok := localTodos.Find(t.ID); ok {
			item.Status = orBaseline(storage.CollectionTodos, local.Status)
			item.Note = local.Notes
		}
		board.Todos = append(board.Todos, item)
	}
	seen := make(map[string]bool, len(issues))
	for _, is := range issues {
		seen[is.ID] = true
		item := BoardItem{
			ID:           is.ID,
			Title:        is.Name,
			Detail:       is.Description,
			Status:       syncer.ToLocal(storage.CollectionIssues, is.Status),
			Note:         is.Notes,
			Source:       is.Source,
			SourceRockID: is.SourceRockID,
		}
		if local, ok := localIssues.Find(is.ID); ok {
			item.Status = orBaseline(storage.CollectionIssues, local.Status)
			item.Note = local.Notes
		}
		board.Issues = append(board.Issues, item)
	}
	// 工作集中已反映但存储尚未返回的 Issue / issues reflected locally but not listed
	for _, local := range localIssues {
		if seen[local.IssueID] {
			continue
		}
		board.Issues = append(board.Issues, BoardItem{
			ID:           local.IssueID,
			Title:        local.Name,
			Status:       orBaseline(storage.CollectionIssues, local.Status),
			Note:         local.Notes,
			Source:       local.Source,
			SourceRockID: local.SourceRockID,
		})
	}
	return board, nil
}

func orBaseline(collection, status string) string {
	if status == "" {
		return syncer.Baseline(collection)
	}
	return status
}
