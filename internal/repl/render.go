package repl

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"huddle/internal/i18n"
	"huddle/internal/meeting"
)

const (
	labelWidth = 16
	titleWidth = 36
)

// printProgress 打印步骤列表与计时 / prints the section list and timers
func (s *Session) printProgress() {
	current := s.engine.CurrentIndex()
	done := s.engine.Progress()
	for i, step := range meeting.Steps() {
		marker := " "
		if i == current {
			marker = ">"
		}
		check := " "
		if done[i] {
			check = "x"
		}
		line := fmt.Sprintf("%s %d. [%s] %s", marker, i+1, check, i18n.T(step.ID.TitleKey()))
		if i == current {
			line = s.paint(ansiBold, line)
		}
		fmt.Fprintln(s.out, line)
	}
	el := s.engine.Elapsed()
	fmt.Fprintln(s.out, s.paint(ansiDim, fmt.Sprintf("%s %s · %s %s",
		i18n.T("sidebar.total"), meeting.FormatDuration(el.Total),
		i18n.T("sidebar.section"), meeting.FormatDuration(el.Section))))
}

// printStep 打印当前步骤的内容 / prints what the current section holds
func (s *Session) printStep(ctx context.Context) {
	step := s.engine.CurrentStep()
	idx := s.engine.CurrentIndex()
	fmt.Fprintln(s.out, s.paint(ansiBold, fmt.Sprintf("== %d/%d %s ==", idx+1, meeting.StepCount(), i18n.T(step.ID.TitleKey()))))

	ws := s.engine.WorkingSet()
	switch step.ID {
	case meeting.StepCheckin:
		c := ws.Checkin()
		s.row(s.partners.User1, c.User1Word)
		s.row(s.partners.User2, c.User2Word)
	case meeting.StepQualityOfLife:
		q := ws.QualityOfLife()
		s.row("", runewidth.FillRight(s.partners.User1, 6)+" "+s.partners.User2)
		for _, cat := range meeting.QualityCategories {
			s.row(i18n.T("qol."+cat),
				runewidth.FillRight(ratingCell(q.Ratings, meeting.RatingKey(cat, 1)), 6)+" "+ratingCell(q.Ratings, meeting.RatingKey(cat, 2)))
		}
		if q.Notes != "" {
			s.row(i18n.T("field.notes"), q.Notes)
		}
	case meeting.StepRocks, meeting.StepTodos, meeting.StepIssues:
		if step.ID == meeting.StepIssues {
			s.engine.RefreshIssues(ctx)
		}
		s.printBoard(ctx, step.ID)
	case meeting.StepClose:
		c := ws.Close()
		s.row(s.partners.User1, ratingText(c.User1Rating))
		s.row(s.partners.User2, ratingText(c.User2Rating))
		if c.Notes != "" {
			s.row(i18n.T("field.notes"), c.Notes)
		}
		fmt.Fprintln(s.out, s.paint(ansiDim, i18n.T("close.confirm")))
	}
}

func (s *Session) printBoard(ctx context.Context, id meeting.StepID) {
	board, err := s.engine.Board(ctx)
	if err != nil {
		s.printError(err)
		return
	}
	var items []meeting.BoardItem
	switch id {
	case meeting.StepRocks:
		items = board.Rocks
	case meeting.StepTodos:
		items = board.Todos
	default:
		items = board.Issues
	}
	if len(items) == 0 {
		fmt.Fprintln(s.out, s.paint(ansiDim, i18n.T("empty."+string(id))))
		return
	}
	for i, item := range items {
		title := runewidth.Truncate(item.Title, titleWidth, "…")
		line := fmt.Sprintf("%3d. %s [%s]", i+1, runewidth.FillRight(title, titleWidth), item.Status)
		if item.Note != "" {
			line += "  " + item.Note
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *Session) row(label, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	fmt.Fprintf(s.out, "  %s %s\n", runewidth.FillRight(runewidth.Truncate(label, labelWidth, "…"), labelWidth), value)
}

func ratingCell(ratings map[string]int, key string) string {
	if v, ok := ratings[key]; ok {
		return strconv.Itoa(v)
	}
	return "-"
}

func ratingText(r *int) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%d/10", *r)
}
