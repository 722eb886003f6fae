package repl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"huddle/internal/entities"
	"huddle/internal/i18n"
	"huddle/internal/meeting"
	"huddle/internal/syncer"
)

// saveWait 命令等待后台保存的上限 / how long a command waits for its save
const saveWait = 15 * time.Second

// Execute 执行一行命令，quit 为 true 时会话结束
// Execute runs one command line. quit reports that the session is over.
func (s *Session) Execute(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "help", "?":
		fmt.Fprintln(s.out, i18n.T("repl.help"))
	case "next", "n":
		return s.next(ctx)
	case "back", "b":
		if err := s.engine.Retreat(); err != nil {
			return false, friendly(err, 0)
		}
		s.printStep(ctx)
	case "goto", "g":
		return false, s.goTo(ctx, args)
	case "checkin":
		return false, s.checkin(args)
	case "rate":
		return false, s.rate(args)
	case "close":
		return false, s.closeRating(args)
	case "note", "notes":
		return false, s.note(args)
	case "rock", "todo", "issue":
		return false, s.setStatus(ctx, cmd, args)
	case "save":
		return false, s.save(ctx)
	case "status", "list", "ls":
		s.printProgress()
		s.printStep(ctx)
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, i18n.T("repl.bye"))
		return true, nil
	default:
		return false, errors.New(i18n.T("repl.unknown", cmd))
	}
	return false, nil
}

func usage(syntax string) error {
	return errors.New(i18n.T("repl.usage", syntax))
}

// friendly 将引擎错误转为用户可读文本 / maps engine errors to catalog text
func friendly(err error, index int) error {
	switch {
	case errors.Is(err, meeting.ErrInvalidStep):
		return errors.New(i18n.T("error.invalid_step", index))
	case errors.Is(err, meeting.ErrMeetingComplete):
		return errors.New(i18n.T("error.complete"))
	default:
		return err
	}
}

func (s *Session) next(ctx context.Context) (bool, error) {
	_, summary, err := s.engine.Advance(ctx)
	if err != nil {
		return false, friendly(err, s.engine.CurrentIndex()+2)
	}
	if summary == nil {
		s.printStep(ctx)
		return false, nil
	}
	fmt.Fprintln(s.out, s.paint(ansiBold, i18n.T("repl.complete", summary.ID)))
	fmt.Fprintln(s.out, i18n.T("close.done", meeting.FormatDuration(summary.Duration())))
	if s.onComplete != nil {
		s.onComplete(ctx, *summary)
	}
	return true, nil
}

func (s *Session) goTo(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("goto <1-6>")
	}
	target := strings.ToLower(args[0])
	n, err := strconv.Atoi(target)
	if err != nil {
		idx := meeting.IndexOf(meeting.StepID(target))
		if idx < 0 {
			return usage("goto <1-6>")
		}
		n = idx + 1
	}
	if err := s.engine.GoTo(n - 1); err != nil {
		return friendly(err, n)
	}
	s.printStep(ctx)
	return nil
}

func partnerArg(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || (n != 1 && n != 2) {
		return 0, fmt.Errorf("partner must be 1 or 2, got %q", arg)
	}
	return n, nil
}

func ratingArg(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > 10 {
		return 0, fmt.Errorf("rating must be 1-10, got %q", arg)
	}
	return n, nil
}

func (s *Session) checkin(args []string) error {
	if len(args) < 2 {
		return usage("checkin <1|2> <word>")
	}
	who, err := partnerArg(args[0])
	if err != nil {
		return err
	}
	word := strings.Join(args[1:], " ")
	patch := meeting.CheckinPatch{}
	if who == 1 {
		patch.User1Word = meeting.Text(word)
	} else {
		patch.User2Word = meeting.Text(word)
	}
	return friendly(s.engine.UpdateField(meeting.StepCheckin, patch), 0)
}

func (s *Session) rate(args []string) error {
	if len(args) != 3 {
		return usage("rate <category> <1|2> <1-10>")
	}
	category := strings.ToLower(args[0])
	if !slices.Contains(meeting.QualityCategories, category) {
		return fmt.Errorf("unknown category %q (%s)", category, strings.Join(meeting.QualityCategories, ", "))
	}
	who, err := partnerArg(args[1])
	if err != nil {
		return err
	}
	n, err := ratingArg(args[2])
	if err != nil {
		return err
	}
	return friendly(s.engine.UpdateField(meeting.StepQualityOfLife, meeting.QualityOfLifePatch{
		Ratings: map[string]int{meeting.RatingKey(category, who): n},
	}), 0)
}

func (s *Session) closeRating(args []string) error {
	if len(args) != 2 {
		return usage("close <1|2> <1-10>")
	}
	who, err := partnerArg(args[0])
	if err != nil {
		return err
	}
	n, err := ratingArg(args[1])
	if err != nil {
		return err
	}
	patch := meeting.ClosePatch{}
	if who == 1 {
		patch.User1Rating = meeting.Rating(n)
	} else {
		patch.User2Rating = meeting.Rating(n)
	}
	return friendly(s.engine.UpdateField(meeting.StepClose, patch), 0)
}

// note 写入当前步骤的备注，仅 qualityoflife 和 close 有备注
// note sets the notes of the current section; only quality of life and
// close carry free-form notes
func (s *Session) note(args []string) error {
	text := strings.Join(args, " ")
	switch s.engine.CurrentStep().ID {
	case meeting.StepQualityOfLife:
		return friendly(s.engine.UpdateField(meeting.StepQualityOfLife, meeting.QualityOfLifePatch{Notes: meeting.Text(text)}), 0)
	case meeting.StepClose:
		return friendly(s.engine.UpdateField(meeting.StepClose, meeting.ClosePatch{Notes: meeting.Text(text)}), 0)
	default:
		return usage("note <text> (quality of life or close)")
	}
}

// setStatus 处理 rock/todo/issue 命令：按看板序号定位条目并立即保存
// setStatus handles rock, todo and issue: the entry is picked by its board
// number and the section is saved right away
func (s *Session) setStatus(ctx context.Context, kind string, args []string) error {
	collection, _ := entities.CollectionFor(kind)
	syntax := fmt.Sprintf("%s <n> <%s> [note]", kind, strings.Join(syncer.LocalStatuses(collection), "|"))
	if len(args) < 2 {
		return usage(syntax)
	}
	board, err := s.engine.Board(ctx)
	if err != nil {
		return err
	}
	items := map[string][]meeting.BoardItem{
		"rock":  board.Rocks,
		"todo":  board.Todos,
		"issue": board.Issues,
	}[kind]
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(items) {
		return fmt.Errorf("no %s #%s", kind, args[0])
	}
	item := items[n-1]
	status := strings.ToLower(args[1])
	note := strings.Join(args[2:], " ")
	if note == "" {
		note = item.Note
	}

	var task *meeting.Task[meeting.SaveResult]
	switch kind {
	case "rock":
		task = s.engine.SetRockStatus(item.ID, item.Title, status, note)
	case "todo":
		task = s.engine.SetTodoStatus(item.ID, item.Title, status, note)
	default:
		task = s.engine.SetIssueStatus(item.ID, item.Title, status, note)
	}
	waitCtx, cancel := context.WithTimeout(ctx, saveWait)
	defer cancel()
	res, err := task.Wait(waitCtx)
	if err != nil {
		// 同步失败已通过通知展示 / sync failures already surfaced as notices
		if syncer.IsSyncError(err) {
			return nil
		}
		return friendly(err, 0)
	}
	fmt.Fprintln(s.out, i18n.T("status.synced", item.Title, status))
	if len(res.DerivedIssues) > 0 {
		s.flushNotices()
	}
	return nil
}

func (s *Session) save(ctx context.Context) error {
	task := s.engine.SaveCurrent()
	step := s.engine.CurrentStep()
	if task == nil {
		fmt.Fprintln(s.out, s.paint(ansiDim, i18n.T("status.ready")))
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, saveWait)
	defer cancel()
	if _, err := task.Wait(waitCtx); err != nil {
		if syncer.IsSyncError(err) {
			return nil
		}
		return friendly(err, 0)
	}
	fmt.Fprintln(s.out, i18n.T("status.saved", i18n.T(step.ID.TitleKey())))
	return nil
}
