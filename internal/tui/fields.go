package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"huddle/internal/i18n"
	"huddle/internal/meeting"
)

// field 一个可编辑输入框，patch 将输入值转为工作集补丁
// field is one editable input. patch turns its value into a working set
// patch; ok is false when the value cannot be applied yet (for example a
// rating that is not a number).
type field struct {
	label string
	input textinput.Model
	patch func(value string) (p meeting.Patch, ok bool)
}

func newInput(value string, width, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = limit
	ti.Width = width
	ti.SetValue(value)
	return ti
}

// buildFields 按当前工作集为步骤构建输入框；列表步骤没有固定字段
// buildFields creates the inputs for a step from the working set. Status
// list steps have no fixed fields.
func buildFields(step meeting.Step, ws meeting.WorkingSet, names meeting.Partners) []field {
	switch step.Renderer {
	case meeting.RendererWords:
		c := ws.Checkin()
		return []field{
			{
				label: i18n.T("field.word", names.User1),
				input: newInput(c.User1Word, 24, 40),
				patch: func(v string) (meeting.Patch, bool) {
					return meeting.CheckinPatch{User1Word: meeting.Text(v)}, true
				},
			},
			{
				label: i18n.T("field.word", names.User2),
				input: newInput(c.User2Word, 24, 40),
				patch: func(v string) (meeting.Patch, bool) {
					return meeting.CheckinPatch{User2Word: meeting.Text(v)}, true
				},
			},
		}

	case meeting.RendererRatings:
		q := ws.QualityOfLife()
		var out []field
		for _, category := range meeting.QualityCategories {
			for partner, name := range []string{names.User1, names.User2} {
				k := meeting.RatingKey(category, partner+1)
				value := ""
				if n, ok := q.Ratings[k]; ok {
					value = strconv.Itoa(n)
				}
				out = append(out, field{
					label: i18n.T("field.qol", i18n.T("qol."+category), name),
					input: newInput(value, 3, 2),
					patch: func(v string) (meeting.Patch, bool) {
						n, ok := parseRating(v)
						if !ok {
							return nil, false
						}
						return meeting.QualityOfLifePatch{Ratings: map[string]int{k: n}}, true
					},
				})
			}
		}
		out = append(out, field{
			label: i18n.T("field.notes"),
			input: newInput(q.Notes, 48, 500),
			patch: func(v string) (meeting.Patch, bool) {
				return meeting.QualityOfLifePatch{Notes: meeting.Text(v)}, true
			},
		})
		return out

	case meeting.RendererClose:
		c := ws.Close()
		return []field{
			{
				label: i18n.T("field.rating", names.User1),
				input: newInput(ratingValue(c.User1Rating), 3, 2),
				patch: func(v string) (meeting.Patch, bool) {
					n, ok := parseRating(v)
					if !ok {
						return nil, false
					}
					return meeting.ClosePatch{User1Rating: meeting.Rating(n)}, true
				},
			},
			{
				label: i18n.T("field.rating", names.User2),
				input: newInput(ratingValue(c.User2Rating), 3, 2),
				patch: func(v string) (meeting.Patch, bool) {
					n, ok := parseRating(v)
					if !ok {
						return nil, false
					}
					return meeting.ClosePatch{User2Rating: meeting.Rating(n)}, true
				},
			},
			{
				label: i18n.T("field.notes"),
				input: newInput(c.Notes, 48, 500),
				patch: func(v string) (meeting.Patch, bool) {
					return meeting.ClosePatch{Notes: meeting.Text(v)}, true
				},
			},
		}
	}
	return nil
}

// parseRating 接受 1-10 / accepts 1..10
func parseRating(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 || n > 10 {
		return 0, false
	}
	return n, true
}

func ratingValue(r *int) string {
	if r == nil {
		return ""
	}
	return fmt.Sprint(*r)
}
