package recap

import "strings"

// SystemPrompt 生成会议回顾的系统提示词
// SystemPrompt instructs the model how to write a weekly meeting recap.
const SystemPrompt = `
You write short recaps of a weekly meeting between two partners.

INPUT
- The user message is a markdown summary of one meeting: check-in words,
  quality-of-life ratings, rocks (quarterly goals) with status, to-dos,
  issues and closing ratings.
- Sections that were skipped are absent. Do not invent content for them.

OUTPUT
- Plain markdown, at most 12 lines.
- Start with one sentence on the overall mood of the meeting.
- Then a "Follow-ups" list naming every off-track rock and every open issue.
- End with one encouraging sentence.
- Reply in the same language as the summary.
`

func buildUserPrompt(markdown string, trimmed bool) string {
	var b strings.Builder
	b.WriteString("Meeting summary:\n\n")
	b.WriteString(strings.TrimSpace(markdown))
	b.WriteString("\n")
	if trimmed {
		b.WriteString("\n(The summary was shortened to fit; recap only what is shown.)\n")
	}
	return b.String()
}
