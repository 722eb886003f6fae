package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"huddle/internal/syncer"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// RenderStatus 按状态着色 / RenderStatus colors a local status value
func RenderStatus(status string, theme Theme) string {
	switch status {
	case syncer.OffTrack:
		return theme.ErrorStyle.Render(status)
	case syncer.Complete, syncer.Solved:
		return theme.SuccessStyle.Render(status)
	case "":
		return theme.MutedStyle.Render("-")
	default:
		return theme.WarningStyle.Render(status)
	}
}

// renderProgressBar 已完成步骤比例 / fraction of completed steps as a bar
func renderProgressBar(done, total, width int) string {
	if width < 4 {
		width = 4
	}
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// nextStatus 在本地词汇中循环 / cycles through the local vocabulary
func nextStatus(collection, current string) string {
	statuses := syncer.LocalStatuses(collection)
	if len(statuses) == 0 {
		return current
	}
	for i, s := range statuses {
		if s == current {
			return statuses[(i+1)%len(statuses)]
		}
	}
	return statuses[0]
}
