package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap 定义会议界面快捷键
// KeyMap defines the meeting screen keybindings
type KeyMap struct {
	Next      key.Binding
	Back      key.Binding
	Jump      key.Binding
	NextField key.Binding
	PrevField key.Binding
	Up        key.Binding
	Down      key.Binding
	Cycle     key.Binding
	Save      key.Binding
	Submit    key.Binding
	Quit      key.Binding
}

// DefaultKeyMap 默认快捷键
// DefaultKeyMap returns default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "next"),
		),
		Back: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "back"),
		),
		Jump: key.NewBinding(
			key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6"),
			key.WithHelp("alt+1..6", "jump"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "down"),
		),
		Cycle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "cycle status"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// jumpIndex 将 alt+N 转为步骤索引 / maps alt+N to a zero-based step index
func jumpIndex(k string) (int, bool) {
	if len(k) != len("alt+1") || k[:4] != "alt+" {
		return 0, false
	}
	n := int(k[4] - '1')
	if n < 0 || n > 8 {
		return 0, false
	}
	return n, true
}
