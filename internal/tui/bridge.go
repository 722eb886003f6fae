package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"huddle/internal/meeting"
	"huddle/internal/notify"
)

// Bridge 将引擎回调（通知、计时）转为 Bubble Tea 消息
// Bridge turns engine callbacks (notices and timer ticks) into Bubble Tea
// messages. It is created before the engine, handed to it through
// meeting.WithNotifier and meeting.OnTick, and drained by the App.
//
// Neither callback blocks: the engine may call them from inside Update,
// for example when completion fails, and a blocking send would deadlock
// the event loop.
type Bridge struct {
	notices chan notify.Notice
	ticks   chan meeting.Elapsed
}

func NewBridge() *Bridge {
	return &Bridge{
		notices: make(chan notify.Notice, 64),
		ticks:   make(chan meeting.Elapsed, 1),
	}
}

// Notify implements notify.Notifier. Notices beyond the buffer are dropped.
func (b *Bridge) Notify(n notify.Notice) {
	select {
	case b.notices <- n:
	default:
	}
}

// Tick 只保留最新的计时值 / Tick keeps only the latest display values
func (b *Bridge) Tick(el meeting.Elapsed) {
	for {
		select {
		case b.ticks <- el:
			return
		default:
		}
		select {
		case <-b.ticks:
		default:
		}
	}
}

// listen 等待下一条通知或计时 / waits for the next notice or tick
func (b *Bridge) listen() tea.Cmd {
	if b == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n := <-b.notices:
			return NoticeMsg{Notice: n}
		case el := <-b.ticks:
			return TickMsg{Elapsed: el}
		}
	}
}
