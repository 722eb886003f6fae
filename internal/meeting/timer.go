package meeting

import (
	"fmt"
	"sync"
	"time"

	"huddle/internal/clock"
)

// Elapsed 展示用的计时快照 / Elapsed is a display snapshot of the timers
type Elapsed struct {
	Step    StepID
	Total   time.Duration
	Section time.Duration
}

// SectionTimer 记录会议总时长和当前步骤时长
// SectionTimer tracks total meeting time and time spent in the current
// section. Two repeaters recompute the display values on a fixed interval;
// the values are never authoritative. Stop cancels both.
type SectionTimer struct {
	clock    clock.Clock
	interval time.Duration

	mu               sync.Mutex
	startedAt        time.Time
	sectionStartedAt time.Time
	current          StepID
	accumulated      map[StepID]time.Duration
	display          Elapsed

	stop     chan struct{}
	wg       sync.WaitGroup
	running  bool
	stopOnce sync.Once
}

// NewSectionTimer starts the clock at c.Now() in section first.
func NewSectionTimer(c clock.Clock, interval time.Duration, first StepID) *SectionTimer {
	now := c.Now()
	return &SectionTimer{
		clock:            c,
		interval:         interval,
		startedAt:        now,
		sectionStartedAt: now,
		current:          first,
		accumulated:      make(map[StepID]time.Duration),
		display:          Elapsed{Step: first},
		stop:             make(chan struct{}),
	}
}

// Start 启动两个重复任务，onTick 可为 nil
// Start launches the total and section repeaters. onTick, if set, runs
// after every recomputation on the repeater's goroutine.
func (t *SectionTimer) Start(onTick func(Elapsed)) {
	select {
	case <-t.stop:
		return
	default:
	}
	t.mu.Lock()
	if t.running || t.interval <= 0 {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	// 同步创建 ticker，避免 Start 返回后丢失第一次触发
	// Tickers are created before Start returns so no tick is missed
	totalTicker := t.clock.NewTicker(t.interval)
	sectionTicker := t.clock.NewTicker(t.interval)

	t.repeat(totalTicker, func(now time.Time) {
		t.mu.Lock()
		t.display.Total = now.Sub(t.startedAt)
		snap := t.display
		t.mu.Unlock()
		if onTick != nil {
			onTick(snap)
		}
	})
	t.repeat(sectionTicker, func(now time.Time) {
		t.mu.Lock()
		t.display.Section = now.Sub(t.sectionStartedAt)
		snap := t.display
		t.mu.Unlock()
		if onTick != nil {
			onTick(snap)
		}
	})
}

func (t *SectionTimer) repeat(ticker *clock.Ticker, fn func(time.Time)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case now := <-ticker.C:
				select {
				case <-t.stop:
					return
				default:
				}
				fn(now)
			}
		}
	}()
}

// Switch 切换到新的步骤，累计上一段时长并重置 sectionStartedAt
// Switch credits the running section and resets sectionStartedAt
func (t *SectionTimer) Switch(step StepID) {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accumulated[t.current] += now.Sub(t.sectionStartedAt)
	t.current = step
	t.sectionStartedAt = now
	t.display.Step = step
	t.display.Section = 0
}

// Display returns the last recomputed values.
func (t *SectionTimer) Display() Elapsed {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.display
}

// Measure 按当前时间计算 / Measure computes fresh values from the clock
func (t *SectionTimer) Measure() Elapsed {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	return Elapsed{
		Step:    t.current,
		Total:   now.Sub(t.startedAt),
		Section: now.Sub(t.sectionStartedAt),
	}
}

// PerSection 返回每个步骤的累计时长，包含当前步骤正在计时的部分
// PerSection returns time per step, including the running section
func (t *SectionTimer) PerSection(now time.Time) map[StepID]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[StepID]time.Duration, len(t.accumulated)+1)
	for id, d := range t.accumulated {
		out[id] = d
	}
	out[t.current] += now.Sub(t.sectionStartedAt)
	return out
}

func (t *SectionTimer) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

func (t *SectionTimer) SectionStartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sectionStartedAt
}

// Stop 停止两个重复任务并等待其退出，可重复调用
// Stop cancels both repeaters and waits for them to exit. Safe to call twice.
func (t *SectionTimer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	t.wg.Wait()
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Running reports whether the repeaters are active.
func (t *SectionTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// FormatDuration 格式化为 mm:ss 或 h:mm:ss / formats as mm:ss or h:mm:ss
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
