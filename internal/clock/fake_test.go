package clock

import (
	"testing"
	"time"
)

func TestFakeClock_NowAndAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Fake(start)
	if !c.Now().Equal(start) {
		t.Fatalf("Now()=%v, want %v", c.Now(), start)
	}
	c.Advance(90 * time.Second)
	if got := c.Now().Sub(start); got != 90*time.Second {
		t.Fatalf("elapsed=%v, want 90s", got)
	}
}

func TestFakeClock_TickerFiresOnAdvance(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)

	select {
	case <-ticker.C:
		t.Fatal("ticker fired before advance")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C:
		t.Fatal("ticker fired before deadline")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire at deadline")
	}
}

func TestFakeClock_StopRemovesTicker(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	if c.ActiveTickers() != 1 {
		t.Fatalf("ActiveTickers()=%d, want 1", c.ActiveTickers())
	}
	ticker.Stop()
	c.Advance(5 * time.Second)
	if c.ActiveTickers() != 0 {
		t.Fatalf("ActiveTickers()=%d, want 0", c.ActiveTickers())
	}
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeClock_NonPositiveIntervalPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Fake(time.Unix(0, 0)).NewTicker(0)
}
