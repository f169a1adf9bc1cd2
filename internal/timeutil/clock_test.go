package timeutil

import (
	"testing"
	"time"
)

func TestMockClockTimer(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	timer := c.NewTimer(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case got := <-timer.C():
		if !got.Equal(start.Add(100 * time.Millisecond)) {
			t.Errorf("timer fired at %v", got)
		}
	default:
		t.Fatal("timer did not fire at deadline")
	}

	if timer.Stop() {
		t.Error("Stop on a fired timer should report inactive")
	}
}

func TestMockClockTickerStop(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(10 * time.Millisecond)

	c.Advance(10 * time.Millisecond)
	<-ticker.C()

	ticker.Stop()
	c.Advance(10 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockClockSince(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewMockClock(start)
	c.Advance(3 * time.Second)
	if got := c.Since(start); got != 3*time.Second {
		t.Errorf("Since() = %v, want 3s", got)
	}
}
