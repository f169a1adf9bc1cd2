// Package frameloop schedules per-frame work on a single goroutine.
package frameloop

import (
	"context"
	"sync"
	"time"

	"github.com/andresmejia3/chroma/internal/timeutil"
)

// Target is driven by the loop. All three methods are called from the loop
// goroutine only, never concurrently with each other.
type Target interface {
	// Draw composites the current frame. It runs on every tick, whatever
	// the decode state.
	Draw()
	// Tick runs one decode pass. done stops the loop; guardHeld asks for a
	// ReleaseGuard call after the guard delay.
	Tick(ctx context.Context) (done, guardHeld bool)
	// ReleaseGuard lets the next Tick start a new decode pass.
	ReleaseGuard()
}

// Loop ticks a Target at a fixed interval and releases its reentrancy guard
// on a separate timer. A Loop can be stopped and started again.
type Loop struct {
	Clock      timeutil.Clock
	Interval   time.Duration
	GuardDelay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped loop.
func New(clock timeutil.Clock, interval, guardDelay time.Duration) *Loop {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Loop{Clock: clock, Interval: interval, GuardDelay: guardDelay}
}

// Start cancels any running schedule and arms a new one against t.
func (l *Loop) Start(ctx context.Context, t Target) {
	l.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := l.Clock.NewTicker(l.Interval)

	l.mu.Lock()
	l.cancel, l.done = cancel, done
	l.mu.Unlock()

	go l.run(ctx, t, ticker, done)
}

func (l *Loop) run(ctx context.Context, t Target, ticker timeutil.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	var guard timeutil.Timer
	var guardC <-chan time.Time
	defer func() {
		if guard != nil {
			guard.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-guardC:
			guard, guardC = nil, nil
			t.ReleaseGuard()
		case <-ticker.C():
			t.Draw()
			finished, held := t.Tick(ctx)
			if finished {
				return
			}
			if held && guardC == nil {
				guard = l.Clock.NewTimer(l.GuardDelay)
				guardC = guard.C()
			}
		}
	}
}

// Stop cancels the schedule and waits for the loop goroutine to exit. It is
// safe to call repeatedly, but not from inside a Target method.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the current schedule ends, either through Stop or
// because the target reported done.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.done
}
