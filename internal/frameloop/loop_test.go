package frameloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/andresmejia3/chroma/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	mu        sync.Mutex
	draws     int
	ticks     int
	releases  int
	doneAfter int
	holdGuard bool
}

func (f *fakeTarget) Draw() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draws++
}

func (f *fakeTarget) Tick(ctx context.Context) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	return f.doneAfter > 0 && f.ticks >= f.doneAfter, f.holdGuard
}

func (f *fakeTarget) ReleaseGuard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
}

func (f *fakeTarget) counts() (draws, ticks, releases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draws, f.ticks, f.releases
}

const interval = 10 * time.Millisecond

func TestLoopStopsWhenTargetIsDone(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	target := &fakeTarget{doneAfter: 3}
	l := New(clock, interval, time.Millisecond)

	l.Start(context.Background(), target)

	require.Eventually(t, func() bool {
		clock.Advance(interval)
		select {
		case <-l.Done():
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	draws, ticks, _ := target.counts()
	assert.Equal(t, 3, ticks)
	assert.Equal(t, ticks, draws, "every tick composites a frame")
}

func TestLoopReleasesGuardAfterDelay(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	target := &fakeTarget{holdGuard: true}
	l := New(clock, interval, 5*time.Millisecond)
	defer l.Stop()

	l.Start(context.Background(), target)

	require.Eventually(t, func() bool {
		clock.Advance(5 * time.Millisecond)
		_, _, releases := target.counts()
		return releases > 0
	}, time.Second, time.Millisecond)
}

func TestLoopStopIsIdempotent(t *testing.T) {
	l := New(timeutil.NewMockClock(time.Unix(0, 0)), interval, time.Millisecond)

	// Never started.
	l.Stop()
	<-l.Done()

	l.Start(context.Background(), &fakeTarget{})
	l.Stop()
	l.Stop()

	select {
	case <-l.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}
}

func TestLoopRestartCancelsPreviousSchedule(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	first := &fakeTarget{}
	second := &fakeTarget{}
	l := New(clock, interval, time.Millisecond)
	defer l.Stop()

	l.Start(context.Background(), first)
	firstDone := l.Done()
	l.Start(context.Background(), second)

	select {
	case <-firstDone:
	default:
		t.Fatal("restart should stop the previous schedule before re-arming")
	}

	_, before, _ := first.counts()
	require.Eventually(t, func() bool {
		clock.Advance(interval)
		_, ticks, _ := second.counts()
		return ticks > 0
	}, time.Second, time.Millisecond)

	_, after, _ := first.counts()
	assert.Equal(t, before, after, "old target must not be ticked after restart")
}

func TestLoopHonorsContextCancel(t *testing.T) {
	l := New(timeutil.NewMockClock(time.Unix(0, 0)), interval, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	l.Start(ctx, &fakeTarget{})
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after context cancel")
	}
}
