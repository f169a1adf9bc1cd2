package scanner

import (
	"fmt"
	"strings"
	"time"

	"github.com/andresmejia3/chroma/internal/registry"
	"github.com/andresmejia3/chroma/internal/types"
)

// State is the progress of a scan session. States only move forward.
type State int

const (
	Searching State = iota // nothing found yet
	Partial                // one or two channels found
	Complete               // all channels found, terminal
	Expired                // timed out before completion, terminal
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	case Expired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further decoding may happen in this state.
func (s State) Terminal() bool {
	return s == Complete || s == Expired
}

// Session is one bounded scanning attempt. It is created by StartSession and
// replaced, never reused, on restart.
type Session struct {
	ID       string
	Registry *registry.Registry
	Started  time.Time
	Timeout  time.Duration
	Box      types.ScanBox

	state    State
	finished time.Time
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Elapsed is the session duration, frozen once the session has ended.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if !s.finished.IsZero() {
		return s.finished.Sub(s.Started)
	}
	return now.Sub(s.Started)
}

// next derives the state from the result count and elapsed time. Completion
// wins over expiry when both happen on the same frame.
func (s *Session) next(elapsed time.Duration) State {
	if s.state.Terminal() {
		return s.state
	}
	n := s.Registry.Len()
	var st State
	switch {
	case n == len(types.Channels):
		st = Complete
	case elapsed > s.Timeout:
		st = Expired
	case n > 0:
		st = Partial
	default:
		st = Searching
	}
	if st < s.state {
		st = s.state
	}
	return st
}

func statusText(st State, found int, missing []types.Channel, elapsed time.Duration) string {
	secs := int(elapsed.Seconds())
	total := len(types.Channels)
	switch st {
	case Complete:
		return fmt.Sprintf("Complete: %d/%d found in %ds", found, total, secs)
	case Expired:
		return fmt.Sprintf("Timed out after %ds: %d/%d found, missing %s", secs, found, total, joinChannels(missing))
	case Partial:
		return fmt.Sprintf("Partial: %d/%d found, missing %s (%ds)", found, total, joinChannels(missing), secs)
	default:
		return fmt.Sprintf("Searching: %d/%d found, missing %s (%ds)", found, total, joinChannels(missing), secs)
	}
}

func overlayText(results []types.FoundResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.DisplayText)
	}
	return strings.Join(parts, " | ")
}

func joinChannels(chs []types.Channel) string {
	names := make([]string, len(chs))
	for i, ch := range chs {
		names[i] = ch.String()
	}
	return strings.Join(names, ", ")
}
