// Package present renders scan progress: a terminal status line, spoken
// notifications and an optional preview image.
package present

import (
	"fmt"
	"io"
	"sync"

	"github.com/andresmejia3/chroma/internal/types"
	"github.com/schollz/progressbar/v3"
)

// Sink mirrors scanner.Sink so sinks can be combined here without an import
// cycle.
type Sink interface {
	SetStatus(text string)
	SetOverlay(text string)
	AppendResult(r types.FoundResult)
	Notify(spokenText string)
}

// Terminal shows the status on a spinner and prints results as permanent
// lines above it.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	bar     *progressbar.ProgressBar
	overlay string
}

// NewTerminal writes to w, usually os.Stderr.
func NewTerminal(w io.Writer) *Terminal {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("🔍 Chroma Scanning"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Terminal{out: w, bar: bar}
}

func (t *Terminal) SetStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bar.Describe("🔍 " + text)
	t.bar.Add(1)
}

func (t *Terminal) SetOverlay(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if text == t.overlay {
		return
	}
	t.overlay = text
	t.println("🏷️  " + text)
}

func (t *Terminal) AppendResult(r types.FoundResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(fmt.Sprintf("✅ %-5s %s (%s)", r.Channel, r.DisplayText, r.Method))
}

func (t *Terminal) Notify(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println("🔊 " + text)
}

// Finish clears the spinner.
func (t *Terminal) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bar.Finish()
}

func (t *Terminal) println(line string) {
	t.bar.Clear()
	fmt.Fprintln(t.out, line)
}

// Multi fans every event out to several sinks in order.
type Multi []Sink

func (m Multi) SetStatus(text string) {
	for _, s := range m {
		s.SetStatus(text)
	}
}

func (m Multi) SetOverlay(text string) {
	for _, s := range m {
		s.SetOverlay(text)
	}
}

func (m Multi) AppendResult(r types.FoundResult) {
	for _, s := range m {
		s.AppendResult(r)
	}
}

func (m Multi) Notify(text string) {
	for _, s := range m {
		s.Notify(text)
	}
}
