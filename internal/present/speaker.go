package present

import (
	"context"
	"fmt"
	"time"

	"github.com/andresmejia3/chroma/internal/monitoring"
	"github.com/andresmejia3/chroma/internal/types"
	"github.com/andresmejia3/chroma/internal/utils"
)

const speakTimeout = 10 * time.Second

// Speaker speaks notifications through an external TTS command such as
// espeak or say. Speech runs on its own goroutine so the frame loop never
// waits for audio. Only Notify does anything.
type Speaker struct {
	queue chan string
	done  chan struct{}
	say   func(ctx context.Context, text string) error
}

// NewSpeaker runs `command <text>` for each notification.
func NewSpeaker(command string) *Speaker {
	return newSpeaker(func(ctx context.Context, text string) error {
		cmd := utils.NewSafeCommand(ctx, command, text)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s failed: %w (%s)", command, err, cmd.Stderr.String())
		}
		return nil
	})
}

func newSpeaker(say func(ctx context.Context, text string) error) *Speaker {
	s := &Speaker{
		queue: make(chan string, 8),
		done:  make(chan struct{}),
		say:   say,
	}
	go s.run()
	return s
}

func (s *Speaker) run() {
	defer close(s.done)
	for text := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
		if err := s.say(ctx, text); err != nil {
			monitoring.Logf("speech: %v", err)
		}
		cancel()
	}
}

func (s *Speaker) SetStatus(string)                 {}
func (s *Speaker) SetOverlay(string)                {}
func (s *Speaker) AppendResult(r types.FoundResult) {}

// Notify queues text for speaking, dropping it if the queue is full.
func (s *Speaker) Notify(text string) {
	select {
	case s.queue <- text:
	default:
		monitoring.Logf("speech: queue full, dropping %q", text)
	}
}

// Close waits for queued speech to finish. Call it once, after the last Notify.
func (s *Speaker) Close() {
	close(s.queue)
	<-s.done
}
