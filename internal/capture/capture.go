// Package capture pulls RGBA frames from a video device through ffmpeg.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/andresmejia3/chroma/internal/utils"
)

var (
	// ErrNoFrame means the stream has not produced a frame yet.
	ErrNoFrame = errors.New("no frame captured yet")
	// ErrClosed is returned by CurrentFrame after Close.
	ErrClosed = errors.New("capture stream closed")
)

// Device opens a capture stream.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream supplies the most recent frame of an open device.
type Stream interface {
	Size() (width, height int)
	CurrentFrame() (*image.RGBA, error)
	Close() error
}

// Config selects the ffmpeg input. Frames are scaled to Width x Height so the
// frame size is known before the first frame arrives.
type Config struct {
	InputFormat  string // e.g. v4l2, avfoundation, dshow; empty for files
	Device       string
	Width        int
	Height       int
	FPS          int
	StartTimeout time.Duration
}

// FFmpeg is a Device backed by an ffmpeg child process emitting raw RGBA.
type FFmpeg struct {
	Config Config
}

// NewFFmpeg returns an ffmpeg-backed device.
func NewFFmpeg(cfg Config) *FFmpeg {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 5 * time.Second
	}
	return &FFmpeg{Config: cfg}
}

// Open starts ffmpeg and waits for the first frame, so a device that cannot
// be opened fails here rather than on a later frame.
func (f *FFmpeg) Open(ctx context.Context) (Stream, error) {
	cfg := f.Config
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid capture size %dx%d", cfg.Width, cfg.Height)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := utils.NewFFmpegCaptureCmd(ctx, cfg.InputFormat, cfg.Device, cfg.Width, cfg.Height, cfg.FPS)

	out, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := newStream(out, cfg.Width, cfg.Height)
	s.stop = func() error {
		cancel()
		// Killed by us, so the exit status carries no information.
		_ = cmd.Wait()
		return nil
	}

	select {
	case <-s.first:
		return s, nil
	case <-s.done:
		s.Close()
		return nil, fmt.Errorf("ffmpeg exited before the first frame: %w (%s)", s.readErr(), cmd.Stderr.String())
	case <-time.After(cfg.StartTimeout):
		s.Close()
		return nil, fmt.Errorf("no frame from %s within %s", cfg.Device, cfg.StartTimeout)
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

// stream double-buffers raw RGBA frames read from r.
type stream struct {
	width, height int

	mu     sync.Mutex
	latest []byte
	closed bool
	err    error

	first     chan struct{}
	firstOnce sync.Once
	done      chan struct{}

	r         io.ReadCloser
	stop      func() error
	closeOnce sync.Once
	closeErr  error
}

func newStream(r io.ReadCloser, width, height int) *stream {
	s := &stream{
		width:  width,
		height: height,
		first:  make(chan struct{}),
		done:   make(chan struct{}),
		r:      r,
	}
	go s.readLoop()
	return s
}

func (s *stream) readLoop() {
	defer close(s.done)

	frameSize := s.width * s.height * 4
	back := make([]byte, frameSize)
	for {
		if _, err := io.ReadFull(s.r, back); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.latest, back = back, s.latest
		s.mu.Unlock()
		if back == nil {
			back = make([]byte, frameSize)
		}
		s.firstOnce.Do(func() { close(s.first) })
	}
}

func (s *stream) readErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Size() (int, int) { return s.width, s.height }

// CurrentFrame returns a copy of the most recent frame.
func (s *stream) CurrentFrame() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.latest == nil {
		if s.err != nil {
			return nil, fmt.Errorf("capture stream ended: %w", s.err)
		}
		return nil, ErrNoFrame
	}
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, s.latest)
	return img, nil
}

// Close stops the device. Only the first call does any work.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.r.Close()
		if s.stop != nil {
			s.closeErr = s.stop()
		}
		<-s.done
	})
	return s.closeErr
}
