// Package scanner coordinates per-frame decoding of the red, green and blue
// QR channels and owns the scan session lifecycle.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/chroma/internal/capture"
	"github.com/andresmejia3/chroma/internal/decode"
	"github.com/andresmejia3/chroma/internal/frameloop"
	"github.com/andresmejia3/chroma/internal/isolate"
	"github.com/andresmejia3/chroma/internal/monitoring"
	"github.com/andresmejia3/chroma/internal/registry"
	"github.com/andresmejia3/chroma/internal/timeutil"
	"github.com/andresmejia3/chroma/internal/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrDeviceAcquisition wraps any failure to open the capture device. It is the
// only error that ends a session before scanning starts.
var ErrDeviceAcquisition = errors.New("capture device acquisition failed")

// Sink receives user-facing status events.
type Sink interface {
	SetStatus(text string)
	SetOverlay(text string)
	AppendResult(r types.FoundResult)
	Notify(spokenText string)
}

// Canvas shows the live frame with the scan box outlined.
type Canvas interface {
	Render(frame *image.RGBA, box types.ScanBox)
}

// Recorder persists session progress. Errors are logged and never stop a scan.
type Recorder interface {
	BeginSession(ctx context.Context, id string, started time.Time) error
	RecordResult(ctx context.Context, sessionID string, r types.FoundResult) error
	FinishSession(ctx context.Context, id, outcome string, finished time.Time) error
}

// Scheduler drives the coordinator once per frame. *frameloop.Loop is the
// production implementation.
type Scheduler interface {
	Start(ctx context.Context, t frameloop.Target)
	Stop()
	Done() <-chan struct{}
}

// Config tunes a session.
type Config struct {
	BoxSize       int
	Timeout       time.Duration
	FrameInterval time.Duration
	// GuardDelay bounds how soon the next frame may start a decode pass.
	GuardDelay time.Duration
	// Parallel isolates and decodes the missing channels concurrently.
	Parallel bool
}

// Deps are the collaborators of a Coordinator. Device, Decoder and Sink are
// required; the rest fall back to sensible defaults or are skipped.
type Deps struct {
	Clock     timeutil.Clock
	Device    capture.Device
	Decoder   decode.Decoder
	Segmenter isolate.Segmenter
	Dominance isolate.Strategy
	Lookup    registry.Lookup
	Sink      Sink
	Canvas    Canvas
	Recorder  Recorder
	Scheduler Scheduler
}

// Coordinator is the per-frame entry point. Tick, Draw and ReleaseGuard are
// called from the scheduler goroutine; the lifecycle methods may be called
// from any goroutine.
type Coordinator struct {
	cfg          Config
	clock        timeutil.Clock
	device       capture.Device
	engine       *decode.Engine
	segmentation *isolate.Segmentation
	dominance    isolate.Strategy
	lookup       registry.Lookup
	sink         Sink
	canvas       Canvas
	recorder     Recorder
	scheduler    Scheduler

	mu              sync.Mutex
	session         *Session
	stream          capture.Stream
	busy            bool
	useSegmentation bool
	pendingNote     string
	lastFrameErr    string

	segmentationLost atomic.Bool
	attempts         atomic.Int64
}

// New wires a coordinator. No device is opened until StartSession.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 30
	}
	if cfg.GuardDelay <= 0 {
		cfg.GuardDelay = 100 * time.Millisecond
	}
	c := &Coordinator{
		cfg:          cfg,
		clock:        deps.Clock,
		device:       deps.Device,
		engine:       decode.NewEngine(deps.Decoder),
		segmentation: &isolate.Segmentation{Lib: deps.Segmenter},
		dominance:    deps.Dominance,
		lookup:       deps.Lookup,
		sink:         deps.Sink,
		canvas:       deps.Canvas,
		recorder:     deps.Recorder,
		scheduler:    deps.Scheduler,
	}
	if c.clock == nil {
		c.clock = timeutil.RealClock{}
	}
	if c.dominance == nil {
		c.dominance = isolate.NewChannelDominance()
	}
	if c.scheduler == nil {
		c.scheduler = frameloop.New(c.clock, cfg.FrameInterval, cfg.GuardDelay)
	}
	return c
}

// StartSession acquires the capture device, creates a fresh session and arms
// the frame loop.
func (c *Coordinator) StartSession(ctx context.Context) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	c.scheduler.Start(ctx, c)
	return nil
}

// StopSession cancels the frame loop and releases the device. Calling it
// again, or after the session ended on its own, does nothing.
func (c *Coordinator) StopSession() {
	c.scheduler.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	c.releaseStream()
	if s := c.session; s != nil && !s.state.Terminal() {
		s.finished = c.clock.Now()
		c.persist(func(ctx context.Context) error {
			return c.recorder.FinishSession(ctx, s.ID, "stopped", s.finished)
		})
	}
}

// RestartSession discards the current session, reacquires the device and
// starts scanning from zero.
func (c *Coordinator) RestartSession(ctx context.Context) error {
	c.StopSession()
	return c.StartSession(ctx)
}

// Wait blocks until the frame loop stops.
func (c *Coordinator) Wait() {
	<-c.scheduler.Done()
}

func (c *Coordinator) begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return errors.New("scan session already running")
	}

	stream, err := c.device.Open(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDeviceAcquisition, err)
		c.sink.SetStatus(fmt.Sprintf("Camera unavailable: %v", err))
		return err
	}

	w, h := stream.Size()
	now := c.clock.Now()
	s := &Session{
		ID:       uuid.NewString(),
		Registry: registry.New(c.lookup, c.clock.Now),
		Started:  now,
		Timeout:  c.cfg.Timeout,
		Box:      types.CenteredBox(w, h, c.cfg.BoxSize),
		state:    Searching,
	}
	c.session = s
	c.stream = stream
	c.busy = false
	c.lastFrameErr = ""
	c.segmentationLost.Store(false)
	c.pendingNote = ""

	// Probe once per session, not per frame.
	c.useSegmentation = c.segmentation.Available()
	if !c.useSegmentation {
		c.noteSegmentationUnavailable()
	}

	c.persist(func(ctx context.Context) error {
		return c.recorder.BeginSession(ctx, s.ID, now)
	})
	c.setStatus(statusText(Searching, 0, s.Registry.Missing(), 0))
	return nil
}

// Tick runs one decode pass. It returns done once the session reached a
// terminal state, and guardHeld while the reentrancy guard awaits release.
func (c *Coordinator) Tick(ctx context.Context) (done, guardHeld bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || c.stream == nil || s.state.Terminal() {
		return true, false
	}
	if c.busy {
		return false, true
	}
	c.busy = true

	if frame, ok := c.captureFrame(); ok {
		found := c.scanFrame(ctx, s, frame)
		for _, r := range found {
			c.sink.AppendResult(r)
			c.sink.Notify(r.SpokenText)
			c.persist(func(ctx context.Context) error {
				return c.recorder.RecordResult(ctx, s.ID, r)
			})
		}
		if len(found) > 0 {
			c.sink.SetOverlay(overlayText(s.Registry.Results()))
		}
	}

	elapsed := c.clock.Since(s.Started)
	s.state = s.next(elapsed)
	c.setStatus(statusText(s.state, s.Registry.Len(), s.Registry.Missing(), elapsed))

	if s.state.Terminal() {
		c.finish(s)
		return true, false
	}
	return false, true
}

// ReleaseGuard allows the next Tick to decode again.
func (c *Coordinator) ReleaseGuard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
}

// Draw hands the current frame and scan box to the canvas, independent of
// decode progress.
func (c *Coordinator) Draw() {
	if c.canvas == nil {
		return
	}
	c.mu.Lock()
	stream, s := c.stream, c.session
	c.mu.Unlock()
	if stream == nil || s == nil {
		return
	}
	frame, err := stream.CurrentFrame()
	if err != nil {
		return
	}
	c.canvas.Render(frame, s.Box)
}

// Session returns the current session, or nil before the first start.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the state of the current session.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Searching
	}
	return c.session.state
}

// Attempts counts decode attempts across all sessions.
func (c *Coordinator) Attempts() int64 {
	return c.attempts.Load()
}

func (c *Coordinator) captureFrame() (*image.RGBA, bool) {
	frame, err := c.stream.CurrentFrame()
	if err == nil {
		c.lastFrameErr = ""
		return frame, true
	}
	if !errors.Is(err, capture.ErrNoFrame) && err.Error() != c.lastFrameErr {
		c.lastFrameErr = err.Error()
		monitoring.Logf("capture: %v", err)
	}
	return nil, false
}

// scanFrame tries every missing channel and returns the results recorded in
// this frame, in scan order.
func (c *Coordinator) scanFrame(ctx context.Context, s *Session, frame *image.RGBA) []types.FoundResult {
	missing := s.Registry.Missing()
	recorded := make([]*types.FoundResult, len(missing))

	if c.cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, ch := range missing {
			i, ch := i, ch
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if r, ok := c.scanChannel(s, frame, ch); ok {
					recorded[i] = &r
				}
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, ch := range missing {
			if ctx.Err() != nil {
				break
			}
			if r, ok := c.scanChannel(s, frame, ch); ok {
				recorded[i] = &r
			}
		}
	}

	if c.useSegmentation && c.segmentationLost.Load() {
		c.useSegmentation = false
		c.noteSegmentationUnavailable()
	}

	var out []types.FoundResult
	for _, r := range recorded {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// scanChannel prefers segmentation and falls back to channel dominance. A
// segmentation hit skips dominance for this channel in this frame.
func (c *Coordinator) scanChannel(s *Session, frame *image.RGBA, ch types.Channel) (types.FoundResult, bool) {
	if c.useSegmentation && !c.segmentationLost.Load() {
		payload, ok, err := c.attempt(c.segmentation, frame, s.Box, ch)
		switch {
		case errors.Is(err, isolate.ErrStrategyUnavailable):
			c.segmentationLost.Store(true)
		case err != nil:
			monitoring.Logf("%s/%s: %v", ch, types.Segmented, err)
		case ok:
			return s.Registry.Record(ch, payload, types.Segmented)
		}
	}

	payload, ok, err := c.attempt(c.dominance, frame, s.Box, ch)
	if err != nil {
		monitoring.Logf("%s/%s: %v", ch, types.ChannelDominance, err)
		return types.FoundResult{}, false
	}
	if !ok {
		return types.FoundResult{}, false
	}
	return s.Registry.Record(ch, payload, types.ChannelDominance)
}

// attempt isolates and decodes one channel with one strategy. Panics from
// the isolation library are turned into errors so the other channels still
// run.
func (c *Coordinator) attempt(st isolate.Strategy, frame *image.RGBA, box types.ScanBox, ch types.Channel) (payload string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, ok, err = "", false, fmt.Errorf("isolation panicked: %v", r)
		}
	}()

	img, err := st.Isolate(frame, box, ch)
	if err != nil {
		return "", false, err
	}
	c.attempts.Add(1)
	return c.engine.Attempt(img)
}

func (c *Coordinator) finish(s *Session) {
	s.finished = c.clock.Now()
	switch s.state {
	case Complete:
		c.sink.Notify("All three QR codes found")
	case Expired:
		c.sink.Notify(fmt.Sprintf("Scan timed out with %d of %d codes found", s.Registry.Len(), len(types.Channels)))
	}
	c.releaseStream()
	c.persist(func(ctx context.Context) error {
		return c.recorder.FinishSession(ctx, s.ID, s.state.String(), s.finished)
	})
}

// releaseStream closes the device exactly once per session. Callers hold c.mu.
func (c *Coordinator) releaseStream() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Close(); err != nil {
		monitoring.Logf("capture: close failed: %v", err)
	}
	c.stream = nil
}

func (c *Coordinator) noteSegmentationUnavailable() {
	const note = "Color segmentation unavailable, using channel dominance"
	monitoring.Logf("%s", note)
	c.pendingNote = note
}

// setStatus forwards text to the sink. The first status after segmentation
// drops out carries the full note; later ones keep a short marker so the
// fallback stays visible on a single-line display. Callers hold c.mu.
func (c *Coordinator) setStatus(text string) {
	switch {
	case c.pendingNote != "":
		text = c.pendingNote + ". " + text
		c.pendingNote = ""
	case !c.useSegmentation:
		text += " [channel dominance only]"
	}
	c.sink.SetStatus(text)
}

const persistTimeout = 5 * time.Second

func (c *Coordinator) persist(fn func(ctx context.Context) error) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		monitoring.Logf("store: %v", err)
	}
}
