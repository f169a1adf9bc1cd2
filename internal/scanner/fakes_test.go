package scanner

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/andresmejia3/chroma/internal/capture"
	"github.com/andresmejia3/chroma/internal/decode"
	"github.com/andresmejia3/chroma/internal/frameloop"
	"github.com/andresmejia3/chroma/internal/types"
)

// --- capture ---

type fakeDevice struct {
	mu      sync.Mutex
	opens   int
	openErr error
	streams []*fakeStream
}

func (d *fakeDevice) Open(ctx context.Context) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{device: d}
	d.streams = append(d.streams, s)
	return s, nil
}

// frame returns the number of frames captured by the newest stream.
func (d *fakeDevice) frame() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return 0
	}
	return d.streams[len(d.streams)-1].frames
}

type fakeStream struct {
	device *fakeDevice
	frames int
	closes int
}

func (s *fakeStream) Size() (int, int) { return 16, 16 }

func (s *fakeStream) CurrentFrame() (*image.RGBA, error) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.frames++
	return image.NewRGBA(image.Rect(0, 0, 16, 16)), nil
}

func (s *fakeStream) Close() error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.closes++
	return nil
}

// --- isolation ---

// marker encodes channel and method into the single pixel the fake decoder
// reads back. Values stay below 128 so an inverted image is recognizable.
func marker(ch types.Channel, m types.Method) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.Pix[0] = uint8(int(m)*10 + int(ch))
	return img
}

type fakeSegmenter struct {
	mu        sync.Mutex
	available bool
	calls     int
}

func (f *fakeSegmenter) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeSegmenter) Segment(img *image.RGBA, ch types.Channel) (*image.Gray, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return marker(ch, types.Segmented), nil
}

type fakeDominance struct {
	fail map[types.Channel]error
	boom map[types.Channel]bool
}

func (f *fakeDominance) Method() types.Method { return types.ChannelDominance }

func (f *fakeDominance) Isolate(frame *image.RGBA, box types.ScanBox, ch types.Channel) (*image.Gray, error) {
	if f.boom[ch] {
		panic("isolation blew up")
	}
	if err := f.fail[ch]; err != nil {
		return nil, err
	}
	return marker(ch, types.ChannelDominance), nil
}

// --- decoding ---

type rule struct {
	from    int // first frame on which this channel/method decodes
	payload string
}

type call struct {
	frame  int
	ch     types.Channel
	method types.Method
}

type scriptDecoder struct {
	mu     sync.Mutex
	device *fakeDevice
	rules  map[call]rule // keyed by channel and method; frame is ignored
	calls  []call
}

func newScriptDecoder(d *fakeDevice) *scriptDecoder {
	return &scriptDecoder{device: d, rules: make(map[call]rule)}
}

func (s *scriptDecoder) on(ch types.Channel, m types.Method, from int, payload string) {
	s.rules[call{ch: ch, method: m}] = rule{from: from, payload: payload}
}

func (s *scriptDecoder) Decode(img image.Image) (string, error) {
	v := img.(*image.Gray).Pix[0]
	if v >= 128 {
		return "", decode.ErrNotFound
	}
	c := call{frame: s.device.frame(), ch: types.Channel(v % 10), method: types.Method(v / 10)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
	r, ok := s.rules[call{ch: c.ch, method: c.method}]
	if !ok || c.frame < r.from {
		return "", decode.ErrNotFound
	}
	return r.payload, nil
}

func (s *scriptDecoder) callsFor(ch types.Channel) []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if c.ch == ch {
			out = append(out, c)
		}
	}
	return out
}

// --- sinks ---

type fakeSink struct {
	mu       sync.Mutex
	statuses []string
	overlays []string
	results  []types.FoundResult
	notifies []string
}

func (f *fakeSink) SetStatus(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, text)
}

func (f *fakeSink) SetOverlay(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overlays = append(f.overlays, text)
}

func (f *fakeSink) AppendResult(r types.FoundResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
}

func (f *fakeSink) Notify(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifies = append(f.notifies, text)
}

type fakeRecorder struct {
	mu       sync.Mutex
	begun    []string
	results  []types.FoundResult
	outcomes []string
	err      error
}

func (f *fakeRecorder) BeginSession(ctx context.Context, id string, started time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begun = append(f.begun, id)
	return f.err
}

func (f *fakeRecorder) RecordResult(ctx context.Context, sessionID string, r types.FoundResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return f.err
}

func (f *fakeRecorder) FinishSession(ctx context.Context, id, outcome string, finished time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return f.err
}

// manualScheduler records lifecycle calls; tests drive Tick themselves.
type manualScheduler struct {
	starts, stops int
	done          chan struct{}
}

func (m *manualScheduler) Start(ctx context.Context, t frameloop.Target) {
	m.starts++
	m.done = make(chan struct{})
}

func (m *manualScheduler) Stop() {
	m.stops++
	if m.done != nil {
		select {
		case <-m.done:
		default:
			close(m.done)
		}
	}
}

func (m *manualScheduler) Done() <-chan struct{} { return m.done }

var errIsolation = errors.New("isolation failed")
