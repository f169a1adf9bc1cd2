package isolate

import (
	"image"

	"github.com/andresmejia3/chroma/internal/types"
)

// Segmenter is the color-space segmentation library: it thresholds an RGBA
// image by a channel's hue window and returns a cleaned binary mask.
type Segmenter interface {
	Available() bool
	Segment(img *image.RGBA, ch types.Channel) (*image.Gray, error)
}

// Segmentation isolates a channel with a Segmenter. It never degrades
// silently: an absent or unavailable library yields ErrStrategyUnavailable.
type Segmentation struct {
	Lib Segmenter
}

func (s *Segmentation) Method() types.Method { return types.Segmented }

// Available reports whether the backing library can be used right now.
func (s *Segmentation) Available() bool {
	return s != nil && s.Lib != nil && s.Lib.Available()
}

func (s *Segmentation) Isolate(frame *image.RGBA, box types.ScanBox, ch types.Channel) (*image.Gray, error) {
	if !s.Available() {
		return nil, ErrStrategyUnavailable
	}
	return s.Lib.Segment(cropRGBA(frame, box), ch)
}

// HSVRange is an inclusive HSV window on OpenCV's scale: hue 0-180,
// saturation and value 0-255.
type HSVRange struct {
	Lo, Hi [3]uint8
}

const (
	minSaturation = 70
	minValue      = 50
)

// HueWindows returns the thresholds for ch. Red wraps around hue 0, so it
// needs two ranges.
func HueWindows(ch types.Channel) []HSVRange {
	window := func(lo, hi uint8) HSVRange {
		return HSVRange{Lo: [3]uint8{lo, minSaturation, minValue}, Hi: [3]uint8{hi, 255, 255}}
	}
	switch ch {
	case types.Red:
		return []HSVRange{window(0, 10), window(170, 180)}
	case types.Green:
		return []HSVRange{window(35, 85)}
	case types.Blue:
		return []HSVRange{window(100, 130)}
	}
	return nil
}
