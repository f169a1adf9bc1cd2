//go:build !gocv

package isolate

import (
	"image"

	"github.com/andresmejia3/chroma/internal/types"
)

// unavailableSegmenter stands in when the binary is built without OpenCV.
type unavailableSegmenter struct{}

// NewOpenCVSegmenter returns a segmenter that always reports unavailable.
// Build with -tags gocv for the real one.
func NewOpenCVSegmenter() Segmenter { return unavailableSegmenter{} }

func (unavailableSegmenter) Available() bool { return false }

func (unavailableSegmenter) Segment(*image.RGBA, types.Channel) (*image.Gray, error) {
	return nil, ErrStrategyUnavailable
}
