package isolate

import (
	"image"

	"github.com/andresmejia3/chroma/internal/types"
)

const (
	// DefaultMargin is how far the target channel must exceed both others.
	DefaultMargin = 30
	// DefaultFloor is the minimum target intensity for a dominant pixel.
	DefaultFloor = 60
)

// ChannelDominance needs no external library. Every output pixel carries the
// raw target-channel intensity so the decoder sees a continuous image; the
// dominance test only feeds Diagnostics.
type ChannelDominance struct {
	Margin uint8
	Floor  uint8

	// Diagnostics, when set, receives the dominant pixel count per call.
	Diagnostics func(ch types.Channel, dominant, total int)
}

// NewChannelDominance returns the strategy with default thresholds.
func NewChannelDominance() *ChannelDominance {
	return &ChannelDominance{Margin: DefaultMargin, Floor: DefaultFloor}
}

func (d *ChannelDominance) Method() types.Method { return types.ChannelDominance }

func (d *ChannelDominance) Isolate(frame *image.RGBA, box types.ScanBox, ch types.Channel) (*image.Gray, error) {
	out := image.NewGray(image.Rect(0, 0, box.Size, box.Size))
	src := box.Rect().Intersect(frame.Bounds())

	// Offsets into an RGBA quad: target first, then the two others.
	t := int(ch)
	o1, o2 := (t+1)%3, (t+2)%3

	dominant := 0
	for y := src.Min.Y; y < src.Max.Y; y++ {
		in := frame.PixOffset(src.Min.X, y)
		outOff := out.PixOffset(src.Min.X-box.X, y-box.Y)
		for x := 0; x < src.Dx(); x++ {
			px := frame.Pix[in+x*4 : in+x*4+3]
			v := px[t]
			if d.isDominant(v, px[o1], px[o2]) {
				dominant++
			}
			out.Pix[outOff+x] = v
		}
	}

	if d.Diagnostics != nil {
		d.Diagnostics(ch, dominant, src.Dx()*src.Dy())
	}
	return out, nil
}

func (d *ChannelDominance) isDominant(v, a, b uint8) bool {
	m := int(d.Margin)
	return v >= d.Floor && int(v) > int(a)+m && int(v) > int(b)+m
}
