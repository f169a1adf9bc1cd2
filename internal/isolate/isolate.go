// Package isolate turns a captured frame into a grayscale image that emphasizes
// a single color channel, ready for QR decoding.
package isolate

import (
	"errors"
	"image"

	"github.com/andresmejia3/chroma/internal/types"
)

// ErrStrategyUnavailable is returned when a strategy's backing library cannot
// be used. Callers decide whether to fall back.
var ErrStrategyUnavailable = errors.New("isolation strategy unavailable")

// Strategy isolates one channel inside the scan box. The returned image is
// box-sized with its origin at (0,0).
type Strategy interface {
	Method() types.Method
	Isolate(frame *image.RGBA, box types.ScanBox, ch types.Channel) (*image.Gray, error)
}

// cropRGBA copies the box region of frame into a box-sized RGBA image.
// Parts of the box outside the frame stay transparent black.
func cropRGBA(frame *image.RGBA, box types.ScanBox) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, box.Size, box.Size))
	src := box.Rect().Intersect(frame.Bounds())
	if src.Empty() {
		return dst
	}
	for y := src.Min.Y; y < src.Max.Y; y++ {
		srcOff := frame.PixOffset(src.Min.X, y)
		dstOff := dst.PixOffset(src.Min.X-box.X, y-box.Y)
		copy(dst.Pix[dstOff:dstOff+src.Dx()*4], frame.Pix[srcOff:srcOff+src.Dx()*4])
	}
	return dst
}
