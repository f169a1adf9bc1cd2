//go:build gocv

package isolate

import (
	"fmt"
	"image"

	"github.com/andresmejia3/chroma/internal/types"
	"gocv.io/x/gocv"
)

// opencvSegmenter segments with OpenCV through gocv. Build with -tags gocv.
type opencvSegmenter struct{}

// NewOpenCVSegmenter returns the gocv-backed segmenter.
func NewOpenCVSegmenter() Segmenter { return opencvSegmenter{} }

func (opencvSegmenter) Available() bool { return true }

func (opencvSegmenter) Segment(img *image.RGBA, ch types.Channel) (*image.Gray, error) {
	windows := HueWindows(ch)
	if len(windows) == 0 {
		return nil, fmt.Errorf("no hue window for channel %s", ch)
	}

	rgba, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame to mat: %w", err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	for i, w := range windows {
		part := gocv.NewMat()
		lo := gocv.NewScalar(float64(w.Lo[0]), float64(w.Lo[1]), float64(w.Lo[2]), 0)
		hi := gocv.NewScalar(float64(w.Hi[0]), float64(w.Hi[1]), float64(w.Hi[2]), 0)
		gocv.InRangeWithScalar(hsv, lo, hi, &part)
		if i == 0 {
			part.CopyTo(&mask)
		} else {
			gocv.BitwiseOr(mask, part, &mask)
		}
		part.Close()
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(mask, &closed, gocv.MorphClose, kernel)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(closed, &opened, gocv.MorphOpen, kernel)

	out, err := opened.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mask to image: %w", err)
	}
	gray, ok := out.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected mask image type %T", out)
	}
	return gray, nil
}
