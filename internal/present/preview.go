package present

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/andresmejia3/chroma/internal/monitoring"
	"github.com/andresmejia3/chroma/internal/types"
)

// BoxColor outlines the scan box in previews.
var BoxColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// DrawBox outlines box on img in place. The outline is clipped to the image.
func DrawBox(img *image.RGBA, box types.ScanBox, c color.RGBA, thickness int) {
	r := box.Rect()
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), // top
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), // left
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		e = e.Intersect(img.Bounds())
		for y := e.Min.Y; y < e.Max.Y; y++ {
			off := img.PixOffset(e.Min.X, y)
			for x := 0; x < e.Dx(); x++ {
				img.Pix[off+x*4] = c.R
				img.Pix[off+x*4+1] = c.G
				img.Pix[off+x*4+2] = c.B
				img.Pix[off+x*4+3] = c.A
			}
		}
	}
}

// PreviewFile composites the scan box onto the frame and writes it as a JPEG,
// replacing the file atomically so viewers never see a partial image.
type PreviewFile struct {
	Path  string
	Every int // write one frame out of Every; 0 or 1 writes all

	count int
}

// Render draws the outline and writes the preview when due.
func (p *PreviewFile) Render(frame *image.RGBA, box types.ScanBox) {
	p.count++
	if p.Every > 1 && p.count%p.Every != 1 {
		return
	}
	DrawBox(frame, box, BoxColor, 3)
	if err := p.write(frame); err != nil {
		monitoring.Logf("preview: %v", err)
	}
}

func (p *PreviewFile) write(img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(p.Path), ".preview-*.jpg")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: 80}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.Path)
}
