// Package decode runs the QR decoder against an isolated channel image.
package decode

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrNotFound means the decoder saw no readable symbol. It is the expected
// outcome for most frames.
var ErrNotFound = errors.New("qr symbol not found")

// Decoder reads a QR payload from an image. Implementations return ErrNotFound
// (possibly wrapped) when no symbol is present.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// Engine tries both polarities so light-on-dark symbols decode as readily as
// dark-on-light ones.
type Engine struct {
	Decoder Decoder
}

// NewEngine wraps d.
func NewEngine(d Decoder) *Engine {
	return &Engine{Decoder: d}
}

// Attempt returns the normalized payload and true on success. A missing
// symbol is reported as ok=false with a nil error; any other decoder failure,
// including a panic inside the decoder, is returned as err.
func (e *Engine) Attempt(img *image.Gray) (payload string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, ok, err = "", false, fmt.Errorf("decoder panicked: %v", r)
		}
	}()

	for _, candidate := range []func() *image.Gray{
		func() *image.Gray { return img },
		func() *image.Gray { return Invert(img) },
	} {
		raw, err := e.Decoder.Decode(candidate())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		if p := Normalize(raw); p != "" {
			return p, true, nil
		}
	}
	return "", false, nil
}

// Normalize trims the payload and removes all internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// Invert returns a copy of img with every intensity flipped.
func Invert(img *image.Gray) *image.Gray {
	out := &image.Gray{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	for i, v := range img.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}
