package types

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// Channel identifies one of the three color-encoded QR symbols.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// Channels lists every channel in scan order.
var Channels = [...]Channel{Red, Green, Blue}

func (c Channel) String() string {
	switch c {
	case Red:
		return "RED"
	case Green:
		return "GREEN"
	case Blue:
		return "BLUE"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Lower returns the lowercase channel name used in spoken text and storage.
func (c Channel) Lower() string {
	return strings.ToLower(c.String())
}

// ParseChannel accepts "red", "RED", "r" and so on.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r":
		return Red, nil
	case "green", "g":
		return Green, nil
	case "blue", "b":
		return Blue, nil
	}
	return 0, fmt.Errorf("unknown channel %q (want red, green or blue)", s)
}

// Method records which isolation strategy produced a successful decode.
type Method int

const (
	Segmented Method = iota
	ChannelDominance
)

func (m Method) String() string {
	switch m {
	case Segmented:
		return "segmented"
	case ChannelDominance:
		return "channel-dominance"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod is the inverse of Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "segmented":
		return Segmented, nil
	case "channel-dominance":
		return ChannelDominance, nil
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

// ScanBox is the square region of the frame that is analyzed.
type ScanBox struct {
	X, Y, Size int
}

// CenteredBox centers a square of the given size in a width x height frame.
// The size is clamped to the shorter frame edge.
func CenteredBox(width, height, size int) ScanBox {
	if size <= 0 || size > width {
		size = width
	}
	if size > height {
		size = height
	}
	return ScanBox{X: (width - size) / 2, Y: (height - size) / 2, Size: size}
}

// Rect returns the box in frame coordinates.
func (b ScanBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Size, b.Y+b.Size)
}

// LookupEntry is the semantic record attached to a known payload.
type LookupEntry struct {
	DisplayText string `json:"display_text"`
	SpokenText  string `json:"spoken_text"`
}

// FoundResult is the single result recorded for a channel in a session.
type FoundResult struct {
	Channel     Channel
	RawPayload  string
	Method      Method
	DisplayText string
	SpokenText  string
	FoundAt     time.Time
}
