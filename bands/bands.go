// Package bands splits a multispectral frame into its four band slices and
// builds one binary mask per band by exact color match.
//
// The channel axis of a frame is cut into four equal slices. Slice i is
// compared pixel by pixel against Table[i] with broadcasting rules:
//
//   - slice width 3: the pixel is a 3-vector, compared component-wise
//   - slice width 1: the single value must equal all three color components
//   - any other width: ErrShapeMismatch
//
// With width 1 no entry of Table can ever match (no entry has three equal
// components), so every mask is zero. That behavior is kept as-is.
package bands

import (
	"errors"
	"fmt"

	"github.com/e7canasta/sequoia-bands/receiver"
)

// Count is the number of spectral bands in a frame.
const Count = 4

// Color is one reference pixel encoding, in frame channel order (BGR).
type Color [3]uint8

// Band identifies a spectral band by its index in Table.
type Band int

const (
	Red Band = iota
	Green
	Blue
	NIR
)

// String returns the band name.
func (b Band) String() string {
	switch b {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case NIR:
		return "nir"
	default:
		return fmt.Sprintf("band(%d)", int(b))
	}
}

// Table is the band color table, indexed by Band.
var Table = [Count]Color{
	Red:   {0, 0, 255},
	Green: {0, 255, 0},
	Blue:  {255, 0, 0},
	NIR:   {255, 255, 0},
}

// Mask value for a matching pixel. Non-matching pixels are 0.
const On = 255

var (
	// ErrChannelSplit: the channel count does not split into Count equal slices.
	ErrChannelSplit = errors.New("bands: channels do not split into 4 equal slices")

	// ErrShapeMismatch: a slice cannot be compared against a 3-component color.
	ErrShapeMismatch = errors.New("bands: slice width not broadcastable to color")

	// ErrMalformedFrame: pixel buffer length disagrees with frame dimensions.
	ErrMalformedFrame = errors.New("bands: malformed frame")
)

// Mask is a Height x Width binary image, row-major, values in {0, On}.
type Mask struct {
	Width  int
	Height int
	Pix    []byte
}

// At returns the mask value at (y, x).
func (m Mask) At(y, x int) byte {
	return m.Pix[y*m.Width+x]
}

// Extract computes the four band masks of frame.
//
// Returned masks are index-aligned with Table and always Width x Height of
// the frame. Extract is pure: the frame is not modified.
func Extract(frame *receiver.Frame) ([]Mask, error) {
	if frame == nil || !frame.Valid() {
		return nil, ErrMalformedFrame
	}
	if frame.Channels%Count != 0 {
		return nil, fmt.Errorf("%w: got %d channels", ErrChannelSplit, frame.Channels)
	}

	width := frame.Channels / Count
	if width != 1 && width != len(Color{}) {
		return nil, fmt.Errorf("%w: slice width %d vs color width %d",
			ErrShapeMismatch, width, len(Color{}))
	}

	masks := make([]Mask, Count)
	for i := range masks {
		masks[i] = extractSlice(frame, i*width, width, Table[i])
	}
	return masks, nil
}

// extractSlice builds the mask of the slice starting at channel start.
func extractSlice(frame *receiver.Frame, start, width int, color Color) Mask {
	mask := Mask{
		Width:  frame.Width,
		Height: frame.Height,
		Pix:    make([]byte, frame.Width*frame.Height),
	}

	for p := range mask.Pix {
		px := frame.Pix[p*frame.Channels+start : p*frame.Channels+start+width]
		if matches(px, color) {
			mask.Pix[p] = On
		}
	}
	return mask
}

// matches reports whether every broadcast pair (px, color) is equal.
func matches(px []byte, color Color) bool {
	for c := range color {
		v := px[0]
		if len(px) > 1 {
			v = px[c]
		}
		if v != color[c] {
			return false
		}
	}
	return true
}
