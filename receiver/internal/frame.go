package internal

import "time"

// Frame is one decoded camera image with immutability contract for zero-copy sharing.
//
// IMMUTABILITY CONTRACT:
//   - Decoder: MUST NOT keep or modify frame.Pix after returning it
//   - Readers: MUST NOT modify frame.Pix (read-only access)
//   - Enforcement: Documentation-based (runtime checks would add overhead)
//
// Layout: row-major, channel-interleaved (HWC). Pixel (y, x) channel c lives at
// Pix[(y*Width+x)*Channels+c].
type Frame struct {
	// Pix contains the interleaved 8-bit samples, len = Height*Width*Channels.
	Pix []byte

	// Width of the frame in pixels
	Width int

	// Height of the frame in pixels
	Height int

	// Channels is the number of interleaved samples per pixel.
	Channels int

	// Encoding is the pixel encoding produced by the decoder (e.g. "bgr8", "8UC12").
	Encoding string

	// FrameID is the header frame id of the source message (may be empty).
	FrameID string

	// Timestamp is the source stamp when present, otherwise the delivery time.
	Timestamp time.Time

	// Seq is assigned by the receiver on store. Monotonically increasing, starts at 1.
	Seq uint64

	// TraceID is a unique identifier assigned by the receiver on store.
	TraceID string
}

// Offset returns the index of channel 0 of pixel (y, x) in Pix.
func (f *Frame) Offset(y, x int) int {
	return (y*f.Width + x) * f.Channels
}

// Valid reports whether the buffer length agrees with the dimensions.
func (f *Frame) Valid() bool {
	if f == nil || f.Width < 0 || f.Height < 0 || f.Channels <= 0 {
		return false
	}
	return len(f.Pix) == f.Width*f.Height*f.Channels
}
