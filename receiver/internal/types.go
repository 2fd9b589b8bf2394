package internal

import (
	"errors"
	"time"
)

var (
	// ErrNoFrame is returned by Latest before the first successful delivery.
	ErrNoFrame = errors.New("receiver: no frame received yet")

	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("receiver: closed")

	// ErrNilFrame wraps a decoder that returned neither a frame nor an error.
	ErrNilFrame = errors.New("decoder returned no frame")
)

// Decoder turns one encoded message into a Frame.
type Decoder interface {
	Decode(msg []byte) (*Frame, error)
}

// DecoderFunc adapts a plain function to Decoder.
type DecoderFunc func(msg []byte) (*Frame, error)

// Decode calls f(msg).
func (f DecoderFunc) Decode(msg []byte) (*Frame, error) {
	return f(msg)
}

// Stats is a snapshot of receiver operational state.
type Stats struct {
	// Delivered counts frames successfully decoded and stored.
	Delivered uint64

	// DecodeErrors counts messages the decoder rejected (nothing stored).
	DecodeErrors uint64

	// Overwritten counts stored frames replaced before Latest or Next
	// returned them.
	// Expected when the poll loop is slower than the camera.
	Overwritten uint64

	// LastSeq is the sequence number of the currently stored frame (0 = none).
	LastSeq uint64

	// LastDeliveredAt is the wall-clock time of the last successful store.
	LastDeliveredAt time.Time
}
