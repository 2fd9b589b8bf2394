// Package receiver holds the most recently received camera frame.
//
// Philosophy: "Latest frame only." A messaging callback delivers encoded
// messages through Deliver; readers see the newest decoded frame and never a
// queue of stale ones.
//
// Design:
//   - Single mutation point (Deliver) driven by an external callback goroutine
//   - Mutex + sync.Cond guarded single slot (explicit handoff, no unguarded sharing)
//   - Decoding injected through Decoder (no ambient subscription state)
package receiver

import (
	"context"

	"github.com/e7canasta/sequoia-bands/receiver/internal"
)

// Frame is re-exported from internal package to avoid import cycles.
// See internal/frame.go for full documentation.
type Frame = internal.Frame

// Decoder is re-exported from internal package.
type Decoder = internal.Decoder

// DecoderFunc is re-exported from internal package.
type DecoderFunc = internal.DecoderFunc

// Stats is re-exported from internal package.
// See internal/types.go for full documentation.
type Stats = internal.Stats

var (
	// ErrNoFrame is returned by Latest before the first successful delivery.
	ErrNoFrame = internal.ErrNoFrame

	// ErrClosed is returned by Next (and Deliver) after Close.
	ErrClosed = internal.ErrClosed

	// ErrNilFrame is returned by Deliver when the decoder reports success
	// without a frame. The message counts as a decode error.
	ErrNilFrame = internal.ErrNilFrame
)

// Sink accepts encoded image messages. Frame sources deliver into it.
type Sink interface {
	// Deliver decodes msg and stores the frame, replacing the previous one.
	//
	// Called from the messaging collaborator's callback context. Never waits
	// for readers. On decode failure nothing is stored and the error is
	// returned (callers treat it as fatal).
	Deliver(msg []byte) error
}

// Receiver is the public interface of the Frame Receiver.
type Receiver interface {
	Sink

	// Latest returns the currently stored frame, or ErrNoFrame.
	//
	// The returned frame is shared: callers MUST NOT modify it.
	Latest() (*Frame, error)

	// Next blocks until a frame newer than the last Next result is stored.
	//
	// Single consumer only. Returns ctx.Err() or ErrClosed on shutdown.
	Next(ctx context.Context) (*Frame, error)

	// Close wakes blocked readers; subsequent Next calls return ErrClosed.
	// Idempotent.
	Close()

	// Stats returns a snapshot of delivery counters.
	Stats() Stats
}

// New creates a Receiver that decodes messages with decoder.
func New(decoder Decoder) Receiver {
	return internal.NewReceiver(decoder)
}
