// Package internal implements the Frame Receiver latest-value mailbox.
//
// This package is INTERNAL - clients MUST use public API in parent package.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// receiver is the concrete implementation of receiver.Receiver.
//
// Goroutine topology:
//   - 1..N external writers: messaging callbacks calling Deliver
//   - 1 external reader: the poll loop calling Latest / Next
//
// Thread-safety: All public methods safe for concurrent use, except Next which
// keeps a single read cursor (one consumer goroutine).
type receiver struct {
	decoder Decoder

	// --- Mailbox ---

	mu      sync.Mutex // Protects all fields below
	cond    *sync.Cond // Signals Next waiters
	frame   *Frame     // Single slot (nil = nothing received yet)
	readSeq uint64     // Highest seq handed out by Latest/Next
	nextSeq uint64     // Highest seq handed out by Next (read cursor)
	closed  bool

	// --- Stats ---

	seq             uint64
	decodeErrors    uint64
	overwritten     uint64
	lastDeliveredAt time.Time
}

// NewReceiver creates a receiver (called by public New() in parent package).
func NewReceiver(decoder Decoder) *receiver {
	r := &receiver{decoder: decoder}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Deliver decodes msg and stores the result, discarding the previous frame.
//
// Semantics:
//   - Never blocks on readers (lock + pointer swap + broadcast)
//   - Overwrite policy: newest frame wins, older unread frame counted in Overwritten
//   - Decode failure: nothing stored, error returned to the caller
func (r *receiver) Deliver(msg []byte) error {
	frame, err := r.decoder.Decode(msg)
	if err == nil && frame == nil {
		err = ErrNilFrame
	}
	if err != nil {
		r.mu.Lock()
		r.decodeErrors++
		r.mu.Unlock()
		return fmt.Errorf("receiver: decode: %w", err)
	}

	now := time.Now()
	if frame.Timestamp.IsZero() {
		frame.Timestamp = now
	}
	frame.TraceID = uuid.New().String()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}

	if r.frame != nil && r.frame.Seq > r.readSeq {
		r.overwritten++
	}

	r.seq++
	frame.Seq = r.seq
	r.frame = frame
	r.lastDeliveredAt = now

	r.cond.Broadcast()
	r.mu.Unlock()

	slog.Debug("receiver: frame stored",
		"seq", frame.Seq,
		"trace_id", frame.TraceID,
		"size", fmt.Sprintf("%dx%dx%d", frame.Width, frame.Height, frame.Channels),
		"encoding", frame.Encoding,
	)

	return nil
}

// Latest returns the stored frame, or ErrNoFrame before the first delivery.
func (r *receiver) Latest() (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frame == nil {
		return nil, ErrNoFrame
	}
	if r.frame.Seq > r.readSeq {
		r.readSeq = r.frame.Seq
	}
	return r.frame, nil
}

// Next blocks until a frame newer than the previous Next result is stored.
//
// Returns ctx.Err() on cancellation and ErrClosed after Close.
func (r *receiver) Next(ctx context.Context) (*Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()

	for !r.closed && (r.frame == nil || r.frame.Seq <= r.nextSeq) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.cond.Wait()
	}

	if r.closed {
		return nil, ErrClosed
	}

	r.nextSeq = r.frame.Seq
	if r.frame.Seq > r.readSeq {
		r.readSeq = r.frame.Seq
	}
	return r.frame, nil
}

// Close marks the receiver closed and wakes Next waiters. Idempotent.
func (r *receiver) Close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (r *receiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastSeq uint64
	if r.frame != nil {
		lastSeq = r.frame.Seq
	}

	return Stats{
		Delivered:       r.seq,
		DecodeErrors:    r.decodeErrors,
		Overwritten:     r.overwritten,
		LastSeq:         lastSeq,
		LastDeliveredAt: r.lastDeliveredAt,
	}
}
