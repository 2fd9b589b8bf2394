package receiver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/sequoia-bands/receiver"
)

// byteDecoder decodes a message into a 1x1, 1-channel frame holding msg[0].
// An empty message is a decode failure.
var byteDecoder = receiver.DecoderFunc(func(msg []byte) (*receiver.Frame, error) {
	if len(msg) == 0 {
		return nil, errors.New("empty message")
	}
	return &receiver.Frame{
		Pix:      []byte{msg[0]},
		Width:    1,
		Height:   1,
		Channels: 1,
		Encoding: "mono8",
	}, nil
})

func TestLatestBeforeDelivery(t *testing.T) {
	r := receiver.New(byteDecoder)

	frame, err := r.Latest()
	if !errors.Is(err, receiver.ErrNoFrame) {
		t.Fatalf("Latest() error = %v, want ErrNoFrame", err)
	}
	if frame != nil {
		t.Errorf("Latest() frame = %v, want nil", frame)
	}
}

// TestDeliverOverwrite validates last-write-wins semantics.
//
// Scenario:
//  1. Deliver A, B, C without reading
//  2. Latest returns C
//  3. Stats: Delivered=3, Overwritten=2 (A and B never read)
func TestDeliverOverwrite(t *testing.T) {
	r := receiver.New(byteDecoder)

	for _, b := range []byte("ABC") {
		if err := r.Deliver([]byte{b}); err != nil {
			t.Fatalf("Deliver(%q) failed: %v", b, err)
		}
	}

	frame, err := r.Latest()
	if err != nil {
		t.Fatalf("Latest() failed: %v", err)
	}
	if frame.Pix[0] != 'C' {
		t.Errorf("Latest() = %q, want 'C'", frame.Pix[0])
	}
	if frame.Seq != 3 {
		t.Errorf("Seq = %d, want 3", frame.Seq)
	}
	if frame.TraceID == "" {
		t.Error("TraceID not assigned")
	}
	if frame.Timestamp.IsZero() {
		t.Error("Timestamp not assigned")
	}

	stats := r.Stats()
	if stats.Delivered != 3 || stats.Overwritten != 2 || stats.LastSeq != 3 {
		t.Errorf("Stats = %+v, want Delivered=3 Overwritten=2 LastSeq=3", stats)
	}

	t.Logf("✅ Overwrite: latest=%q stats=%+v", frame.Pix[0], stats)
}

func TestDeliverDecodeError(t *testing.T) {
	r := receiver.New(byteDecoder)

	if err := r.Deliver([]byte{'A'}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if err := r.Deliver(nil); err == nil {
		t.Fatal("Deliver(nil) succeeded, want decode error")
	}

	// Previous frame stays in place
	frame, err := r.Latest()
	if err != nil {
		t.Fatalf("Latest() failed: %v", err)
	}
	if frame.Pix[0] != 'A' {
		t.Errorf("Latest() = %q, want 'A'", frame.Pix[0])
	}
	if got := r.Stats().DecodeErrors; got != 1 {
		t.Errorf("DecodeErrors = %d, want 1", got)
	}
}

func TestDeliverNilFrame(t *testing.T) {
	r := receiver.New(receiver.DecoderFunc(func([]byte) (*receiver.Frame, error) {
		return nil, nil
	}))

	err := r.Deliver([]byte("payload"))
	if !errors.Is(err, receiver.ErrNilFrame) {
		t.Fatalf("Deliver = %v, want ErrNilFrame", err)
	}
	if _, err := r.Latest(); !errors.Is(err, receiver.ErrNoFrame) {
		t.Errorf("Latest() = %v, want ErrNoFrame", err)
	}
	stats := r.Stats()
	if stats.DecodeErrors != 1 || stats.Delivered != 0 {
		t.Errorf("Stats = %+v, want 1 decode error and nothing delivered", stats)
	}
	t.Logf("✅ nil frame rejected: %v", err)
}

func TestOverwrittenCountsFramesNeverRead(t *testing.T) {
	r := receiver.New(byteDecoder)

	// Read through Latest: the replaced frame was seen
	if err := r.Deliver([]byte{'A'}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if _, err := r.Latest(); err != nil {
		t.Fatalf("Latest() failed: %v", err)
	}
	if err := r.Deliver([]byte{'B'}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if got := r.Stats().Overwritten; got != 0 {
		t.Errorf("Overwritten = %d after Latest read, want 0", got)
	}

	// Nobody read 'B'
	if err := r.Deliver([]byte{'C'}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if got := r.Stats().Overwritten; got != 1 {
		t.Errorf("Overwritten = %d, want 1", got)
	}
}

func TestNextBlocksUntilDelivery(t *testing.T) {
	r := receiver.New(byteDecoder)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan byte, 1)
	go func() {
		frame, err := r.Next(ctx)
		if err != nil {
			t.Errorf("Next() failed: %v", err)
			close(got)
			return
		}
		got <- frame.Pix[0]
	}()

	time.Sleep(10 * time.Millisecond)
	if err := r.Deliver([]byte{'X'}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	select {
	case b := <-got:
		if b != 'X' {
			t.Errorf("Next() = %q, want 'X'", b)
		}
	case <-ctx.Done():
		t.Fatal("Next() did not return after Deliver")
	}
}

func TestNextSkipsAlreadyReturned(t *testing.T) {
	r := receiver.New(byteDecoder)
	ctx := context.Background()

	if err := r.Deliver([]byte{'A'}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if _, err := r.Next(ctx); err != nil {
		t.Fatalf("Next() failed: %v", err)
	}

	// Same frame must not be returned twice: Next waits for a newer one
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := r.Next(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want DeadlineExceeded", err)
	}
}

func TestCloseWakesNext(t *testing.T) {
	r := receiver.New(byteDecoder)

	var wg sync.WaitGroup
	wg.Add(1)
	var nextErr error
	go func() {
		defer wg.Done()
		_, nextErr = r.Next(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	r.Close()
	r.Close() // idempotent
	wg.Wait()

	if !errors.Is(nextErr, receiver.ErrClosed) {
		t.Errorf("Next() error = %v, want ErrClosed", nextErr)
	}
	if err := r.Deliver([]byte{'A'}); !errors.Is(err, receiver.ErrClosed) {
		t.Errorf("Deliver after Close error = %v, want ErrClosed", err)
	}
}

// TestConcurrentDeliverAndRead exercises the handoff under the race detector.
func TestConcurrentDeliverAndRead(t *testing.T) {
	r := receiver.New(byteDecoder)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = r.Deliver([]byte{byte(i)})
		}
	}()

	var lastSeq uint64
	for i := 0; i < 1000; i++ {
		frame, err := r.Latest()
		if errors.Is(err, receiver.ErrNoFrame) {
			continue
		}
		if err != nil {
			t.Fatalf("Latest() failed: %v", err)
		}
		if frame.Seq < lastSeq {
			t.Fatalf("Seq went backwards: %d after %d", frame.Seq, lastSeq)
		}
		lastSeq = frame.Seq
	}
	wg.Wait()

	if got := r.Stats().Delivered; got != 1000 {
		t.Errorf("Delivered = %d, want 1000", got)
	}
}
