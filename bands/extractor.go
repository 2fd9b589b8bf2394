package bands

import (
	"fmt"
	"sync/atomic"

	"github.com/e7canasta/sequoia-bands/receiver"
)

// FrameSource supplies the frame to extract from.
// receiver.Receiver satisfies it.
type FrameSource interface {
	Latest() (*receiver.Frame, error)
}

// Extractor runs Extract against whatever frame its source currently holds.
//
// Extract and ExtractNew are meant for one caller goroutine; Extractions may
// be read from any goroutine.
type Extractor struct {
	source FrameSource

	lastSeq     uint64
	extractions atomic.Uint64
}

// NewExtractor binds an Extractor to source.
func NewExtractor(source FrameSource) *Extractor {
	return &Extractor{source: source}
}

// Extract fetches the current frame and computes its masks.
//
// Before the source holds any frame the source error is returned wrapped
// (receiver.ErrNoFrame for a Receiver), never a default result.
func (e *Extractor) Extract() ([]Mask, *receiver.Frame, error) {
	frame, err := e.source.Latest()
	if err != nil {
		return nil, nil, fmt.Errorf("bands: read frame: %w", err)
	}
	return e.extract(frame)
}

// ExtractNew is Extract for frames not yet seen by ExtractNew. When the
// source still holds the last such frame it returns (nil, nil, nil) without
// computing anything.
func (e *Extractor) ExtractNew() ([]Mask, *receiver.Frame, error) {
	frame, err := e.source.Latest()
	if err != nil {
		return nil, nil, fmt.Errorf("bands: read frame: %w", err)
	}
	if frame.Seq != 0 && frame.Seq == e.lastSeq {
		return nil, nil, nil
	}
	e.lastSeq = frame.Seq
	return e.extract(frame)
}

// Extractions counts mask computations.
func (e *Extractor) Extractions() uint64 {
	return e.extractions.Load()
}

func (e *Extractor) extract(frame *receiver.Frame) ([]Mask, *receiver.Frame, error) {
	e.extractions.Add(1)
	masks, err := Extract(frame)
	if err != nil {
		return nil, frame, err
	}
	return masks, frame, nil
}
