// Package display shows band masks in one on-screen window per band.
//
// Each window is its own GStreamer pipeline:
//
//	appsrc ! videoconvert ! <sink>
//
// fed with GRAY8 buffers. Windows open lazily on the first mask for that band.
package display

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/sequoia-bands/bands"
	"github.com/e7canasta/sequoia-bands/internal/config"
)

// ErrClosed is returned by Show after Close.
var ErrClosed = errors.New("display: closed")

// Title returns the window name of band b.
func Title(b bands.Band) string {
	return fmt.Sprintf("Band %d", int(b))
}

// Display owns the band windows.
type Display struct {
	sink string

	mu      sync.Mutex
	windows [bands.Count]*window
	closed  bool
	shown   uint64
}

type window struct {
	title    string
	pipeline *gst.Pipeline
	src      *app.Source
	width    int
	height   int
}

// New creates a display. No window is opened until Show.
func New(cfg config.DisplayConfig) *Display {
	return &Display{sink: cfg.Sink}
}

// Show renders mask in the window of band b.
func (d *Display) Show(b bands.Band, mask bands.Mask) error {
	if b < 0 || int(b) >= bands.Count {
		return fmt.Errorf("display: band %d out of range", int(b))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	// Empty frames have no valid caps, nothing to draw
	if mask.Width == 0 || mask.Height == 0 {
		return nil
	}

	w := d.windows[b]
	if w == nil {
		var err error
		w, err = d.open(Title(b))
		if err != nil {
			return err
		}
		d.windows[b] = w
	}

	if w.width != mask.Width || w.height != mask.Height {
		w.src.SetCaps(gst.NewCapsFromString(gray8Caps(mask.Width, mask.Height)))
		w.width, w.height = mask.Width, mask.Height
		slog.Debug("display: caps set",
			"window", w.title,
			"width", mask.Width,
			"height", mask.Height,
		)
	}

	if ret := w.src.PushBuffer(gst.NewBufferFromBytes(packGray8(mask))); ret != gst.FlowOK {
		return fmt.Errorf("display: push to %s: flow %v", w.title, ret)
	}
	d.shown++

	return nil
}

// Close tears down every open window. Safe to call more than once.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	for i, w := range d.windows {
		if w == nil {
			continue
		}
		w.src.EndStream()
		if err := w.pipeline.SetState(gst.StateNull); err != nil {
			errs = append(errs, fmt.Errorf("display: stop %s: %w", w.title, err))
		}
		d.windows[i] = nil
	}

	slog.Info("display: windows closed", "masks_shown", d.shown)

	return errors.Join(errs...)
}

func (d *Display) open(title string) (*window, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline(title)
	if err != nil {
		return nil, fmt.Errorf("display: pipeline %s: %w", title, err)
	}

	src, err := app.NewAppSrc()
	if err != nil {
		return nil, fmt.Errorf("display: appsrc: %w", err)
	}
	src.SetProperty("is-live", true)
	src.SetProperty("do-timestamp", true)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("display: videoconvert: %w", err)
	}

	sink, err := gst.NewElement(d.sink)
	if err != nil {
		return nil, fmt.Errorf("display: sink %s: %w", d.sink, err)
	}

	if err := pipeline.AddMany(src.Element, convert, sink); err != nil {
		return nil, fmt.Errorf("display: add elements: %w", err)
	}
	if err := gst.ElementLinkMany(src.Element, convert, sink); err != nil {
		return nil, fmt.Errorf("display: link elements: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("display: start %s: %w", title, err)
	}

	slog.Info("display: window opened", "window", title, "sink", d.sink)

	return &window{title: title, pipeline: pipeline, src: src}, nil
}

func gray8Caps(width, height int) string {
	return fmt.Sprintf("video/x-raw,format=GRAY8,width=%d,height=%d,framerate=0/1", width, height)
}

// packGray8 lays mask rows out with the 4-byte row stride GRAY8 buffers use.
func packGray8(m bands.Mask) []byte {
	stride := (m.Width + 3) &^ 3
	if stride == m.Width {
		return append([]byte(nil), m.Pix...)
	}

	out := make([]byte, stride*m.Height)
	for y := 0; y < m.Height; y++ {
		copy(out[y*stride:], m.Pix[y*m.Width:(y+1)*m.Width])
	}
	return out
}
