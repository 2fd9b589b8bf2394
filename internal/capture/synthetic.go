package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/sequoia-bands/bands"
	"github.com/e7canasta/sequoia-bands/imagemsg"
	"github.com/e7canasta/sequoia-bands/internal/config"
)

// SyntheticEncoding is the encoding of generated frames: four BGR slices.
const SyntheticEncoding = "8UC12"

// checkerCell is the pattern cell size in pixels.
const checkerCell = 8

// offColor never matches any band color.
var offColor = bands.Color{1, 1, 1}

// Synthetic generates four-band frames at a fixed rate. Each band shows a
// checkerboard of its exact table color, shifted one cell per band and per
// frame.
type Synthetic struct {
	width  int
	height int
	fps    int
	codec  imagemsg.Codec

	errs chan error

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	seq       uint64
	startTime time.Time
}

// NewSynthetic creates a synthetic frame source
func NewSynthetic(cfg config.SyntheticConfig, codec imagemsg.Codec) *Synthetic {
	return &Synthetic{
		width:  cfg.Width,
		height: cfg.Height,
		fps:    cfg.FPS,
		codec:  codec,
		errs:   make(chan error, 1),
	}
}

// Name identifies the source in logs
func (s *Synthetic) Name() string { return "synthetic" }

// Start begins generating frames
func (s *Synthetic) Start(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("synthetic: already running")
	}
	if s.fps <= 0 {
		return fmt.Errorf("synthetic: fps must be > 0, got %d", s.fps)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.startTime = time.Now()

	slog.Info("synthetic: stream starting",
		"width", s.width,
		"height", s.height,
		"fps", s.fps,
	)

	s.wg.Add(1)
	go s.generate(runCtx, sink)

	return nil
}

// Err reports the first delivery failure
func (s *Synthetic) Err() <-chan error {
	return s.errs
}

// Stop stops the generator
func (s *Synthetic) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	s.wg.Wait()

	slog.Info("synthetic: stream stopped",
		"frames_emitted", s.seq,
		"duration", time.Since(s.startTime),
	)

	return nil
}

func (s *Synthetic) generate(ctx context.Context, sink Sink) {
	defer s.wg.Done()

	frameDuration := time.Second / time.Duration(s.fps)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	slog.Debug("synthetic: frame generator started", "frame_duration", frameDuration)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.seq++
		msg, err := s.message(s.seq)
		if err == nil {
			err = sink.Deliver(msg)
		}
		if err != nil {
			s.errs <- fmt.Errorf("synthetic: frame %d: %w", s.seq, err)
			return
		}
	}
}

func (s *Synthetic) message(seq uint64) ([]byte, error) {
	img, err := imagemsg.FromPixels(s.width, s.height, SyntheticEncoding, Pattern(s.width, s.height, seq))
	if err != nil {
		return nil, err
	}
	img.Header.Seq = uint32(seq)
	img.Header.FrameID = "synthetic"
	img.Header.SetStamp(time.Now())

	return s.codec.Marshal(img)
}

// Pattern returns the pixels of generated frame seq, 12 channels per pixel.
// Pixel (y, x) of band b carries Table[b] when PatternOn(y, x, b, seq).
func Pattern(width, height int, seq uint64) []byte {
	const channels = bands.Count * 3
	pix := make([]byte, width*height*channels)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (y*width + x) * channels
			for b := 0; b < bands.Count; b++ {
				c := offColor
				if PatternOn(y, x, b, seq) {
					c = bands.Table[b]
				}
				copy(pix[off+b*3:], c[:])
			}
		}
	}
	return pix
}

// PatternOn reports whether band b matches at (y, x) in frame seq.
func PatternOn(y, x, b int, seq uint64) bool {
	return (uint64(x/checkerCell+y/checkerCell+b)+seq)%2 == 0
}
