// Package core runs the poll loop: latest frame in, four band masks out.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/sequoia-bands/bands"
	"github.com/e7canasta/sequoia-bands/internal/config"
	"github.com/e7canasta/sequoia-bands/receiver"
)

// errQuit ends the run group when the quit key is pressed.
var errQuit = errors.New("core: quit requested")

// App wires a frame source, the receiver, band extraction and the windows.
type App struct {
	cfg *config.Config

	source    Source
	receiver  receiver.Receiver
	extractor *bands.Extractor
	renderer  Renderer
	keys      QuitWatcher

	started  time.Time
	rendered atomic.Uint64

	// Render times of the current stats window
	rateMu      sync.Mutex
	renderTimes []time.Time
}

// NewApp creates an App. Nothing starts until Run.
func NewApp(cfg *config.Config, source Source, rx receiver.Receiver, renderer Renderer, keys QuitWatcher) *App {
	return &App{
		cfg:       cfg,
		source:    source,
		receiver:  rx,
		extractor: bands.NewExtractor(rx),
		renderer:  renderer,
		keys:      keys,
	}
}

// Run blocks until the quit key, ctx cancellation or the first fatal error.
//
// Quit and cancellation return nil. Windows are closed and the source is
// stopped on every path.
func (a *App) Run(ctx context.Context) error {
	a.started = time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.shutdown()

	slog.Info("core: starting",
		"node", a.cfg.NodeName,
		"source", a.source.Name(),
		"poll_interval", a.cfg.PollInterval,
	)

	if err := a.keys.Start(); err != nil {
		return fmt.Errorf("core: start key watcher: %w", err)
	}

	if err := a.source.Start(ctx, a.receiver); err != nil {
		return fmt.Errorf("core: start %s source: %w", a.source.Name(), err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case err := <-a.source.Err():
			return fmt.Errorf("core: %s source: %w", a.source.Name(), err)
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		return a.poll(gctx)
	})

	g.Go(func() error {
		a.logStats(gctx)
		return nil
	})

	err := g.Wait()
	switch {
	case errors.Is(err, errQuit):
		slog.Info("core: quit key pressed, stopping")
		return nil
	case err != nil:
		slog.Error("core: fatal error", "error", err)
		return err
	default:
		slog.Info("core: context done, stopping")
		return nil
	}
}

// poll renders the latest frame once per tick.
func (a *App) poll(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.keys.Quit():
			return errQuit
		case <-ticker.C:
		}

		if err := a.step(); err != nil {
			if errors.Is(err, receiver.ErrNoFrame) {
				continue
			}
			return err
		}
	}
}

// step extracts and shows the current frame. A frame already shown costs
// one Latest call and nothing else.
func (a *App) step() error {
	masks, frame, err := a.extractor.ExtractNew()
	if err != nil {
		if frame != nil {
			return fmt.Errorf("core: frame seq %d: %w", frame.Seq, err)
		}
		return err
	}
	if frame == nil {
		return nil
	}

	for i, mask := range masks {
		if err := a.renderer.Show(bands.Band(i), mask); err != nil {
			return fmt.Errorf("core: show band %d: %w", i, err)
		}
	}
	n := a.rendered.Add(1)

	a.rateMu.Lock()
	a.renderTimes = append(a.renderTimes, time.Now())
	a.rateMu.Unlock()

	slog.Debug("core: frame rendered",
		"seq", frame.Seq,
		"trace_id", frame.TraceID,
		"width", frame.Width,
		"height", frame.Height,
		"rendered", n,
	)

	return nil
}

func (a *App) logStats(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.StatsInterval)
	defer ticker.Stop()

	windowStart := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.rateMu.Lock()
			times := a.renderTimes
			a.renderTimes = nil
			a.rateMu.Unlock()

			rate := MeasureRate(times, now.Sub(windowStart))
			windowStart = now

			stats := a.receiver.Stats()
			attrs := []any{
				"delivered", stats.Delivered,
				"decode_errors", stats.DecodeErrors,
				"overwritten", stats.Overwritten,
				"last_seq", stats.LastSeq,
				"extracted", a.extractor.Extractions(),
				"rendered", a.rendered.Load(),
				"render_fps", fmt.Sprintf("%.2f", rate.FPSMean),
				"render_fps_min", fmt.Sprintf("%.2f", rate.FPSMin),
				"render_fps_max", fmt.Sprintf("%.2f", rate.FPSMax),
				"jitter_mean", rate.JitterMean,
				"stable", rate.IsStable,
				"uptime", time.Since(a.started).Round(time.Second),
			}
			if ss, ok := a.source.(SourceStats); ok {
				attrs = append(attrs, slog.Attr{Key: a.source.Name(), Value: ss.StatsValue()})
			}
			slog.Info("core: stats", attrs...)
		}
	}
}

// shutdown releases components in dependency order, bounded by
// shutdown_timeout.
func (a *App) shutdown() {
	done := make(chan struct{})

	go func() {
		defer close(done)

		// 1. No more deliveries
		if err := a.source.Stop(); err != nil {
			slog.Error("core: failed to stop source", "source", a.source.Name(), "error", err)
		}
		a.receiver.Close()

		// 2. Windows
		if err := a.renderer.Close(); err != nil {
			slog.Error("core: failed to close windows", "error", err)
		}

		// 3. Terminal
		if err := a.keys.Stop(); err != nil {
			slog.Error("core: failed to restore terminal", "error", err)
		}
	}()

	select {
	case <-done:
		slog.Info("core: shutdown complete",
			"rendered", a.rendered.Load(),
			"uptime", time.Since(a.started).Round(time.Millisecond),
		)
	case <-time.After(a.cfg.ShutdownTimeout):
		slog.Warn("core: shutdown timeout exceeded", "timeout", a.cfg.ShutdownTimeout)
	}
}

// Extractions returns how many times masks were computed.
func (a *App) Extractions() uint64 {
	return a.extractor.Extractions()
}

// Rendered returns how many frames were shown.
func (a *App) Rendered() uint64 {
	return a.rendered.Load()
}
