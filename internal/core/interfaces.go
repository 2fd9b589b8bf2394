package core

import (
	"context"
	"log/slog"

	"github.com/e7canasta/sequoia-bands/bands"
	"github.com/e7canasta/sequoia-bands/receiver"
)

// Source delivers encoded image messages into a sink
type Source interface {
	// Name identifies the source in logs
	Name() string
	// Start begins delivery; it returns once messages are flowing
	Start(ctx context.Context, sink receiver.Sink) error
	// Err reports the first fatal delivery failure
	Err() <-chan error
	// Stop ends delivery
	Stop() error
}

// SourceStats is implemented by sources that report their own counters in
// the periodic stats log.
type SourceStats interface {
	StatsValue() slog.Value
}

// Renderer shows one mask per band
type Renderer interface {
	Show(b bands.Band, mask bands.Mask) error
	Close() error
}

// QuitWatcher signals a user quit request
type QuitWatcher interface {
	Start() error
	Quit() <-chan struct{}
	Stop() error
}
