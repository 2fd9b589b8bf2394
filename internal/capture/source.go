// Package capture feeds frames from a local GStreamer pipeline into the same
// delivery path as the MQTT image topic.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/sequoia-bands/imagemsg"
	"github.com/e7canasta/sequoia-bands/internal/config"
	"github.com/e7canasta/sequoia-bands/receiver"
)

// Sink receives raw message payloads.
type Sink = receiver.Sink

// Source runs a gst-launch pipeline ending in "appsink name=sink" and turns
// every sample into an image message.
type Source struct {
	description string
	codec       imagemsg.Codec

	pipeline *gst.Pipeline
	appSink  *app.Sink

	errs    chan error
	errOnce sync.Once

	// Lifecycle
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics (atomic for thread-safety)
	frameCount    uint64
	bytesRead     uint64
	framesDropped uint64
}

// NewSource creates a capture source. Messages are packed with codec, which
// must match the decoder the sink uses.
func NewSource(cfg config.GStreamerConfig, codec imagemsg.Codec) *Source {
	return &Source{
		description: cfg.Pipeline,
		codec:       codec,
		errs:        make(chan error, 1),
	}
}

// Name identifies the source in logs
func (s *Source) Name() string { return "gstreamer" }

// Start builds the pipeline, connects the appsink callback and sets PLAYING.
func (s *Source) Start(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("capture: already started")
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipelineFromString(s.description)
	if err != nil {
		return fmt.Errorf("capture: failed to create pipeline: %w", err)
	}

	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return fmt.Errorf("capture: appsink named sink not found: %w", err)
	}
	elem.SetProperty("drop", true)
	elem.SetProperty("max-buffers", uint(1))

	s.pipeline = pipeline
	s.appSink = app.SinkFromElement(elem)

	s.appSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(appSink *app.Sink) gst.FlowReturn {
			return s.onNewSample(appSink, sink)
		},
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("capture: failed to start pipeline: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.monitorBus(runCtx)

	slog.Info("capture: pipeline started", "pipeline", s.description)

	return nil
}

// StatsValue reports the capture counters as a log group.
func (s *Source) StatsValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frames_captured", atomic.LoadUint64(&s.frameCount)),
		slog.Uint64("bytes_read", atomic.LoadUint64(&s.bytesRead)),
		slog.Uint64("frames_dropped", atomic.LoadUint64(&s.framesDropped)),
	)
}

// Err reports the first fatal failure (bad sample, pipeline error, EOS).
func (s *Source) Err() <-chan error {
	return s.errs
}

// Stop cancels bus monitoring and sets the pipeline to NULL. Idempotent.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	s.wg.Wait()

	var err error
	if s.pipeline != nil {
		if serr := s.pipeline.SetState(gst.StateNull); serr != nil {
			err = fmt.Errorf("capture: failed to stop pipeline: %w", serr)
		}
		s.pipeline = nil
	}
	s.cancel = nil

	slog.Info("capture: pipeline stopped",
		"frames_captured", atomic.LoadUint64(&s.frameCount),
		"bytes_read", atomic.LoadUint64(&s.bytesRead),
		"frames_dropped", atomic.LoadUint64(&s.framesDropped),
	)

	return err
}

// onNewSample runs on the GStreamer streaming thread.
func (s *Source) onNewSample(appSink *app.Sink, sink Sink) gst.FlowReturn {
	sample := appSink.PullSample()
	if sample == nil {
		slog.Warn("capture: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("capture: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	format, width, height, err := videoInfo(sample.GetCaps())
	if err != nil {
		s.report(err)
		return gst.FlowError
	}

	// Copy frame data (GStreamer will reuse buffer)
	mapInfo := buffer.Map(gst.MapRead)
	data := append([]byte(nil), mapInfo.Bytes()...)
	buffer.Unmap()

	if len(data) == 0 {
		atomic.AddUint64(&s.framesDropped, 1)
		slog.Warn("capture: empty buffer received")
		return gst.FlowOK
	}

	seq := atomic.AddUint64(&s.frameCount, 1)
	atomic.AddUint64(&s.bytesRead, uint64(len(data)))

	img, err := ImageFromSample(format, width, height, data)
	if err != nil {
		s.report(err)
		return gst.FlowError
	}
	img.Header.Seq = uint32(seq)
	img.Header.FrameID = "gstreamer"
	img.Header.SetStamp(time.Now())

	msg, err := s.codec.Marshal(img)
	if err != nil {
		s.report(err)
		return gst.FlowError
	}

	if err := sink.Deliver(msg); err != nil {
		s.report(err)
		return gst.FlowError
	}

	slog.Debug("capture: frame delivered",
		"seq", seq,
		"size_bytes", len(data),
		"format", format,
	)

	return gst.FlowOK
}

// monitorBus watches the pipeline bus until ctx is done.
func (s *Source) monitorBus(ctx context.Context) {
	defer s.wg.Done()

	bus := s.pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("capture: context cancelled, stopping bus monitor")
			return
		default:
		}

		// Short timeout for responsive shutdown
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("capture: end of stream", "frames_processed", atomic.LoadUint64(&s.frameCount))
			s.report(fmt.Errorf("capture: end of stream"))
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("capture: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
			)
			s.report(fmt.Errorf("capture: pipeline error: %s", gerr.Error()))
			return
		}
	}
}

func (s *Source) report(err error) {
	s.errOnce.Do(func() {
		s.errs <- err
	})
}

// videoInfo reads format, width and height from raw video caps.
func videoInfo(caps *gst.Caps) (string, int, int, error) {
	if caps == nil {
		return "", 0, 0, fmt.Errorf("capture: sample without caps")
	}
	st := caps.GetStructureAt(0)
	if st == nil {
		return "", 0, 0, fmt.Errorf("capture: caps without structure")
	}

	formatVal, err := st.GetValue("format")
	if err != nil {
		return "", 0, 0, fmt.Errorf("capture: caps format: %w", err)
	}
	format, ok := formatVal.(string)
	if !ok {
		return "", 0, 0, fmt.Errorf("capture: caps format is %T", formatVal)
	}

	width, err := intField(st, "width")
	if err != nil {
		return "", 0, 0, err
	}
	height, err := intField(st, "height")
	if err != nil {
		return "", 0, 0, err
	}

	return format, width, height, nil
}

func intField(st *gst.Structure, key string) (int, error) {
	v, err := st.GetValue(key)
	if err != nil {
		return 0, fmt.Errorf("capture: caps %s: %w", key, err)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint32:
		return int(n), nil
	default:
		return 0, fmt.Errorf("capture: caps %s is %T", key, v)
	}
}
