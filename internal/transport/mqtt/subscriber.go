// Package mqtt delivers image messages from an MQTT topic to a frame sink.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/sequoia-bands/internal/config"
	"github.com/e7canasta/sequoia-bands/receiver"
)

// Sink receives raw message payloads.
type Sink = receiver.Sink

// Subscriber subscribes to the image topic and forwards every payload to a Sink.
type Subscriber struct {
	cfg       config.MQTTConfig
	newClient func(*paho.ClientOptions) paho.Client
	client    paho.Client

	errs     chan error
	errOnce  sync.Once
	received atomic.Uint64

	mu        sync.RWMutex
	connected bool
}

// NewSubscriber creates a new MQTT subscriber
func NewSubscriber(cfg config.MQTTConfig) *Subscriber {
	return &Subscriber{
		cfg:       cfg,
		newClient: paho.NewClient,
		errs:      make(chan error, 1),
	}
}

// Name identifies the source in logs
func (s *Subscriber) Name() string { return "mqtt" }

// Start connects to the broker and subscribes to the image topic.
//
// Messages are handed to sink on paho's router goroutine. The first delivery
// error is reported on Err() and stops nothing by itself: the caller decides.
func (s *Subscriber) Start(ctx context.Context, sink Sink) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", s.cfg.Broker))
	opts.SetClientID(s.cfg.ClientID)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(s.cfg.ConnectTimeout)
	opts.SetOrderMatters(true)

	opts.OnConnect = func(c paho.Client) {
		s.setConnected(true)
		slog.Info("mqtt: connection established",
			"broker", s.cfg.Broker,
			"client_id", s.cfg.ClientID,
		)
	}

	opts.OnConnectionLost = func(c paho.Client, err error) {
		s.setConnected(false)
		slog.Warn("mqtt: connection lost, no more frames will arrive",
			"error", err,
			"broker", s.cfg.Broker,
		)
	}

	s.client = s.newClient(opts)

	slog.Info("mqtt: connecting to broker", "broker", s.cfg.Broker)

	if err := wait(ctx, s.client.Connect(), s.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt: connect: %w", err)
	}
	s.setConnected(true)

	handler := func(_ paho.Client, msg paho.Message) {
		n := s.received.Add(1)
		if err := sink.Deliver(msg.Payload()); err != nil {
			slog.Error("mqtt: message rejected",
				"topic", msg.Topic(),
				"size", len(msg.Payload()),
				"error", err,
			)
			s.report(err)
			return
		}
		slog.Debug("mqtt: message delivered",
			"topic", msg.Topic(),
			"size", len(msg.Payload()),
			"received", n,
		)
	}

	slog.Info("mqtt: subscribing to image topic", "topic", s.cfg.Topic, "qos", s.cfg.QoS)

	if err := wait(ctx, s.client.Subscribe(s.cfg.Topic, s.cfg.QoS, handler), s.cfg.ConnectTimeout); err != nil {
		s.client.Disconnect(250)
		s.setConnected(false)
		return fmt.Errorf("mqtt: subscribe %s: %w", s.cfg.Topic, err)
	}

	return nil
}

// Err reports the first delivery failure.
func (s *Subscriber) Err() <-chan error {
	return s.errs
}

// Stop unsubscribes and disconnects. Safe to call when never started.
func (s *Subscriber) Stop() error {
	if s.client == nil {
		return nil
	}

	if s.client.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.Topic)
		if !token.WaitTimeout(s.cfg.ConnectTimeout) {
			slog.Warn("mqtt: unsubscribe timeout", "topic", s.cfg.Topic)
		}
		s.client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt: disconnected", "received", s.received.Load())
	}

	s.setConnected(false)
	return nil
}

// Stats returns subscriber counters
func (s *Subscriber) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Connected: s.connected,
		Received:  s.received.Load(),
	}
}

// StatsValue reports the counters as a log group for the periodic stats line.
func (s *Subscriber) StatsValue() slog.Value {
	stats := s.Stats()
	return slog.GroupValue(
		slog.Bool("connected", stats.Connected),
		slog.Uint64("received", stats.Received),
	)
}

// Stats contains subscriber statistics
type Stats struct {
	Connected bool
	Received  uint64
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *Subscriber) report(err error) {
	s.errOnce.Do(func() {
		s.errs <- err
	})
}

// wait blocks until token completes, ctx is done, or timeout elapses.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
