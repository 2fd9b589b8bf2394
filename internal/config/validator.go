package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/e7canasta/sequoia-bands/imagemsg"
)

var nodeNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	applyDefaults(cfg)

	// Validate node_name
	if !nodeNamePattern.MatchString(cfg.NodeName) {
		return fmt.Errorf("node_name must match pattern [A-Za-z][A-Za-z0-9_]*")
	}

	// Validate source
	switch cfg.Source {
	case SourceMQTT:
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
		}
		if strings.ContainsAny(cfg.MQTT.Topic, "+#") {
			return fmt.Errorf("mqtt.topic must not contain wildcards, got %q", cfg.MQTT.Topic)
		}
	case SourceGStreamer:
		if !strings.Contains(cfg.GStreamer.Pipeline, "name=sink") {
			return fmt.Errorf("gstreamer.pipeline must contain an appsink named sink")
		}
	case SourceSynthetic:
		if cfg.Synthetic.Width <= 0 || cfg.Synthetic.Height <= 0 {
			return fmt.Errorf("synthetic.width and synthetic.height must be > 0")
		}
		if cfg.Synthetic.FPS <= 0 || cfg.Synthetic.FPS > 1000 {
			return fmt.Errorf("synthetic.fps must be between 1 and 1000, got %d", cfg.Synthetic.FPS)
		}
		// Generated frames are 8UC12 and only survive an equal-width decode
		if cfg.Decode.Encoding != imagemsg.Passthrough && !strings.EqualFold(cfg.Decode.Encoding, "8UC12") {
			return fmt.Errorf("synthetic source needs decode.encoding passthrough or 8UC12, got '%s'", cfg.Decode.Encoding)
		}
	default:
		return fmt.Errorf("unknown source '%s' (must be 'mqtt', 'gstreamer' or 'synthetic')", cfg.Source)
	}

	// Validate decode
	if _, err := imagemsg.CodecByName(cfg.Decode.Codec); err != nil {
		return fmt.Errorf("decode.codec: %w", err)
	}
	if cfg.Decode.Encoding != imagemsg.Passthrough {
		if _, err := imagemsg.Channels(cfg.Decode.Encoding); err != nil {
			return fmt.Errorf("decode.encoding: %w", err)
		}
	}

	// Validate intervals
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0")
	}
	if cfg.StatsInterval < 0 {
		return fmt.Errorf("stats_interval must be > 0")
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be 'json' or 'text', got '%s'", cfg.LogFormat)
	}

	return nil
}

// applyDefaults fills every unset field
func applyDefaults(cfg *Config) {
	if cfg.NodeName == "" {
		cfg.NodeName = "sequoia_multispectral_camera_node"
	}
	if cfg.Source == "" {
		cfg.Source = SourceMQTT
	}

	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.NodeName
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "sequoia/image_raw"
	}
	if cfg.MQTT.ConnectTimeout <= 0 {
		cfg.MQTT.ConnectTimeout = 5 * time.Second
	}

	if cfg.Decode.Codec == "" {
		cfg.Decode.Codec = "ros1"
	}
	if cfg.Decode.Encoding == "" {
		cfg.Decode.Encoding = imagemsg.BGR8
	}

	if cfg.GStreamer.Pipeline == "" {
		cfg.GStreamer.Pipeline = "videotestsrc ! videoconvert ! video/x-raw,format=BGRx ! appsink name=sink"
	}
	if cfg.Synthetic.Width == 0 {
		cfg.Synthetic.Width = 64
	}
	if cfg.Synthetic.Height == 0 {
		cfg.Synthetic.Height = 48
	}
	if cfg.Synthetic.FPS == 0 {
		cfg.Synthetic.FPS = 10
	}
	if cfg.Display.Sink == "" {
		cfg.Display.Sink = "autovideosink"
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 3 * time.Second
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
}
