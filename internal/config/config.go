package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Frame sources
const (
	SourceMQTT      = "mqtt"
	SourceGStreamer = "gstreamer"
	SourceSynthetic = "synthetic"
)

// Config represents the complete sequoia-bands configuration
type Config struct {
	NodeName        string          `yaml:"node_name"`
	Source          string          `yaml:"source"` // mqtt, gstreamer, synthetic
	MQTT            MQTTConfig      `yaml:"mqtt"`
	Decode          DecodeConfig    `yaml:"decode"`
	GStreamer       GStreamerConfig `yaml:"gstreamer"`
	Synthetic       SyntheticConfig `yaml:"synthetic"`
	Display         DisplayConfig   `yaml:"display"`
	PollInterval    time.Duration   `yaml:"poll_interval"`    // main loop tick (default: 1ms)
	StatsInterval   time.Duration   `yaml:"stats_interval"`   // periodic stats log, always on (default and 0: 5s)
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"` // graceful shutdown timeout (default: 3s)
	LogFormat       string          `yaml:"log_format"`       // json, text
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`    // host:port
	ClientID       string        `yaml:"client_id"` // defaults to node_name
	Topic          string        `yaml:"topic"`     // image topic
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DecodeConfig selects the wire codec and the desired frame encoding
type DecodeConfig struct {
	Codec    string `yaml:"codec"`    // ros1, msgpack
	Encoding string `yaml:"encoding"` // bgr8, bgra8, passthrough, 8UC12, ...
}

// GStreamerConfig contains the capture pipeline description
type GStreamerConfig struct {
	// Pipeline is a gst-launch description that must end in "appsink name=sink"
	Pipeline string `yaml:"pipeline"`
}

// SyntheticConfig sizes the generated test pattern
type SyntheticConfig struct {
	Width  int `yaml:"width"`  // default: 64
	Height int `yaml:"height"` // default: 48
	FPS    int `yaml:"fps"`    // default: 10
}

// DisplayConfig contains window settings
type DisplayConfig struct {
	Sink string `yaml:"sink"` // video sink element (default: autovideosink)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration bytes and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
