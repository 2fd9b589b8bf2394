package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/e7canasta/sequoia-bands/imagemsg"
	"github.com/e7canasta/sequoia-bands/internal/capture"
	"github.com/e7canasta/sequoia-bands/internal/config"
	"github.com/e7canasta/sequoia-bands/internal/core"
	"github.com/e7canasta/sequoia-bands/internal/display"
	"github.com/e7canasta/sequoia-bands/internal/keys"
	"github.com/e7canasta/sequoia-bands/internal/transport/mqtt"
	"github.com/e7canasta/sequoia-bands/receiver"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Receive frames and show the four band mask windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		// Logs share the terminal that the key watcher puts in raw mode
		quit := keys.New(os.Stdin)
		setLogger(cfg.LogFormat, quit.Output(os.Stdout))

		slog.Info("starting sequoia-bands",
			"version", Version,
			"config", configPath,
			"node", cfg.NodeName,
			"source", cfg.Source,
			"debug", debug,
		)

		app, err := buildApp(cfg, quit)
		if err != nil {
			return err
		}

		if err := app.Run(cmd.Context()); err != nil {
			return err
		}

		slog.Info("sequoia-bands stopped")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration file (default: built-in defaults)")
	rootCmd.AddCommand(runCmd)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setLogger points the default logger at out in the configured format.
func setLogger(format string, out io.Writer) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if format == "text" {
		slog.SetDefault(slog.New(slog.NewTextHandler(out, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, opts)))
}

func buildApp(cfg *config.Config, quit core.QuitWatcher) (*core.App, error) {
	codec, err := imagemsg.CodecByName(cfg.Decode.Codec)
	if err != nil {
		return nil, err
	}

	rx := receiver.New(imagemsg.Decoder{Codec: codec, Encoding: cfg.Decode.Encoding})

	var source core.Source
	switch cfg.Source {
	case config.SourceMQTT:
		source = mqtt.NewSubscriber(cfg.MQTT)
	case config.SourceGStreamer:
		// Same codec both ways: capture packs what the decoder unpacks
		source = capture.NewSource(cfg.GStreamer, codec)
	case config.SourceSynthetic:
		source = capture.NewSynthetic(cfg.Synthetic, codec)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}

	return core.NewApp(cfg, source, rx, display.New(cfg.Display), quit), nil
}
