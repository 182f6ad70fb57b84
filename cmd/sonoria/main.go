// Command sonoria is the CLI for the sonoria media core: live voice
// conversation against a realtime generative service, one-shot text-to-speech
// rendered to WAV, and long-running video generation jobs.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pvanloo/sonoria/internal/config"
)

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:           "sonoria",
	Short:         "Real-time voice and media pipeline for a generative AI service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "config.yaml", "path to the YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sonoria: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the YAML config, overlays environment variables (a .env
// file is honoured when present), and installs the default logger.
func loadConfig() (*config.Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", rootFlags.configPath)
		}
		return nil, err
	}

	if key := os.Getenv("SONORIA_API_KEY"); key != "" {
		cfg.Realtime.APIKey = key
	}
	if cfg.GenAI.APIKey == "" {
		cfg.GenAI.APIKey = cfg.Realtime.APIKey
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	return cfg, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
