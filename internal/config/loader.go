package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Fields absent from the file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.CaptureRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.capture_rate %d must be positive", cfg.Audio.CaptureRate))
	}
	if cfg.Audio.PlaybackRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.playback_rate %d must be positive", cfg.Audio.PlaybackRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}
	if cfg.Audio.SendQueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("audio.send_queue_depth %d must be positive", cfg.Audio.SendQueueDepth))
	}

	if cfg.Video.SampleFPS <= 0 {
		errs = append(errs, fmt.Errorf("video.sample_fps %v must be positive", cfg.Video.SampleFPS))
	}
	if cfg.Video.MaxFrames <= 0 {
		errs = append(errs, fmt.Errorf("video.max_frames %d must be positive", cfg.Video.MaxFrames))
	}

	if cfg.Jobs.PollIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("jobs.poll_interval_seconds %d must be positive", cfg.Jobs.PollIntervalSeconds))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %w", errors.Join(errs...))
	}
	return nil
}
