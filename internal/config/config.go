// Package config provides the configuration schema and YAML loader for the
// sonoria media core.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Realtime RealtimeConfig `yaml:"realtime"`
	GenAI    GenAIConfig    `yaml:"genai"`
	Audio    AudioConfig    `yaml:"audio"`
	Video    VideoConfig    `yaml:"video"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// ServerConfig holds the health/metrics HTTP surface and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the health server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// RealtimeConfig configures the duplex streaming connection used for live
// voice conversation.
type RealtimeConfig struct {
	// BaseURL is the WebSocket endpoint of the realtime service.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates the connection. Usually supplied via the
	// SONORIA_API_KEY environment variable rather than the file.
	APIKey string `yaml:"api_key"`

	// Model selects the conversational model for live sessions.
	Model string `yaml:"model"`

	// Instructions is an optional system prompt applied at session setup.
	Instructions string `yaml:"instructions"`
}

// GenAIConfig configures the unary HTTP endpoints (text-to-speech and
// long-running generation jobs).
type GenAIConfig struct {
	// BaseURL is the HTTP endpoint of the generation service.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests; falls back to realtime.api_key when empty.
	APIKey string `yaml:"api_key"`

	// TTSModel selects the text-to-speech model.
	TTSModel string `yaml:"tts_model"`

	// VideoModel selects the video generation model.
	VideoModel string `yaml:"video_model"`
}

// AudioConfig holds the fixed audio pipeline parameters. The remote service
// dictates the capture and playback rates; they are configurable only so
// tests and future service revisions can vary them.
type AudioConfig struct {
	// CaptureRate is the microphone sample rate in Hz sent upstream.
	CaptureRate int `yaml:"capture_rate"`

	// PlaybackRate is the sample rate in Hz of audio received downstream.
	PlaybackRate int `yaml:"playback_rate"`

	// FrameSize is the number of samples per captured microphone frame.
	FrameSize int `yaml:"frame_size"`

	// SendQueueDepth bounds the outbound audio queue; the oldest chunk is
	// dropped when a new one arrives on a full queue.
	SendQueueDepth int `yaml:"send_queue_depth"`
}

// VideoConfig holds frame sampling defaults for video analysis.
type VideoConfig struct {
	// SampleFPS is the frame sampling rate in frames per second.
	SampleFPS float64 `yaml:"sample_fps"`

	// MaxFrames bounds the number of frames extracted per analysis.
	MaxFrames int `yaml:"max_frames"`
}

// JobsConfig controls polling of long-running generation jobs.
type JobsConfig struct {
	// PollInterval is the status polling cadence in seconds.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// Default returns a Config populated with the pipeline defaults: 16 kHz
// capture, 24 kHz playback, 4096-sample frames, a 32-chunk send queue, 1 fps
// sampling capped at 50 frames, and 5-second job polling.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Audio: AudioConfig{
			CaptureRate:    16000,
			PlaybackRate:   24000,
			FrameSize:      4096,
			SendQueueDepth: 32,
		},
		Video: VideoConfig{
			SampleFPS: 1,
			MaxFrames: 50,
		},
		Jobs: JobsConfig{
			PollIntervalSeconds: 5,
		},
	}
}
