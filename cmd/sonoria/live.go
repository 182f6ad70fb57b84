package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvanloo/sonoria/internal/health"
	"github.com/pvanloo/sonoria/internal/observe"
	"github.com/pvanloo/sonoria/internal/session"
	"github.com/pvanloo/sonoria/pkg/device"
	paudio "github.com/pvanloo/sonoria/pkg/device/portaudio"
	"github.com/pvanloo/sonoria/pkg/playback"
	"github.com/pvanloo/sonoria/pkg/realtime"
)

// shutdownGrace bounds how long teardown may take after an interrupt.
const shutdownGrace = 5 * time.Second

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Start a live voice conversation",
	Long: `Opens the default microphone and speaker, connects to the realtime
service, and streams the conversation until interrupted with Ctrl-C.
The transcript is printed when the session ends.`,
	RunE: runLive,
}

func init() {
	rootCmd.AddCommand(liveCmd)
}

func runLive(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Realtime.BaseURL == "" || cfg.Realtime.Model == "" {
		return errors.New("realtime.base_url and realtime.model must be configured")
	}
	if cfg.Realtime.APIKey == "" {
		return errors.New("no API key: set SONORIA_API_KEY or realtime.api_key")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "sonoria",
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	// ── Engine ────────────────────────────────────────────────────────────────
	engineErrs := make(chan error, 1)
	engine, err := session.New(session.Config{
		Dial: func(ctx context.Context) (realtime.Channel, error) {
			return realtime.Dial(ctx, realtime.Config{
				URL:          cfg.Realtime.BaseURL,
				APIKey:       cfg.Realtime.APIKey,
				Model:        cfg.Realtime.Model,
				Instructions: cfg.Realtime.Instructions,
			})
		},
		OpenMic: func() (device.Microphone, error) {
			return paudio.OpenMicrophone(cfg.Audio.CaptureRate, cfg.Audio.FrameSize)
		},
		OpenSink: func() (playback.Sink, error) {
			return paudio.OpenSpeaker(cfg.Audio.PlaybackRate, cfg.Audio.FrameSize)
		},
		CaptureRate:  cfg.Audio.CaptureRate,
		PlaybackRate: cfg.Audio.PlaybackRate,
		QueueDepth:   cfg.Audio.SendQueueDepth,
		OnError: func(err error) {
			select {
			case engineErrs <- err:
			default:
			}
		},
	})
	if err != nil {
		return err
	}

	// ── Health surface ────────────────────────────────────────────────────────
	healthHandler := health.New(func() health.SessionStatus {
		return health.SessionStatus{
			State:         string(engine.State()),
			Turns:         engine.Log().Len(),
			DroppedChunks: engine.Dropped(),
		}
	}, health.Checker{
		Name: "session",
		Check: func(context.Context) error {
			if engine.State() != session.StateStreaming {
				return errors.New("no active session")
			}
			return nil
		},
	})
	mux := http.NewServeMux()
	healthHandler.Register(mux)

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server failed", "err", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	// ── Run ───────────────────────────────────────────────────────────────────
	slog.Info("starting live session",
		"model", cfg.Realtime.Model,
		"capture_rate", cfg.Audio.CaptureRate,
		"playback_rate", cfg.Audio.PlaybackRate,
	)
	if err := engine.Start(ctx); err != nil {
		return err
	}

	var sessionErr error
	select {
	case <-ctx.Done():
		slog.Info("interrupt received, stopping session")
	case sessionErr = <-engineErrs:
		slog.Error("session failed", "err", sessionErr)
	}
	engine.Stop()

	// ── Transcript ────────────────────────────────────────────────────────────
	turns := engine.Log().Turns()
	if len(turns) > 0 {
		fmt.Println()
		for _, turn := range turns {
			fmt.Printf("[%s] %s\n", turn.Speaker, turn.Text)
		}
	}
	slog.Info("session ended",
		"turns", len(turns),
		"dropped_chunks", engine.Dropped(),
	)
	return sessionErr
}
