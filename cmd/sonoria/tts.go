package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pvanloo/sonoria/internal/genai"
	"github.com/pvanloo/sonoria/pkg/wav"
)

var ttsFlags struct {
	output string
}

var ttsCmd = &cobra.Command{
	Use:   "tts <text>",
	Short: "Synthesise speech and write it as a WAV file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTTS,
}

func init() {
	rootCmd.AddCommand(ttsCmd)
	ttsCmd.Flags().StringVarP(&ttsFlags.output, "output", "o", "speech.wav", "output WAV file path")
}

func runTTS(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.GenAI.BaseURL == "" {
		return errors.New("genai.base_url must be configured")
	}
	if cfg.GenAI.APIKey == "" {
		return errors.New("no API key: set SONORIA_API_KEY or genai.api_key")
	}

	client, err := genai.New(cfg.GenAI.BaseURL, cfg.GenAI.APIKey,
		genai.WithTTSModel(cfg.GenAI.TTSModel),
	)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	slog.Info("synthesising speech", "chars", len(text), "output", ttsFlags.output)

	res, err := client.Synthesize(cmd.Context(), text)
	if err != nil {
		return err
	}

	data, err := wav.Build(res.PCM, res.SampleRate, res.Channels)
	if err != nil {
		return err
	}
	if err := os.WriteFile(ttsFlags.output, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", ttsFlags.output, err)
	}

	slog.Info("speech written", "path", ttsFlags.output, "bytes", len(data))
	return nil
}
