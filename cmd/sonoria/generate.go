package main

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvanloo/sonoria/internal/genai"
	"github.com/pvanloo/sonoria/internal/jobs"
	"github.com/pvanloo/sonoria/internal/observe"
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Start a video generation job and wait for completion",
	Long: `Submits a video generation request and polls the job status until it
finishes. Interrupting with Ctrl-C abandons the wait; the remote job keeps
running and can be polled again later.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
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
		genai.WithVideoModel(cfg.GenAI.VideoModel),
	)
	if err != nil {
		return err
	}

	prompt := strings.Join(args, " ")
	name, err := client.StartVideoJob(cmd.Context(), prompt)
	if err != nil {
		return err
	}

	interval := time.Duration(cfg.Jobs.PollIntervalSeconds) * time.Second
	slog.Info("video job started", "job", name, "poll_interval", interval)

	metrics := observe.DefaultMetrics()
	err = jobs.Wait(cmd.Context(), interval, client.VideoJobChecker(name),
		jobs.WithPollObserver(func(st jobs.Status) {
			metrics.RecordJobPoll(cmd.Context(), pollStatus(st))
		}),
	)
	if err != nil {
		return err
	}

	slog.Info("video job finished", "job", name)
	return nil
}

func pollStatus(st jobs.Status) string {
	switch {
	case !st.Done:
		return "running"
	case st.Err != nil:
		return "failed"
	default:
		return "done"
	}
}
