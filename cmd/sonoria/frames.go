package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pvanloo/sonoria/internal/observe"
	"github.com/pvanloo/sonoria/pkg/video"
)

var framesFlags struct {
	outDir    string
	fps       float64
	maxFrames int
	sourceFPS float64
}

var framesCmd = &cobra.Command{
	Use:   "frames <stream>",
	Short: "Extract still frames from a video stream for analysis",
	Long: `Samples evenly spaced JPEG stills from a motion-JPEG stream and writes
them to a directory. The sampling rate and frame cap default to the video
section of the configuration file. Raw motion-JPEG carries no timing
metadata, so --source-fps declares the rate the stream was recorded at.`,
	Args: cobra.ExactArgs(1),
	RunE: runFrames,
}

func init() {
	framesCmd.Flags().StringVarP(&framesFlags.outDir, "out-dir", "o", "frames", "directory to write extracted frames to")
	framesCmd.Flags().Float64Var(&framesFlags.fps, "fps", 0, "sampling rate in frames per second (default from config)")
	framesCmd.Flags().IntVar(&framesFlags.maxFrames, "max-frames", 0, "maximum frames to extract (default from config)")
	framesCmd.Flags().Float64Var(&framesFlags.sourceFPS, "source-fps", 25, "frame rate the input stream was recorded at")
	rootCmd.AddCommand(framesCmd)
}

func runFrames(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fps := framesFlags.fps
	if fps <= 0 {
		fps = cfg.Video.SampleFPS
	}
	maxFrames := framesFlags.maxFrames
	if maxFrames <= 0 {
		maxFrames = cfg.Video.MaxFrames
	}

	src, err := video.OpenMJPEG(args[0], framesFlags.sourceFPS)
	if err != nil {
		return err
	}
	slog.Info("sampling frames",
		"stream", args[0],
		"duration", src.Duration(),
		"fps", fps,
		"max_frames", maxFrames,
	)

	frames, err := video.ExtractFrames(cmd.Context(), src, fps, maxFrames)
	if err != nil {
		return err
	}
	observe.DefaultMetrics().RecordFramesSampled(cmd.Context(), len(frames), filepath.Base(args[0]))

	if err := os.MkdirAll(framesFlags.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for i, frame := range frames {
		name := filepath.Join(framesFlags.outDir, fmt.Sprintf("frame_%04d.jpg", i))
		if err := os.WriteFile(name, frame.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	slog.Info("frames written", "count", len(frames), "dir", framesFlags.outDir)
	return nil
}
