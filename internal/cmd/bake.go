package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisyblur/internal/config"
	"github.com/MeKo-Tech/noisyblur/internal/framestore"
	"github.com/MeKo-Tech/noisyblur/internal/pipeline"
	"github.com/MeKo-Tech/noisyblur/internal/worker"
)

var bakeCmd = &cobra.Command{
	Use:   "bake",
	Short: "Pre-render an animation loop",
	Long: `Render --frames frames at --fps in parallel, either as numbered files in
--output-dir or into a SQLite frame archive (--archive) for "serve --archive".`,
	RunE: runBake,
}

func init() {
	rootCmd.AddCommand(bakeCmd)

	bakeCmd.Flags().Int("frames", 90, "Number of frames in the loop")
	bakeCmd.Flags().Float64("fps", 30, "Frames per second")
	bakeCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	bakeCmd.Flags().Bool("progress", true, "Show progress bar")
	bakeCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some frames fail")
	bakeCmd.Flags().Bool("force", false, "Overwrite frames that already exist in --output-dir")
	bakeCmd.Flags().String("output-dir", "./frames", "Output directory for frame files")
	bakeCmd.Flags().String("archive", "", "Write a frame archive to this path instead of files")
	bakeCmd.Flags().String("name", "noisyblur", "Archive name stored in metadata")
	addFrameFlags(bakeCmd, "bake")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"bake.frames", "frames"},
		{"bake.fps", "fps"},
		{"bake.workers", "workers"},
		{"bake.progress", "progress"},
		{"bake.allow_failures", "allow-failures"},
		{"bake.force", "force"},
		{"bake.output_dir", "output-dir"},
		{"bake.archive", "archive"},
		{"bake.name", "name"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, bakeCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runBake(cmd *cobra.Command, args []string) error {
	frames := viper.GetInt("bake.frames")
	fps := viper.GetFloat64("bake.fps")
	workers := viper.GetInt("bake.workers")
	showProgress := viper.GetBool("bake.progress")
	allowFailures := viper.GetBool("bake.allow_failures")
	force := viper.GetBool("bake.force")
	outputDir := viper.GetString("bake.output_dir")
	archive := viper.GetString("bake.archive")
	name := viper.GetString("bake.name")

	if logger == nil {
		initLogging()
	}

	if frames <= 0 {
		return fmt.Errorf("--frames must be positive")
	}
	if fps <= 0 {
		return fmt.Errorf("--fps must be positive")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, frames)

	settings, err := loadFrameSettings("bake")
	if err != nil {
		return err
	}
	cfg, err := config.LoadEffect(viper.GetViper())
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink pipeline.Sink
	if archive != "" {
		cfgJSON, jerr := json.Marshal(cfg)
		if jerr != nil {
			return fmt.Errorf("failed to encode config: %w", jerr)
		}
		sink, err = pipeline.NewArchiveSink(archive, framestore.Metadata{
			Name:        name,
			Format:      settings.encoder.Format,
			Description: "Noise-masked blur animation loop",
			Config:      string(cfgJSON),
			Width:       settings.size.Width,
			Height:      settings.size.Height,
			DPR:         settings.size.DPR,
			FPS:         fps,
			FrameCount:  frames,
		})
	} else {
		sink, err = pipeline.NewDirSink(outputDir, settings.encoder.Ext(), force)
	}
	if err != nil {
		return err
	}
	closeSink := sync.OnceValue(sink.Close)
	defer closeSink() // nolint:errcheck

	baker, err := pipeline.NewBaker(ctx, pipeline.Options{
		Config:    cfg,
		Size:      settings.size,
		Backend:   settings.backend,
		Encoder:   settings.encoder,
		Sink:      sink,
		Instances: workers,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to init baker: %w", err)
	}
	defer baker.Close()

	logger.Info("Starting bake",
		"frames", frames,
		"fps", fps,
		"workers", workers,
		"backend", baker.Backend(),
		"width", settings.size.Width,
		"height", settings.size.Height,
		"format", settings.encoder.Format,
		"archive", archive,
		"output_dir", outputDir,
	)

	tasks := worker.Tasks(frames, fps)
	progress := worker.NewProgress(len(tasks), baker.Backend(), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  baker,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Frame rendering failed", "frame", r.Task.Index, "error", r.Err)
		}
	}

	logger.Info(progress.Summary())

	if err := closeSink(); err != nil {
		return fmt.Errorf("failed to finalize output: %w", err)
	}

	if failedCount > 0 {
		if !allowFailures {
			return fmt.Errorf("%d frames failed to render", failedCount)
		}
		logger.Warn("Some frames failed to render, but continuing due to --allow-failures flag", "failed_count", failedCount)
	}
	return nil
}
