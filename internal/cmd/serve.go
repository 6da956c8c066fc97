package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/noisyblur/internal/config"
	"github.com/MeKo-Tech/noisyblur/internal/pipeline"
	"github.com/MeKo-Tech/noisyblur/internal/server"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve frames and a live MJPEG stream over HTTP",
	Long: `Serve /frames/{n}.png from a baked archive (--archive) or render them on
demand, /stream as a live multipart JPEG stream, and /healthz and /status.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("archive", "", "Serve frames from this frame archive instead of rendering")
	serveCmd.Flags().String("frames-dir", "", "Cache on-demand frames in this directory")
	serveCmd.Flags().Bool("disable-cache", false, "Always re-render on-demand frames")
	serveCmd.Flags().Float64("fps", 30, "Frame rate mapping frame indices to animation time")
	serveCmd.Flags().Int("frame-count", 0, "Number of valid on-demand frames (0: unbounded)")
	serveCmd.Flags().Int("max-concurrent-generations", runtime.NumCPU(), "Max concurrent on-demand renders")
	serveCmd.Flags().Duration("generation-timeout", time.Minute, "Timeout per on-demand render")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for on-demand frames")
	serveCmd.Flags().Bool("stream", true, "Enable the /stream endpoint")
	serveCmd.Flags().Float64("stream-fps", server.DefaultStreamFPS, "Default stream frame rate")
	serveCmd.Flags().Bool("allow-narrow", false, "Stream surfaces narrower than the desktop minimum instead of blank frames")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Grace period for open connections on shutdown")
	addFrameFlags(serveCmd, "serve")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.archive", "archive")
	mustBind("serve.frames_dir", "frames-dir")
	mustBind("serve.disable_cache", "disable-cache")
	mustBind("serve.fps", "fps")
	mustBind("serve.frame_count", "frame-count")
	mustBind("serve.max_concurrent_generations", "max-concurrent-generations")
	mustBind("serve.generation_timeout", "generation-timeout")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.stream", "stream")
	mustBind("serve.stream_fps", "stream-fps")
	mustBind("serve.allow_narrow", "allow-narrow")
	mustBind("serve.shutdown_timeout", "shutdown-timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	archive := viper.GetString("serve.archive")
	maxConc := viper.GetInt("serve.max_concurrent_generations")
	shutdownTimeout := viper.GetDuration("serve.shutdown_timeout")

	settings, err := loadFrameSettings("serve")
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

	registry := texture.NewRegistry(texture.RegistryOptions{Logger: logger})
	opts := server.Options{
		Logger: logger,
		Info:   server.Info{Version: Version, Source: cfg.Source},
	}

	if archive != "" {
		h, err := server.NewArchiveHandler(server.ArchiveConfig{ArchivePath: archive}, logger)
		if err != nil {
			return err
		}
		defer h.Close() // nolint:errcheck
		opts.Archive = h
	} else {
		baker, err := pipeline.NewBaker(ctx, pipeline.Options{
			Config:    cfg,
			Size:      settings.size,
			Backend:   settings.backend,
			Encoder:   settings.encoder,
			Registry:  registry,
			Instances: maxConc,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("failed to init renderer: %w", err)
		}
		defer baker.Close()
		opts.Info.Backend = baker.Backend()

		od, err := server.NewOnDemandFrames(baker, server.OnDemandFramesConfig{
			FramesDir:         viper.GetString("serve.frames_dir"),
			DisableCache:      viper.GetBool("serve.disable_cache"),
			FPS:               viper.GetFloat64("serve.fps"),
			FrameCount:        viper.GetInt("serve.frame_count"),
			MaxConcurrent:     maxConc,
			GenerationTimeout: viper.GetDuration("serve.generation_timeout"),
			CacheControl:      viper.GetString("serve.cache_control"),
		}, logger)
		if err != nil {
			return err
		}
		opts.OnDemand = od
	}

	if viper.GetBool("serve.stream") {
		opts.Stream = server.NewStreamHandler(server.StreamConfig{
			Config:      cfg,
			Registry:    registry,
			Backend:     settings.backend,
			Width:       settings.size.CSSWidth,
			Height:      settings.size.CSSHeight,
			FPS:         viper.GetFloat64("serve.stream_fps"),
			Quality:     settings.encoder.Quality,
			Background:  settings.encoder.Background,
			AllowNarrow: viper.GetBool("serve.allow_narrow"),
		}, logger)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewMux(opts),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	logger.Info("server listening",
		"addr", addr,
		"archive", archive,
		"stream", opts.Stream != nil,
		"max_concurrent_generations", maxConc,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
