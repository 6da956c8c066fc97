// Package pipeline renders frames of the effect outside the interactive
// driver: single frames for the CLI, whole loops for baking and frames on
// demand for the HTTP server.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/MeKo-Tech/noisyblur/internal/backend"
	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
	"github.com/MeKo-Tech/noisyblur/internal/worker"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("pipeline: baker closed")

// Options configures a Baker.
type Options struct {
	Registry *texture.Registry
	Logger   *slog.Logger
	Sink     Sink
	Backend  string
	Encoder  Encoder
	Config   effect.Config
	Size     surface.Size
	// Instances is the number of backend instances, and therefore the number
	// of frames that can render concurrently. Values <= 0 mean 1.
	Instances int
}

// Baker renders encoded frames of one configuration. Each backend instance
// is used by one goroutine at a time; callers block until an instance is free.
type Baker struct {
	logger    *slog.Logger
	sink      Sink
	instances chan backend.RenderBackend
	all       []backend.RenderBackend
	encoder   Encoder
	cfg       effect.Config
	size      surface.Size
	name      string
	closed    atomic.Bool
}

// NewBaker waits for the source image and prepares opts.Instances backend
// instances. The preferred backend is tried first, then the registry
// priority; a backend that fails Init, Configure or Resize is skipped.
func NewBaker(ctx context.Context, opts Options) (*Baker, error) {
	if opts.Registry == nil {
		opts.Registry = texture.NewRegistry(texture.RegistryOptions{Logger: opts.Logger})
	}
	if opts.Size.Width <= 0 || opts.Size.Height <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %dx%d", opts.Size.Width, opts.Size.Height)
	}
	n := opts.Instances
	if n <= 0 {
		n = 1
	}

	cfg := opts.Config.Normalize()
	b := &Baker{
		logger:    opts.Logger,
		sink:      opts.Sink,
		encoder:   opts.Encoder,
		cfg:       cfg,
		size:      opts.Size,
		instances: make(chan backend.RenderBackend, n),
	}

	b.log().Info("Loading source image", "source", cfg.Source)
	src, err := opts.Registry.Ensure(ctx, cfg.Source).Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source image: %w", err)
	}

	for _, name := range backend.Candidates(opts.Backend) {
		if err := b.prepare(name, n, src); err != nil {
			b.log().Warn("Backend unavailable; trying next", "backend", name, "error", err)
			continue
		}
		b.name = name
		break
	}
	if b.name == "" {
		return nil, backend.ErrBackendNotAvailable
	}

	b.log().Info("Baker ready", "backend", b.name, "instances", n,
		"width", opts.Size.Width, "height", opts.Size.Height, "dpr", opts.Size.DPR)
	return b, nil
}

func (b *Baker) prepare(name string, n int, src *texture.Source) error {
	created := make([]backend.RenderBackend, 0, n)
	for i := 0; i < n; i++ {
		rb := backend.Get(name)
		if rb == nil {
			return backend.ErrBackendNotAvailable
		}
		created = append(created, rb)
		err := rb.Init()
		if err == nil {
			err = rb.Configure(b.cfg, src)
		}
		if err == nil {
			err = rb.Resize(b.size)
		}
		if err != nil {
			for _, c := range created {
				c.Dispose()
			}
			return err
		}
	}
	b.all = created
	for _, rb := range created {
		b.instances <- rb
	}
	return nil
}

// Backend returns the name of the backend in use.
func (b *Baker) Backend() string { return b.name }

// Config returns the normalized configuration.
func (b *Baker) Config() effect.Config { return b.cfg }

// Size returns the frame size.
func (b *Baker) Size() surface.Size { return b.size }

// Encoder returns the frame encoder.
func (b *Baker) Encoder() Encoder { return b.encoder }

// Render renders and encodes the frame at t seconds.
func (b *Baker) Render(ctx context.Context, t float64) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	var rb backend.RenderBackend
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rb = <-b.instances:
	}
	defer func() { b.instances <- rb }()

	frame, err := rb.RenderFrame(t)
	if err != nil {
		return nil, fmt.Errorf("failed to render frame at t=%.3f: %w", t, err)
	}
	return b.encoder.Encode(frame)
}

// Generate renders the task's frame and hands it to the sink. It implements
// worker.Generator.
func (b *Baker) Generate(ctx context.Context, workerID int, task worker.Task) (string, error) {
	if b.sink == nil {
		return "", errors.New("pipeline: no sink configured")
	}
	data, err := b.Render(ctx, task.Time)
	if err != nil {
		return "", err
	}
	path, err := b.sink.WriteFrame(task, data)
	if err != nil {
		return "", fmt.Errorf("failed to store frame %d: %w", task.Index, err)
	}
	b.log().Debug("Frame written", "frame", task.Index, "worker", workerID, "path", path)
	return path, nil
}

// Close disposes all backend instances. It must not race with Render.
func (b *Baker) Close() {
	if b.closed.Swap(true) {
		return
	}
	for _, rb := range b.all {
		rb.Dispose()
	}
}

func (b *Baker) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}
