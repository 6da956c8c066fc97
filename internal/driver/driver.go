// Package driver runs the effect: it owns the surface size, the asynchronous
// image load and the selected render backend, and produces one frame per tick.
package driver

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/noisyblur/internal/backend"
	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

// Options configures a Driver.
type Options struct {
	Config effect.Config
	// CSSWidth, CSSHeight and DPR describe the initial surface.
	CSSWidth  float64
	CSSHeight float64
	DPR       float64
	// Backend names the preferred backend; empty selects by priority.
	Backend string
	// Registry shares loaded images between drivers; nil creates a private one.
	Registry *texture.Registry
	// AllowNarrow renders on surfaces narrower than surface.MinWidth instead
	// of leaving them blank.
	AllowNarrow bool
	Logger      *slog.Logger
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Presenter receives rendered frames from Run.
type Presenter interface {
	Present(frame image.Image, t float64) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(frame image.Image, t float64) error

// Present calls f.
func (f PresenterFunc) Present(frame image.Image, t float64) error { return f(frame, t) }

// Driver is one running instance of the effect. All methods are safe for
// concurrent use.
type Driver struct {
	cfg         effect.Config
	logger      *slog.Logger
	registry    *texture.Registry
	handle      *texture.Handle
	backend     backend.RenderBackend
	configured  *texture.Source
	blank       *surface.Surface
	pending     *surface.Size
	now         func() time.Time
	start       time.Time
	preferred   string
	candidates  []string
	size        surface.Size
	mu          sync.Mutex
	closed      atomic.Bool
	configDirty bool
	allowNarrow bool
}

// New measures the surface, starts loading the image and selects a backend.
// It never fails: when no backend can be initialized the driver renders
// blank frames.
func New(ctx context.Context, opts Options) *Driver {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	registry := opts.Registry
	if registry == nil {
		registry = texture.NewRegistry(texture.RegistryOptions{Logger: opts.Logger})
	}

	d := &Driver{
		cfg:         opts.Config.Normalize(),
		logger:      opts.Logger,
		registry:    registry,
		now:         now,
		start:       now(),
		preferred:   opts.Backend,
		size:        surface.Measure(opts.CSSWidth, opts.CSSHeight, opts.DPR),
		allowNarrow: opts.AllowNarrow,
		configDirty: true,
	}
	d.blank = surface.New(d.size)
	d.handle = registry.Ensure(ctx, d.cfg.Source)
	d.candidates = backend.Candidates(d.preferred)
	d.nextBackend()
	return d
}

// Ready reports whether the source image has loaded.
func (d *Driver) Ready() bool {
	d.mu.Lock()
	h := d.handle
	d.mu.Unlock()
	return h.Ready()
}

// Backend returns the name of the active backend, or "" when none is usable.
func (d *Driver) Backend() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend == nil {
		return ""
	}
	return d.backend.Name()
}

// Size returns the current surface size, including a pending resize.
func (d *Driver) Size() surface.Size {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return *d.pending
	}
	return d.size
}

// Config returns the normalized configuration.
func (d *Driver) Config() effect.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Resize records a new surface size that is applied before the next frame.
// Repeating the current size has no effect.
func (d *Driver) Resize(cssW, cssH, dpr float64) {
	s := surface.Measure(cssW, cssH, dpr)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil && s == d.size {
		return
	}
	d.pending = &s
}

// SetShowNoise toggles the noise visualization without rebuilding the backend.
func (d *Driver) SetShowNoise(show bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.ShowNoise = show
	if d.backend != nil {
		d.backend.SetShowNoise(show)
	}
}

// SetConfig replaces the effect options. A new source starts a new load.
func (d *Driver) SetConfig(ctx context.Context, cfg effect.Config) {
	cfg = cfg.Normalize()
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.Source != d.cfg.Source {
		d.handle = d.registry.Ensure(ctx, cfg.Source)
		d.configured = nil
	}
	d.cfg = cfg
	d.configDirty = true
}

// Elapsed returns the animation time at now.
func (d *Driver) Elapsed(now time.Time) float64 {
	return now.Sub(d.start).Seconds()
}

// Frame renders the frame for wall-clock time now.
func (d *Driver) Frame(now time.Time) image.Image {
	return d.FrameAt(d.Elapsed(now))
}

// FrameAt renders the frame for t seconds of animation time. It returns nil
// after Close. Failures are logged and yield a blank frame.
func (d *Driver) FrameAt(t float64) image.Image {
	if d.closed.Load() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return nil
	}

	if d.pending != nil {
		d.size = *d.pending
		d.pending = nil
		d.blank.Resize(d.size)
		if d.backend != nil {
			if err := d.backend.Resize(d.size); err != nil {
				d.fail("resize", err)
			}
		}
	}

	if !d.allowNarrow && !d.size.Desktop() {
		return d.blankFrame()
	}

	// src stays nil while loading or after a failed load; the load already
	// logged its error. Only the noise view renders without an image.
	src, err := d.handle.Source()
	if err != nil && !d.cfg.ShowNoise {
		return d.blankFrame()
	}

	for d.backend != nil {
		if d.configDirty || d.configured != src {
			if err := d.backend.Configure(d.cfg, src); err != nil {
				d.fail("configure", err)
				continue
			}
			d.configured = src
			d.configDirty = false
		}

		frame, err := d.backend.RenderFrame(t)
		if err != nil {
			d.fail("render", err)
			continue
		}
		return frame
	}
	return d.blankFrame()
}

// Run renders frames at fps until ctx is done or the driver is closed.
func (d *Driver) Run(ctx context.Context, fps float64, p Presenter) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if d.closed.Load() {
			return nil
		}
		now := d.now()
		frame := d.Frame(now)
		if frame == nil {
			return nil
		}
		if err := p.Present(frame, d.Elapsed(now)); err != nil {
			return fmt.Errorf("failed to present frame: %w", err)
		}
	}
}

// Close stops rendering and releases the backend. It is safe to call at any
// time and more than once.
func (d *Driver) Close() {
	if d.closed.Swap(true) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend != nil {
		d.backend.Dispose()
		d.backend = nil
	}
	d.configured = nil
}

// fail disposes the active backend and moves on to the next candidate.
func (d *Driver) fail(stage string, err error) {
	name := d.backend.Name()
	d.log().Warn("Backend failed; falling back", "backend", name, "stage", stage, "error", err)
	d.backend.Dispose()
	d.backend = nil
	d.configured = nil
	d.configDirty = true
	d.nextBackend()
}

// nextBackend initializes the next usable candidate, leaving d.backend nil
// when none is left.
func (d *Driver) nextBackend() {
	for len(d.candidates) > 0 {
		name := d.candidates[0]
		d.candidates = d.candidates[1:]

		b := backend.Get(name)
		if b == nil {
			continue
		}
		if err := d.initBackend(b); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, backend.ErrBackendNotAvailable) {
				level = slog.LevelDebug
			}
			d.log().Log(context.Background(), level, "Backend unavailable", "backend", name, "error", err)
			b.Dispose()
			continue
		}
		d.backend = b
		d.backend.SetShowNoise(d.cfg.ShowNoise)
		d.log().Debug("Backend selected", "backend", name)
		return
	}
	d.log().Debug("No render backend available; rendering blank frames")
}

func (d *Driver) initBackend(b backend.RenderBackend) error {
	if err := b.Init(); err != nil {
		return err
	}
	return b.Resize(d.size)
}

func (d *Driver) blankFrame() image.Image {
	d.blank.Clear()
	return d.blank.Image()
}

func (d *Driver) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}
