package backend

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

// rowsPerBand is the number of rows rendered by one goroutine at a time.
const rowsPerBand = 16

// AnalyticBackend evaluates the full per-pixel pipeline on the CPU, including
// the variable-radius kernel. It is exact and slow.
type AnalyticBackend struct {
	cfg         effect.Config
	src         *texture.Source
	pipeline    *effect.Pipeline
	out         *surface.Surface
	size        surface.Size
	workers     int
	initialized bool
}

func init() {
	Register(BackendAnalytic, func() RenderBackend {
		return NewAnalyticBackend(0)
	})
}

// NewAnalyticBackend creates the backend. workers <= 0 uses GOMAXPROCS.
func NewAnalyticBackend(workers int) *AnalyticBackend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &AnalyticBackend{workers: workers}
}

// Name returns the backend identifier.
func (b *AnalyticBackend) Name() string { return BackendAnalytic }

// Init initializes the backend.
func (b *AnalyticBackend) Init() error {
	b.initialized = true
	return nil
}

// Configure installs options and source.
func (b *AnalyticBackend) Configure(cfg effect.Config, src *texture.Source) error {
	if !b.initialized {
		return ErrNotInitialized
	}
	b.cfg = cfg.Normalize()
	b.src = src
	return b.rebuild()
}

// Resize sets the output size.
func (b *AnalyticBackend) Resize(size surface.Size) error {
	if !b.initialized {
		return ErrNotInitialized
	}
	if b.out != nil && size == b.size {
		return nil
	}
	b.size = size
	if b.out == nil {
		b.out = surface.New(size)
	} else {
		b.out.Resize(size)
	}
	if b.pipeline == nil {
		return nil
	}
	return b.rebuild()
}

// SetShowNoise toggles the noise visualization.
func (b *AnalyticBackend) SetShowNoise(show bool) {
	b.cfg.ShowNoise = show
	if b.pipeline != nil {
		b.pipeline.Config.ShowNoise = show
	}
}

// RenderFrame renders the frame for time t.
func (b *AnalyticBackend) RenderFrame(t float64) (image.Image, error) {
	if !b.initialized || b.out == nil {
		return nil, ErrNotInitialized
	}
	dst := b.out.Image()
	if b.pipeline == nil || (b.src == nil && !b.pipeline.Config.ShowNoise) {
		b.out.Clear()
		return dst, nil
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(b.workers)
	height := dst.Bounds().Dy()
	for y0 := 0; y0 < height; y0 += rowsPerBand {
		g.Go(func() error {
			b.pipeline.RenderRows(dst, t, y0, y0+rowsPerBand)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analytic render failed: %w", err)
	}
	return dst, nil
}

// Dispose releases the frame buffer.
func (b *AnalyticBackend) Dispose() {
	b.out = nil
	b.pipeline = nil
	b.src = nil
	b.initialized = false
}

func (b *AnalyticBackend) rebuild() error {
	dpr := b.size.DPR
	if dpr <= 0 {
		dpr = 1
	}
	p, err := effect.NewPipeline(b.cfg, b.src, dpr)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	b.pipeline = p
	return nil
}
