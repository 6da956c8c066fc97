package backend

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/gift"

	"github.com/MeKo-Tech/noisyblur/internal/composite"
	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/mask"
	"github.com/MeKo-Tech/noisyblur/internal/noise"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

// bufferPool owns the intermediate layers of the layered backend. Buffers are
// only reallocated when the output size or padding changes.
type bufferPool struct {
	// padded holds the sharp layer with a margin so the blur sees real
	// neighbours at the frame edges.
	padded  *image.RGBA
	blurPad *image.RGBA
	sharp   *image.RGBA
	blurred *image.RGBA
	mask    *image.Gray
	out     *image.RGBA
	w, h    int
	pad     int
	allocs  int
}

func (p *bufferPool) ensure(w, h, pad int) bool {
	if p.out != nil && p.w == w && p.h == h && p.pad == pad {
		return false
	}
	p.w, p.h, p.pad = w, h, pad
	p.padded = image.NewRGBA(image.Rect(-pad, -pad, w+pad, h+pad))
	p.blurPad = image.NewRGBA(image.Rect(0, 0, w+2*pad, h+2*pad))
	p.sharp = p.padded.SubImage(image.Rect(0, 0, w, h)).(*image.RGBA)
	p.blurred = image.NewRGBA(image.Rect(0, 0, w, h))
	p.mask = image.NewGray(image.Rect(0, 0, w, h))
	p.out = image.NewRGBA(image.Rect(0, 0, w, h))
	p.allocs++
	return true
}

// LayeredBackend approximates the per-pixel kernel with one uniformly blurred
// copy of the tiled layer. Tiles are static, so the sharp and blurred layers
// are rebuilt only when the configuration or size changes; each frame only
// regenerates the mask and composites.
type LayeredBackend struct {
	cfg         effect.Config
	src         *texture.Source
	field       noise.Field
	size        surface.Size
	pool        bufferPool
	layersDirty bool
	configured  bool
	initialized bool
}

func init() {
	Register(BackendLayered, func() RenderBackend {
		return &LayeredBackend{}
	})
}

// NewLayeredBackend creates the backend.
func NewLayeredBackend() *LayeredBackend {
	return &LayeredBackend{}
}

// Name returns the backend identifier.
func (b *LayeredBackend) Name() string { return BackendLayered }

// Init initializes the backend.
func (b *LayeredBackend) Init() error {
	b.initialized = true
	return nil
}

// Configure installs options and source.
func (b *LayeredBackend) Configure(cfg effect.Config, src *texture.Source) error {
	if !b.initialized {
		return ErrNotInitialized
	}
	cfg = cfg.Normalize()
	field, err := cfg.Field()
	if err != nil {
		return fmt.Errorf("failed to build noise field: %w", err)
	}
	b.cfg = cfg
	b.src = src
	b.field = field
	b.configured = true
	b.layersDirty = true
	return nil
}

// Resize sets the output size.
func (b *LayeredBackend) Resize(size surface.Size) error {
	if !b.initialized {
		return ErrNotInitialized
	}
	if size == b.size && b.pool.out != nil {
		return nil
	}
	if size.DPR != b.size.DPR {
		b.layersDirty = true
	}
	b.size = size
	if b.pool.ensure(size.Width, size.Height, effect.RequiredPaddingPx(b.cfg)) {
		b.layersDirty = true
	}
	return nil
}

// SetShowNoise toggles the noise visualization.
func (b *LayeredBackend) SetShowNoise(show bool) {
	b.cfg.ShowNoise = show
}

// Allocations reports how many times the buffers were allocated.
func (b *LayeredBackend) Allocations() int {
	return b.pool.allocs
}

// RenderFrame renders the frame for time t.
func (b *LayeredBackend) RenderFrame(t float64) (image.Image, error) {
	if !b.initialized || b.pool.out == nil {
		return nil, ErrNotInitialized
	}
	out := b.pool.out
	if !b.configured {
		clear(out.Pix)
		return out, nil
	}

	// the noise view does not depend on the source
	if b.cfg.ShowNoise {
		mask.VisualizeInto(b.pool.mask, b.field, t, b.cfg.NoiseContrast)
		grayToRGBA(out, b.pool.mask)
		return out, nil
	}
	if b.src == nil {
		clear(out.Pix)
		return out, nil
	}

	if b.layersDirty {
		if err := b.rebuildLayers(); err != nil {
			return nil, err
		}
	}

	mask.GenerateInto(b.pool.mask, b.field, t, b.cfg.NoiseContrast, b.cfg.MaskStrength)
	if err := composite.MaskedOver(out, b.pool.sharp, b.pool.blurred, b.pool.mask); err != nil {
		return nil, fmt.Errorf("failed to composite layers: %w", err)
	}
	return out, nil
}

// Dispose releases all buffers.
func (b *LayeredBackend) Dispose() {
	b.pool = bufferPool{allocs: b.pool.allocs}
	b.src = nil
	b.configured = false
	b.initialized = false
}

func (b *LayeredBackend) rebuildLayers() error {
	// padding depends on the blur radius, which may have changed in Configure
	b.pool.ensure(b.size.Width, b.size.Height, effect.RequiredPaddingPx(b.cfg))

	dpr := b.size.DPR
	if dpr <= 0 {
		dpr = 1
	}
	geom := b.cfg.Geometry(b.src, dpr)
	texture.RenderTiled(b.pool.padded, geom, b.src)

	if b.cfg.BlurRadius <= effect.SharpRadius {
		draw.Draw(b.pool.blurred, b.pool.blurred.Bounds(), b.pool.sharp, image.Point{}, draw.Src)
		b.layersDirty = false
		return nil
	}

	g := gift.New(gift.GaussianBlur(float32(effect.Sigma(b.cfg.BlurRadius))))
	if got := g.Bounds(b.pool.padded.Bounds()); got.Dx() != b.pool.blurPad.Bounds().Dx() || got.Dy() != b.pool.blurPad.Bounds().Dy() {
		return fmt.Errorf("unexpected blur bounds %v", got)
	}
	g.Draw(b.pool.blurPad, b.pool.padded)
	pad := b.pool.pad
	draw.Draw(b.pool.blurred, b.pool.blurred.Bounds(), b.pool.blurPad, image.Pt(pad, pad), draw.Src)
	b.layersDirty = false
	return nil
}

func grayToRGBA(dst *image.RGBA, src *image.Gray) {
	b := dst.Bounds()
	for y := 0; y < b.Dy(); y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		for x, v := range s {
			i := x * 4
			d[i], d[i+1], d[i+2], d[i+3] = v, v, v, 255
		}
	}
}
