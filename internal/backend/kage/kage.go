// Package kage runs the effect on the GPU as an Ebitengine Kage program.
//
// Importing the package registers the backend with the highest priority. The
// frames it returns are *ebiten.Image values and can only be read back or drawn
// while the Ebitengine game loop is running.
package kage

import (
	"fmt"
	"image"

	eb "github.com/hajimehoshi/ebiten/v2"

	"github.com/MeKo-Tech/noisyblur/internal/backend"
	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/noise"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

func init() {
	backend.Register(backend.BackendKage, func() backend.RenderBackend {
		return &Backend{}
	})
}

// Backend renders frames with a single full-canvas shader draw.
type Backend struct {
	shader *eb.Shader
	src    *eb.Image
	empty  *eb.Image // 1x1 stand-in bound while no source is loaded
	out    *eb.Image
	cfg    effect.Config
	geom   texture.Geometry
	source *texture.Source
	size   surface.Size
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendKage }

// Init compiles the shader.
func (b *Backend) Init() error {
	if b.shader != nil {
		return nil
	}
	src, err := effect.KageSource()
	if err != nil {
		return fmt.Errorf("%w: failed to render shader source: %v", backend.ErrBackendNotAvailable, err)
	}
	shader, err := eb.NewShader(src)
	if err != nil {
		return fmt.Errorf("%w: failed to compile shader: %v", backend.ErrBackendNotAvailable, err)
	}
	b.shader = shader
	return nil
}

// Configure uploads the source image. Only value noise exists on the GPU.
func (b *Backend) Configure(cfg effect.Config, src *texture.Source) error {
	if b.shader == nil {
		return backend.ErrNotInitialized
	}
	cfg = cfg.Normalize()
	if cfg.NoiseKind != noise.KindValue {
		return fmt.Errorf("%w: noise kind %q", backend.ErrUnsupported, cfg.NoiseKind)
	}

	if b.src != nil && b.source != src {
		b.src.Deallocate()
		b.src = nil
	}
	if src != nil && b.src == nil {
		b.src = eb.NewImageFromImage(src.Image())
	}
	b.cfg = cfg
	b.source = src
	b.updateGeometry()
	return nil
}

// Resize reallocates the output image when the pixel size changes.
func (b *Backend) Resize(size surface.Size) error {
	if b.shader == nil {
		return backend.ErrNotInitialized
	}
	if b.out != nil && size == b.size {
		return nil
	}
	if b.out == nil || b.size.Width != size.Width || b.size.Height != size.Height {
		if b.out != nil {
			b.out.Deallocate()
		}
		b.out = eb.NewImage(size.Width, size.Height)
	}
	b.size = size
	b.updateGeometry()
	return nil
}

// SetShowNoise toggles the noise visualization uniform.
func (b *Backend) SetShowNoise(show bool) {
	b.cfg.ShowNoise = show
}

// RenderFrame draws the frame for time t into the output image.
func (b *Backend) RenderFrame(t float64) (image.Image, error) {
	if b.shader == nil || b.out == nil {
		return nil, backend.ErrNotInitialized
	}
	b.out.Clear()
	b.Draw(b.out, t)
	return b.out, nil
}

// Draw renders the frame for time t directly into dst, which must have the
// configured pixel size. Without a source only the noise view is drawn.
func (b *Backend) Draw(dst *eb.Image, t float64) {
	if b.shader == nil {
		return
	}
	img := b.src
	if img == nil {
		if !b.cfg.ShowNoise {
			return
		}
		if b.empty == nil {
			b.empty = eb.NewImage(1, 1)
		}
		img = b.empty
	}
	w := float32(dst.Bounds().Dx())
	h := float32(dst.Bounds().Dy())
	sw := float32(img.Bounds().Dx())
	sh := float32(img.Bounds().Dy())

	verts := [4]eb.Vertex{
		{DstX: 0, DstY: 0, SrcX: 0, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: w, DstY: 0, SrcX: sw, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: w, DstY: h, SrcX: sw, SrcY: sh, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: 0, DstY: h, SrcX: 0, SrcY: sh, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
	}
	indices := [6]uint16{0, 1, 2, 0, 2, 3}

	op := &eb.DrawTrianglesShaderOptions{}
	op.Blend = eb.BlendCopy
	op.Uniforms = effect.KageUniforms(b.cfg, b.geom, t)
	op.Images[0] = img
	dst.DrawTrianglesShader(verts[:], indices[:], b.shader, op)
}

// Dispose releases GPU resources.
func (b *Backend) Dispose() {
	if b.src != nil {
		b.src.Deallocate()
		b.src = nil
	}
	if b.empty != nil {
		b.empty.Deallocate()
		b.empty = nil
	}
	if b.out != nil {
		b.out.Deallocate()
		b.out = nil
	}
	if b.shader != nil {
		b.shader.Deallocate()
		b.shader = nil
	}
	b.source = nil
}

func (b *Backend) updateGeometry() {
	dpr := b.size.DPR
	if dpr <= 0 {
		dpr = 1
	}
	b.geom = b.cfg.Geometry(b.source, dpr)
}
