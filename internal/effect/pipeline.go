package effect

import (
	"image"

	"github.com/MeKo-Tech/noisyblur/internal/mask"
	"github.com/MeKo-Tech/noisyblur/internal/noise"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

// Pipeline evaluates the effect for single pixels. It is the reference that
// the GPU program and the layered renderer approximate.
type Pipeline struct {
	Config   Config
	Field    noise.Field
	Geometry texture.Geometry
	Source   *texture.Source
}

// NewPipeline normalizes cfg and prepares the pipeline for src at dpr.
// src may be nil, in which case every pixel is transparent.
func NewPipeline(cfg Config, src *texture.Source, dpr float64) (*Pipeline, error) {
	cfg = cfg.Normalize()
	field, err := cfg.Field()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Config:   cfg,
		Field:    field,
		Geometry: cfg.Geometry(src, dpr),
		Source:   src,
	}, nil
}

// Mask returns the transfer result for pixel centre (x, y) at time t.
func (p *Pipeline) Mask(x, y, t float64) mask.Value {
	n := p.Field.At(x, y, t)
	return mask.Transfer(n, p.Config.NoiseContrast, p.Config.MaskStrength)
}

// Pixel computes the final colour of device pixel (px, py) at time t.
func (p *Pipeline) Pixel(px, py int, t float64) texture.RGBA {
	x := float64(px) + 0.5
	y := float64(py) + 0.5
	v := p.Mask(x, y, t)

	if p.Config.ShowNoise {
		return texture.Gray(mask.NoiseView(v.Contrasted, t*p.Config.NoiseSpeed))
	}

	base := texture.Sample(p.Geometry, p.Source, x, y)
	radius := mask.BlurRadius(p.Config.BlurRadius, v.Mask)
	blurred := Blur(p.Geometry, p.Source, x, y, radius)
	return base.Mix(blurred, v.Mask)
}

// Render fills dst with the frame for time t.
func (p *Pipeline) Render(dst *image.RGBA, t float64) {
	b := dst.Bounds()
	p.RenderRows(dst, t, b.Min.Y, b.Max.Y)
}

// RenderRows fills rows [y0, y1) of dst. Disjoint row ranges may be rendered
// concurrently.
func (p *Pipeline) RenderRows(dst *image.RGBA, t float64, y0, y1 int) {
	b := dst.Bounds()
	y0 = max(y0, b.Min.Y)
	y1 = min(y1, b.Max.Y)
	for y := y0; y < y1; y++ {
		row := dst.Pix[(y-b.Min.Y)*dst.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			c := p.Pixel(x, y, t).Color()
			i := (x - b.Min.X) * 4
			row[i+0] = c.R
			row[i+1] = c.G
			row[i+2] = c.B
			row[i+3] = c.A
		}
	}
}
