// Package effect holds the blur-mask effect configuration and the shared
// per-pixel pipeline that every render backend reproduces.
package effect

import (
	"math"

	"github.com/MeKo-Tech/noisyblur/internal/noise"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

const (
	// MinTileScale keeps tiles from collapsing to nothing.
	MinTileScale = 1e-3
	// MinNoiseScale floors the pixel-to-noise-space factor.
	MinNoiseScale = 1e-4
)

// Config is the full set of effect options. Spatial values are in CSS pixels.
type Config struct {
	// Source is an http(s) URL, file:// URL or path; empty selects the embedded image.
	Source string

	TileScale float64
	GapX      float64
	GapY      float64
	OffsetX   float64
	OffsetY   float64

	NoiseScale float64
	NoiseSpeed float64

	BlurRadius   float64
	MaskStrength float64

	NoiseContrast   float64
	NoiseFrequency  float64
	NoiseAmplitude  float64
	NoiseOctaves    int
	NoiseLacunarity float64
	NoiseGain       float64
	NoiseKind       noise.Kind
	Seed            int64

	ShowNoise bool
}

// DefaultConfig returns the stock look of the effect.
func DefaultConfig() Config {
	return Config{
		TileScale:       0.9,
		GapX:            160,
		GapY:            150,
		OffsetX:         250,
		OffsetY:         220,
		NoiseScale:      0.003,
		NoiseSpeed:      0.1,
		BlurRadius:      4,
		MaskStrength:    4,
		NoiseContrast:   1,
		NoiseFrequency:  1,
		NoiseAmplitude:  2,
		NoiseOctaves:    1,
		NoiseLacunarity: 1,
		NoiseGain:       5,
		NoiseKind:       noise.KindValue,
	}
}

// Normalize clamps every option into its valid range. It never fails; out of
// range values are pulled to the nearest valid one.
func (c Config) Normalize() Config {
	c.TileScale = clamp(finite(c.TileScale, 1), MinTileScale, 1)
	c.GapX = nonNeg(c.GapX)
	c.GapY = nonNeg(c.GapY)
	c.OffsetX = finite(c.OffsetX, 0)
	c.OffsetY = finite(c.OffsetY, 0)

	c.NoiseScale = math.Max(finite(c.NoiseScale, MinNoiseScale), MinNoiseScale)
	c.NoiseSpeed = nonNeg(c.NoiseSpeed)
	c.BlurRadius = nonNeg(c.BlurRadius)
	c.MaskStrength = nonNeg(c.MaskStrength)

	c.NoiseContrast = nonNeg(c.NoiseContrast)
	c.NoiseFrequency = math.Max(finite(c.NoiseFrequency, noise.MinFrequency), noise.MinFrequency)
	c.NoiseAmplitude = nonNeg(c.NoiseAmplitude)
	c.NoiseOctaves = min(max(c.NoiseOctaves, 0), noise.MaxOctaves)
	c.NoiseLacunarity = nonNeg(c.NoiseLacunarity)
	c.NoiseGain = nonNeg(c.NoiseGain)

	if _, err := noise.ParseKind(string(c.NoiseKind)); err != nil || c.NoiseKind == "" {
		c.NoiseKind = noise.KindValue
	}
	return c
}

// FBM returns the fractal parameters.
func (c Config) FBM() noise.FBM {
	return noise.FBM{
		Frequency:  c.NoiseFrequency,
		Amplitude:  c.NoiseAmplitude,
		Octaves:    c.NoiseOctaves,
		Lacunarity: c.NoiseLacunarity,
		Gain:       c.NoiseGain,
	}
}

// Field builds the animated noise field. The field is defined in device
// pixels, like the rest of the pipeline.
func (c Config) Field() (noise.Field, error) {
	src, err := noise.New(c.NoiseKind, c.Seed)
	if err != nil {
		return noise.Field{}, err
	}
	return noise.Field{
		Source: src,
		FBM:    c.FBM(),
		Scale:  c.NoiseScale,
		Speed:  c.NoiseSpeed,
	}, nil
}

// Geometry derives the tile layout for src at the given device pixel ratio.
// Tiles follow the native image size, so a downscaled source only loses
// texel density.
func (c Config) Geometry(src *texture.Source, dpr float64) texture.Geometry {
	w, h := 1, 1
	if src != nil {
		w, h = src.NativeSize()
	}
	return texture.NewGeometry(w, h, c.TileScale, c.GapX, c.GapY, c.OffsetX, c.OffsetY, dpr)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func nonNeg(v float64) float64 {
	return math.Max(finite(v, 0), 0)
}

// finite replaces NaN and infinities with fallback.
func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
