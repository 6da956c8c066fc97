// Package noise provides coherent 2D noise primitives and fractal summation
// used to drive the blur mask.
package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Kind selects the base noise primitive.
type Kind string

const (
	// KindValue is hashed value noise with a cubic smoothstep blend.
	KindValue Kind = "value"
	// KindPerlin is classic gradient noise.
	KindPerlin Kind = "perlin"
	// KindSimplex is OpenSimplex gradient noise.
	KindSimplex Kind = "simplex"
)

// Kinds lists every supported primitive.
var Kinds = []Kind{KindValue, KindPerlin, KindSimplex}

// ParseKind maps a name to a Kind. The empty string selects KindValue.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case "", KindValue:
		return KindValue, nil
	case KindPerlin:
		return KindPerlin, nil
	case KindSimplex:
		return KindSimplex, nil
	default:
		return "", fmt.Errorf("unknown noise kind %q", name)
	}
}

// Source2D is a coherent 2D noise function with output in [0,1].
type Source2D interface {
	Noise2D(x, y float64) float64
}

// New creates the base primitive of the given kind.
func New(kind Kind, seed int64) (Source2D, error) {
	switch kind {
	case "", KindValue:
		return NewValue(seed), nil
	case KindPerlin:
		return newPerlinSource(seed), nil
	case KindSimplex:
		return newSimplexSource(seed), nil
	default:
		return nil, fmt.Errorf("unknown noise kind %q", kind)
	}
}

// Hash is the lattice hash shared with the GPU program:
// fract(sin(dot(p, (127.1, 311.7))) * 43758.5453123).
func Hash(x, y float64) float64 {
	return fract(math.Sin(x*127.1+y*311.7) * 43758.5453123)
}

// SeedOffset maps a seed to a lattice shift. Seed 0 is the identity.
func SeedOffset(seed int64) (float64, float64) {
	if seed == 0 {
		return 0, 0
	}
	if seed < 0 {
		seed = -seed
	}
	return float64(seed%9973) * 1.37, float64(seed%7919) * 2.11
}

// Value is hashed value noise: a random scalar per lattice corner,
// blended with the cubic smoothstep 3t^2-2t^3.
type Value struct {
	ox, oy float64
}

// NewValue creates value noise whose lattice is shifted by the seed.
func NewValue(seed int64) *Value {
	ox, oy := SeedOffset(seed)
	return &Value{ox: ox, oy: oy}
}

// Noise2D returns the value noise at (x, y) in [0,1).
func (v *Value) Noise2D(x, y float64) float64 {
	x += v.ox
	y += v.oy
	ix := math.Floor(x)
	iy := math.Floor(y)
	fx := x - ix
	fy := y - iy

	ux := fx * fx * (3 - 2*fx)
	uy := fy * fy * (3 - 2*fy)

	a := Hash(ix, iy)
	b := Hash(ix+1, iy)
	c := Hash(ix, iy+1)
	d := Hash(ix+1, iy+1)

	return lerp(lerp(a, b, ux), lerp(c, d, ux), uy)
}

type perlinSource struct {
	p *perlin.Perlin
}

func newPerlinSource(seed int64) *perlinSource {
	// One octave: fractal summation is done by FBM so weights stay normalized.
	return &perlinSource{p: perlin.NewPerlin(2.0, 2.0, 1, seed)}
}

// Noise2D remaps raw gradient noise (about ±1/√2 in 2D) to [0,1].
func (s *perlinSource) Noise2D(x, y float64) float64 {
	v := s.p.Noise2D(x, y) * math.Sqrt2
	return clamp01((v + 1) * 0.5)
}

type simplexSource struct {
	n opensimplex.Noise
}

func newSimplexSource(seed int64) *simplexSource {
	return &simplexSource{n: opensimplex.NewNormalized(seed)}
}

func (s *simplexSource) Noise2D(x, y float64) float64 {
	return clamp01(s.n.Eval2(x, y))
}

func fract(x float64) float64 { return x - math.Floor(x) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
