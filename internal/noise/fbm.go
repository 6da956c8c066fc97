package noise

import "math"

const (
	// MaxOctaves bounds the per-pixel cost of fractal summation.
	MaxOctaves = 8
	// MinFrequency keeps the base frequency away from degenerate sampling.
	MinFrequency = 1e-4
	// minNorm is the accumulated weight below which the sum is left unnormalized.
	minNorm = 1e-4
)

// FBM describes fractal Brownian motion over a base primitive.
type FBM struct {
	Frequency  float64
	Amplitude  float64
	Octaves    int
	Lacunarity float64
	Gain       float64
}

// Sample accumulates the octaves at (x, y). The weighted sum is divided by
// the total accumulated weight, so with non-negative amplitude and gain the
// result is a convex combination of base samples and stays in [0,1].
func (f FBM) Sample(src Source2D, x, y float64) float64 {
	freq := math.Max(f.Frequency, MinFrequency)
	amp := f.Amplitude
	octaves := f.Octaves
	if octaves > MaxOctaves {
		octaves = MaxOctaves
	}

	sum := 0.0
	norm := 0.0
	for i := 0; i < octaves; i++ {
		n := src.Noise2D(x*freq, y*freq)
		sum += amp * n
		norm += amp
		freq *= f.Lacunarity
		amp *= f.Gain
	}
	if norm > minNorm {
		sum /= norm
	}
	return clamp01(sum)
}
