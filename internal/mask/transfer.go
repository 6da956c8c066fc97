package mask

import "math"

// Steepness is the slope of the logistic shaping curve.
const Steepness = 10.0

// BlurExponent biases blur radius toward the strongly masked regions.
const BlurExponent = 1.5

// Value is the per-pixel result of the transfer chain.
type Value struct {
	// Contrasted is the noise after the contrast stretch, used for debug output.
	Contrasted float64
	// Mask is the blur weight in [0,1].
	Mask float64
}

// Contrast stretches n around 0.5 and clamps the result to [0,1].
func Contrast(n, c float64) float64 {
	return clamp01((n-0.5)*c + 0.5)
}

// Shape applies a logistic S-curve centred at 0.5. Values near the centre are
// pushed toward 0 or 1 which produces crisp blurred islands.
func Shape(v float64) float64 {
	return 1 / (1 + math.Exp(-Steepness*(v-0.5)))
}

// Strength scales the shaped value and clamps it to [0,1].
func Strength(shaped, s float64) float64 {
	return clamp01(shaped * s)
}

// BlurRadius returns the effective blur radius for mask value m.
func BlurRadius(maxRadius, m float64) float64 {
	return maxRadius * math.Pow(m, BlurExponent)
}

// Transfer runs the full chain for a single noise sample.
func Transfer(n, contrast, strength float64) Value {
	c := Contrast(n, contrast)
	return Value{
		Contrasted: c,
		Mask:       Strength(Shape(c), strength),
	}
}

// NoiseView maps a contrasted noise value to the debug brightness. The
// contrast is widened and a small time-driven flicker is added.
func NoiseView(contrasted, phaseTime float64) float64 {
	wide := clamp01((contrasted-0.5)*1.8 + 0.5)
	return clamp01(wide + 0.1*math.Sin(phaseTime*2))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
