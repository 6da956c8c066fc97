package effect

import (
	"math"

	"github.com/MeKo-Tech/noisyblur/internal/noise"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

const (
	// SharpRadius is the radius at or below which no blur is applied.
	SharpRadius = 0.001
	// SigmaFactor converts a blur radius into the Gaussian sigma.
	SigmaFactor = 0.55
	// MinSigma floors the Gaussian sigma.
	MinSigma = 1.0
	// RotationScale scales pixel coordinates before hashing the kernel angle.
	RotationScale = 0.01
	// minGaussianSigma guards the Gaussian against division by zero.
	minGaussianSigma = 1e-3
	// minWeight guards the final normalization.
	minWeight = 1e-5
)

// Tap is a unit-disk kernel offset.
type Tap struct{ X, Y float64 }

// PoissonTaps is the fixed Poisson-disk kernel. A centre tap is always added.
var PoissonTaps = [16]Tap{
	{-0.326, -0.406},
	{-0.840, -0.074},
	{-0.696, 0.457},
	{-0.203, 0.621},
	{0.962, -0.195},
	{0.473, -0.480},
	{0.519, 0.767},
	{0.185, -0.893},
	{0.507, 0.064},
	{0.896, 0.412},
	{-0.322, -0.932},
	{-0.792, -0.598},
	{-0.198, -0.218},
	{-0.054, -0.040},
	{0.421, -0.193},
	{-0.459, 0.436},
}

// Gaussian is the unnormalized kernel weight exp(-0.5*(d/sigma)^2).
func Gaussian(d, sigma float64) float64 {
	r := d / math.Max(sigma, minGaussianSigma)
	return math.Exp(-0.5 * r * r)
}

// Sigma returns the Gaussian sigma for a blur radius.
func Sigma(radius float64) float64 {
	return math.Max(radius*SigmaFactor, MinSigma)
}

// KernelAngle returns the per-pixel kernel rotation, which breaks up the
// banding a fixed tap pattern would leave.
func KernelAngle(x, y float64) float64 {
	return noise.Hash(x*RotationScale, y*RotationScale) * 2 * math.Pi
}

// Blur returns the Gaussian-weighted average of the tiled pattern around
// (x, y). A radius of at most SharpRadius returns the sharp sample.
func Blur(g texture.Geometry, src *texture.Source, x, y, radius float64) texture.RGBA {
	if radius <= SharpRadius {
		return texture.Sample(g, src, x, y)
	}
	sigma := Sigma(radius)

	acc := texture.Sample(g, src, x, y)
	total := Gaussian(0, sigma)
	acc = acc.Scale(total)

	angle := KernelAngle(x, y)
	cs, sn := math.Cos(angle), math.Sin(angle)
	for _, tap := range PoissonTaps {
		ox := (cs*tap.X + sn*tap.Y) * radius
		oy := (-sn*tap.X + cs*tap.Y) * radius
		w := Gaussian(math.Hypot(ox, oy), sigma)
		acc = acc.Add(texture.Sample(g, src, x+ox, y+oy).Scale(w))
		total += w
	}
	return acc.Scale(1 / math.Max(total, minWeight))
}
