package noise

import "math"

// Phase animation constants shared with the GPU program.
const (
	PhaseRateX  = 0.7
	PhaseRateY  = 0.43
	PhaseSpread = 20.0
)

// Field is the animated scalar noise field evaluated over the canvas.
type Field struct {
	Source Source2D
	FBM    FBM
	// Scale converts pixel coordinates into noise space.
	Scale float64
	// Speed multiplies elapsed seconds before the phase offset is derived.
	Speed float64
}

// Phase returns the slowly drifting sampling offset for elapsed time t.
// Independent sine and cosine rates give an organic, non-linear drift.
func Phase(t, speed float64) (float64, float64) {
	tt := t * speed
	ox := math.Sin(tt*PhaseRateX)*0.5 + 0.5
	oy := math.Cos(tt*PhaseRateY)*0.5 + 0.5
	return ox * PhaseSpread, oy * PhaseSpread
}

// At evaluates the field at pixel (x, y) and time t. The result is in [0,1].
func (f Field) At(x, y, t float64) float64 {
	if f.Source == nil {
		return 0
	}
	scale := math.Max(f.Scale, MinFrequency)
	ox, oy := Phase(t, f.Speed)
	return f.FBM.Sample(f.Source, x*scale+ox, y*scale+oy)
}
