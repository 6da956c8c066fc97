package noise

import (
	"math"
	"testing"
)

func TestPhaseAtZero(t *testing.T) {
	ox, oy := Phase(0, 1)
	if ox != 0.5*PhaseSpread || oy != PhaseSpread {
		t.Fatalf("Phase(0) = (%v,%v), want (10,20)", ox, oy)
	}
}

func TestPhaseZeroSpeedIsStatic(t *testing.T) {
	ax, ay := Phase(0, 0)
	bx, by := Phase(1000, 0)
	if ax != bx || ay != by {
		t.Fatal("zero speed must freeze the phase")
	}
}

func TestFieldDeterministic(t *testing.T) {
	f := Field{
		Source: NewValue(0),
		FBM:    FBM{Frequency: 1, Amplitude: 2, Octaves: 1, Lacunarity: 1, Gain: 5},
		Scale:  0.003,
		Speed:  0.1,
	}
	for i := 0; i < 10; i++ {
		x, y, tm := float64(i*37), float64(i*11), float64(i)*0.25
		if f.At(x, y, tm) != f.At(x, y, tm) {
			t.Fatalf("field not deterministic at %d", i)
		}
	}
}

func TestFieldAnimates(t *testing.T) {
	f := Field{
		Source: NewValue(0),
		FBM:    FBM{Frequency: 1, Amplitude: 1, Octaves: 2, Lacunarity: 2, Gain: 0.5},
		Scale:  0.01,
		Speed:  1,
	}
	changed := false
	for i := 0; i < 10; i++ {
		x := float64(i * 13)
		if math.Abs(f.At(x, x, 0)-f.At(x, x, 1)) > 1e-9 {
			changed = true
		}
	}
	if !changed {
		t.Fatal("field should change over time")
	}
}

func TestFieldWithoutSourceIsZero(t *testing.T) {
	if got := (Field{}).At(1, 2, 3); got != 0 {
		t.Fatalf("At = %v, want 0", got)
	}
}
