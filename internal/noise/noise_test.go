package noise

import (
	"math"
	"testing"
)

func TestHashRange(t *testing.T) {
	for i := -50; i < 50; i++ {
		for j := -50; j < 50; j++ {
			h := Hash(float64(i), float64(j))
			if h < 0 || h >= 1 {
				t.Fatalf("Hash(%d,%d) = %v out of [0,1)", i, j, h)
			}
		}
	}
}

func TestValueNoiseMatchesLatticeAtCorners(t *testing.T) {
	v := NewValue(0)
	for _, p := range [][2]float64{{0, 0}, {3, 7}, {-4, 2}} {
		got := v.Noise2D(p[0], p[1])
		want := Hash(p[0], p[1])
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("Noise2D(%v) = %v, want lattice value %v", p, got, want)
		}
	}
}

func TestValueNoiseContinuous(t *testing.T) {
	v := NewValue(0)
	const eps = 1e-5
	for x := 0.0; x < 5; x += 0.173 {
		a := v.Noise2D(x, 1.3)
		b := v.Noise2D(x+eps, 1.3)
		if math.Abs(a-b) > 1e-3 {
			t.Fatalf("discontinuity at x=%v: %v vs %v", x, a, b)
		}
	}
}

func TestSeedShiftsValueNoise(t *testing.T) {
	a := NewValue(0)
	b := NewValue(42)
	diff := 0
	for i := 0; i < 20; i++ {
		x := float64(i) * 0.77
		if a.Noise2D(x, x*0.5) != b.Noise2D(x, x*0.5) {
			diff++
		}
	}
	if diff < 15 {
		t.Fatalf("different seeds should produce different noise, %d/20 differ", diff)
	}
}

func TestAllKindsStayInUnitRange(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			src, err := New(kind, 7)
			if err != nil {
				t.Fatalf("New(%s): %v", kind, err)
			}
			for i := 0; i < 400; i++ {
				x := float64(i%20)*0.37 - 3
				y := float64(i/20)*0.41 - 4
				n := src.Noise2D(x, y)
				if n < 0 || n > 1 {
					t.Fatalf("%s noise %v out of range at (%v,%v)", kind, n, x, y)
				}
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindValue, false},
		{"value", KindValue, false},
		{"perlin", KindPerlin, false},
		{"simplex", KindSimplex, false},
		{"worley", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := New("worley", 0); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
