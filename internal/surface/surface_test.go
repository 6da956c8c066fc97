package surface

import "testing"

func TestMeasure(t *testing.T) {
	tests := []struct {
		name      string
		w, h, dpr float64
		wantDPR   float64
		wantW     int
		wantH     int
	}{
		{"unit", 800, 600, 1, 1, 800, 600},
		{"retina", 800, 600, 2, 2, 1600, 1200},
		{"capped", 800, 600, 3, 2, 1600, 1200},
		{"missing dpr", 800, 600, 0, 1, 800, 600},
		{"fractional", 100.7, 50.2, 1.5, 1.5, 151, 75},
		{"zero size", 0, 0, 1, 1, 1, 1},
		{"negative size", -10, -10, 1, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Measure(tt.w, tt.h, tt.dpr)
			if s.DPR != tt.wantDPR || s.Width != tt.wantW || s.Height != tt.wantH {
				t.Fatalf("Measure = %+v, want dpr %v size %dx%d", s, tt.wantDPR, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDesktop(t *testing.T) {
	if Measure(767, 100, 1).Desktop() {
		t.Fatal("767px is below the desktop breakpoint")
	}
	if !Measure(768, 100, 1).Desktop() {
		t.Fatal("768px is a desktop width")
	}
}

func TestSurfaceResizeReallocatesOnlyOnChange(t *testing.T) {
	s := New(Measure(100, 50, 1))
	if s.Allocations() != 1 {
		t.Fatalf("expected 1 allocation, got %d", s.Allocations())
	}
	if s.Resize(Measure(100, 50, 1)) {
		t.Fatal("same size must not reallocate")
	}
	if s.Resize(Measure(50, 25, 2)) {
		t.Fatal("same pixel size must not reallocate")
	}
	if !s.Resize(Measure(60, 50, 1)) {
		t.Fatal("new size must reallocate")
	}
	if s.Allocations() != 2 {
		t.Fatalf("expected 2 allocations, got %d", s.Allocations())
	}
	if b := s.Image().Bounds(); b.Dx() != 60 || b.Dy() != 50 {
		t.Fatalf("unexpected bounds %v", b)
	}
}
