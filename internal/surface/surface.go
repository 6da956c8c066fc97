// Package surface measures render targets and owns their pixel buffers.
package surface

import (
	"image"
	"math"
)

const (
	// MaxDPR caps the device pixel ratio to bound fill cost on dense displays.
	MaxDPR = 2.0
	// MinWidth is the narrowest CSS width on which the effect is shown.
	MinWidth = 768.0
)

// Size is a surface measured in CSS pixels together with its device pixel
// ratio and the derived backing-store dimensions.
type Size struct {
	CSSWidth  float64
	CSSHeight float64
	DPR       float64
	Width     int
	Height    int
}

// Measure derives the backing-store size. A DPR <= 0 counts as 1 and larger
// ratios are capped at MaxDPR. Both dimensions are at least 1.
func Measure(cssW, cssH, dpr float64) Size {
	if dpr <= 0 || math.IsNaN(dpr) {
		dpr = 1
	}
	dpr = math.Min(dpr, MaxDPR)
	cssW = math.Max(cssW, 0)
	cssH = math.Max(cssH, 0)
	return Size{
		CSSWidth:  cssW,
		CSSHeight: cssH,
		DPR:       dpr,
		Width:     max(1, int(math.Floor(cssW*dpr))),
		Height:    max(1, int(math.Floor(cssH*dpr))),
	}
}

// Pixels returns the backing-store dimensions as a point.
func (s Size) Pixels() image.Point {
	return image.Pt(s.Width, s.Height)
}

// Desktop reports whether the CSS width reaches MinWidth.
func (s Size) Desktop() bool {
	return s.CSSWidth >= MinWidth
}

// Surface is an RGBA frame buffer that is reallocated only when its pixel
// dimensions change.
type Surface struct {
	size   Size
	img    *image.RGBA
	allocs int
}

// New allocates a surface of the given size.
func New(size Size) *Surface {
	s := &Surface{}
	s.Resize(size)
	return s
}

// Resize adopts size and reports whether the buffer was reallocated.
func (s *Surface) Resize(size Size) bool {
	s.size = size
	if s.img != nil && s.img.Bounds().Dx() == size.Width && s.img.Bounds().Dy() == size.Height {
		return false
	}
	s.img = image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	s.allocs++
	return true
}

// Size returns the current size.
func (s *Surface) Size() Size { return s.size }

// Image returns the frame buffer. It is overwritten by the next frame.
func (s *Surface) Image() *image.RGBA { return s.img }

// Allocations counts buffer allocations over the surface lifetime.
func (s *Surface) Allocations() int { return s.allocs }

// Clear makes every pixel transparent.
func (s *Surface) Clear() {
	clear(s.img.Pix)
}
