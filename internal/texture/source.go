// Package texture holds decoded source images, the tile layout that repeats
// them across the canvas, and the asynchronous loader that produces them.
package texture

import (
	"image"
	"math"

	"golang.org/x/exp/constraints"
	"golang.org/x/image/draw"
)

// Source is a decoded image stored as premultiplied float RGBA. A source
// produced by Downscale keeps the native size of the image it came from.
type Source struct {
	w, h             int
	nativeW, nativeH int
	pix              []float32
}

// NewSource converts img into a Source. Returns nil for empty images.
func NewSource(img image.Image) *Source {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	s := &Source{w: w, h: h, nativeW: w, nativeH: h, pix: make([]float32, w*h*4)}
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for i, v := range row {
			s.pix[y*w*4+i] = float32(v) / 255
		}
	}
	return s
}

// Width returns the stored width in pixels.
func (s *Source) Width() int { return s.w }

// Height returns the stored height in pixels.
func (s *Source) Height() int { return s.h }

// NativeSize returns the size of the decoded image before any downscale.
// Tile layout is derived from it.
func (s *Source) NativeSize() (w, h int) { return s.nativeW, s.nativeH }

// At returns the texel at (x, y) with coordinates clamped to the edge.
func (s *Source) At(x, y int) RGBA {
	x = clamp(x, 0, s.w-1)
	y = clamp(y, 0, s.h-1)
	i := (y*s.w + x) * 4
	p := s.pix[i : i+4 : i+4]
	return RGBA{float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])}
}

// SampleUV samples at normalized coordinates with bilinear filtering and
// clamp-to-edge addressing. Texel centres sit at (i+0.5)/size.
func (s *Source) SampleUV(u, v float64) RGBA {
	px := u*float64(s.w) - 0.5
	py := v*float64(s.h) - 0.5
	x0 := math.Floor(px)
	y0 := math.Floor(py)
	fx := px - x0
	fy := py - y0
	ix, iy := int(x0), int(y0)

	a := s.At(ix, iy)
	b := s.At(ix+1, iy)
	c := s.At(ix, iy+1)
	d := s.At(ix+1, iy+1)
	return a.Mix(b, fx).Mix(c.Mix(d, fx), fy)
}

// Image returns the source as an 8-bit premultiplied image.
func (s *Source) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	for i, v := range s.pix {
		img.Pix[i] = unit8(float64(v))
	}
	return img
}

// Downscale returns a copy whose longest side is at most maxDim, resampled
// with Catmull-Rom. The copy reports the receiver's native size. The
// receiver is returned when no resize is needed.
func (s *Source) Downscale(maxDim int) *Source {
	if maxDim <= 0 || (s.w <= maxDim && s.h <= maxDim) {
		return s
	}
	ratio := float64(maxDim) / float64(max(s.w, s.h))
	w := max(1, int(math.Round(float64(s.w)*ratio)))
	h := max(1, int(math.Round(float64(s.h)*ratio)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), s.Image(), image.Rect(0, 0, s.w, s.h), draw.Src, nil)
	out := NewSource(dst)
	out.nativeW, out.nativeH = s.nativeW, s.nativeH
	return out
}

func clamp[N constraints.Integer | constraints.Float](v, lo, hi N) N {
	return max(min(v, hi), lo)
}
