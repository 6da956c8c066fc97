package mask

import (
	"image"

	"github.com/disintegration/gift"

	"github.com/MeKo-Tech/noisyblur/internal/noise"
)

// Generate materializes the blur mask for time t into a new grayscale image.
// 255 marks fully blurred pixels, 0 fully sharp ones.
func Generate(field noise.Field, size image.Point, t, contrast, strength float64) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, max(size.X, 1), max(size.Y, 1)))
	GenerateInto(dst, field, t, contrast, strength)
	return dst
}

// GenerateInto fills dst with the blur mask for time t, reusing its pixels.
// Noise is sampled at pixel centres.
func GenerateInto(dst *image.Gray, field noise.Field, t, contrast, strength float64) {
	bounds := dst.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := dst.Pix[(y-bounds.Min.Y)*dst.Stride:]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := field.At(float64(x)+0.5, float64(y)+0.5, t)
			v := Transfer(n, contrast, strength)
			row[x-bounds.Min.X] = toGray(v.Mask)
		}
	}
}

// VisualizeInto fills dst with the debug view of the noise field.
func VisualizeInto(dst *image.Gray, field noise.Field, t, contrast float64) {
	bounds := dst.Bounds()
	phase := t * field.Speed
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := dst.Pix[(y-bounds.Min.Y)*dst.Stride:]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := field.At(float64(x)+0.5, float64(y)+0.5, t)
			row[x-bounds.Min.X] = toGray(NoiseView(Contrast(n, contrast), phase))
		}
	}
}

// GaussianBlur applies a Gaussian blur filter to soften mask edges.
// The sigma parameter controls the blur radius (larger = more blur).
func GaussianBlur(mask *image.Gray, sigma float32) *image.Gray {
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray(g.Bounds(mask.Bounds()))
	g.Draw(dst, mask)
	return dst
}

func toGray(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
