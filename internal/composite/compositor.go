// Package composite blends the sharp and blurred layers of a frame.
package composite

import (
	"fmt"
	"image"
	"image/color"
)

// MaskedOver composites blurred over sharp, weighted by mask: the sharp layer
// keeps (1-m) of its coverage, the blurred layer contributes m, and the
// blurred layer is drawn over the sharp one. All buffers are premultiplied and
// must share bounds with dst. dst may alias sharp.
func MaskedOver(dst, sharp, blurred *image.RGBA, mask *image.Gray) error {
	b := dst.Bounds()
	if sharp.Bounds() != b || blurred.Bounds() != b || mask.Bounds() != b {
		return fmt.Errorf("layer bounds mismatch: dst %v sharp %v blurred %v mask %v",
			b, sharp.Bounds(), blurred.Bounds(), mask.Bounds())
	}

	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		s := sharp.Pix[y*sharp.Stride : y*sharp.Stride+w*4]
		bl := blurred.Pix[y*blurred.Stride : y*blurred.Stride+w*4]
		m := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := 0; x < w; x++ {
			mv := uint32(m[x])
			i := x * 4
			if mv == 0 {
				copy(d[i:i+4], s[i:i+4])
				continue
			}
			// top = blurred*m, bottom = sharp*(1-m), out = top + bottom*(1-top.a)
			ta := div255(uint32(bl[i+3]) * mv)
			inv := 255 - ta
			for c := 0; c < 4; c++ {
				top := div255(uint32(bl[i+c]) * mv)
				bottom := div255(uint32(s[i+c]) * (255 - mv))
				d[i+c] = uint8(min(top+div255(bottom*inv), 255))
			}
		}
	}
	return nil
}

// Flatten draws src over an opaque background colour, producing an image
// without transparency for formats like JPEG.
func Flatten(src *image.RGBA, bg color.Color) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	br, bgG, bb, _ := bg.RGBA()
	back := [3]uint32{br >> 8, bgG >> 8, bb >> 8}

	for y := 0; y < b.Dy(); y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			i := x * 4
			inv := 255 - uint32(s[i+3])
			for c := 0; c < 3; c++ {
				d[i+c] = uint8(min(uint32(s[i+c])+div255(back[c]*inv), 255))
			}
			d[i+3] = 255
		}
	}
	return dst
}

// div255 divides by 255 with rounding.
func div255(v uint32) uint32 {
	return (v + 127) / 255
}
