package texture

import "image/color"

// RGBA is a premultiplied colour with float channels in [0,1].
type RGBA struct {
	R, G, B, A float64
}

// Transparent is the zero colour returned in gaps.
var Transparent = RGBA{}

// Add returns c+o.
func (c RGBA) Add(o RGBA) RGBA {
	return RGBA{c.R + o.R, c.G + o.G, c.B + o.B, c.A + o.A}
}

// Scale multiplies every channel by s.
func (c RGBA) Scale(s float64) RGBA {
	return RGBA{c.R * s, c.G * s, c.B * s, c.A * s}
}

// Mix linearly interpolates between c and o.
func (c RGBA) Mix(o RGBA, t float64) RGBA {
	return RGBA{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
		A: c.A + (o.A-c.A)*t,
	}
}

// Color converts to an 8-bit premultiplied colour.
func (c RGBA) Color() color.RGBA {
	return color.RGBA{R: unit8(c.R), G: unit8(c.G), B: unit8(c.B), A: unit8(c.A)}
}

// FromColor converts any colour to premultiplied float channels.
func FromColor(c color.Color) RGBA {
	r, g, b, a := c.RGBA()
	return RGBA{
		R: float64(r) / 0xffff,
		G: float64(g) / 0xffff,
		B: float64(b) / 0xffff,
		A: float64(a) / 0xffff,
	}
}

// Gray returns an opaque gray level.
func Gray(v float64) RGBA {
	return RGBA{v, v, v, 1}
}

func unit8(v float64) uint8 {
	return uint8(clamp(v, 0, 1)*255 + 0.5)
}
