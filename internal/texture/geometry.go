package texture

import (
	"image"
	"math"
)

// Geometry is the tile layout in device pixels. A tile occupies the first
// TileW x TileH pixels of every StepX x StepY cell; the rest is gap.
type Geometry struct {
	TileW, TileH     float64
	StepX, StepY     float64
	OffsetX, OffsetY float64
}

// NewGeometry derives the layout from the native image size and the logical
// tiling parameters. All spatial inputs are scaled by dpr.
func NewGeometry(srcW, srcH int, scale, gapX, gapY, offX, offY, dpr float64) Geometry {
	tileW := math.Max(1, float64(srcW)*scale*dpr)
	tileH := math.Max(1, float64(srcH)*scale*dpr)
	return Geometry{
		TileW:   tileW,
		TileH:   tileH,
		StepX:   tileW + math.Max(0, gapX)*dpr,
		StepY:   tileH + math.Max(0, gapY)*dpr,
		OffsetX: offX * dpr,
		OffsetY: offY * dpr,
	}
}

// Cell maps a canvas coordinate to normalized texture coordinates inside its
// tile. ok is false when the coordinate falls into a gap.
func (g Geometry) Cell(x, y float64) (u, v float64, ok bool) {
	cx := repeat(x+g.OffsetX, g.StepX)
	cy := repeat(y+g.OffsetY, g.StepY)
	if cx > g.TileW || cy > g.TileH {
		return 0, 0, false
	}
	return cx / g.TileW, cy / g.TileH, true
}

// Sample returns the sharp tiled colour at canvas coordinate (x, y).
func Sample(g Geometry, src *Source, x, y float64) RGBA {
	if src == nil {
		return Transparent
	}
	u, v, ok := g.Cell(x, y)
	if !ok {
		return Transparent
	}
	return src.SampleUV(u, v)
}

// RenderTiled fills dst with the sharp tiled layer, sampling at pixel centres.
func RenderTiled(dst *image.RGBA, g Geometry, src *Source) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := dst.Pix[(y-b.Min.Y)*dst.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			c := Sample(g, src, float64(x)+0.5, float64(y)+0.5).Color()
			i := (x - b.Min.X) * 4
			row[i+0] = c.R
			row[i+1] = c.G
			row[i+2] = c.B
			row[i+3] = c.A
		}
	}
}

// repeat wraps c into [0, p).
func repeat(c, p float64) float64 {
	r := c / p
	return (r - math.Floor(r)) * p
}
