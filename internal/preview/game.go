// Package preview shows the effect in an Ebitengine window. The window size
// drives the surface, the monitor scale factor drives the device pixel ratio,
// and N toggles the noise view.
package preview

import (
	"context"
	"image"
	"image/draw"
	"log/slog"
	"time"

	eb "github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	_ "github.com/MeKo-Tech/noisyblur/internal/backend/kage" // GPU backend
	"github.com/MeKo-Tech/noisyblur/internal/driver"
)

// Game adapts a driver to the ebiten.Game interface.
type Game struct {
	ctx       context.Context
	driver    *driver.Driver
	logger    *slog.Logger
	canvas    *eb.Image
	backend   string
	showNoise bool
}

// New starts a driver for the preview window.
func New(ctx context.Context, opts driver.Options) *Game {
	g := &Game{
		ctx:       ctx,
		logger:    opts.Logger,
		showNoise: opts.Config.ShowNoise,
	}
	g.driver = driver.New(ctx, opts)
	return g
}

// Driver returns the underlying driver.
func (g *Game) Driver() *driver.Driver { return g.driver }

// Update handles input.
func (g *Game) Update() error {
	if g.ctx.Err() != nil || inpututil.IsKeyJustPressed(eb.KeyEscape) {
		return eb.Termination
	}
	if inpututil.IsKeyJustPressed(eb.KeyN) {
		g.showNoise = !g.showNoise
		g.driver.SetShowNoise(g.showNoise)
	}

	if name := g.driver.Backend(); name != g.backend {
		g.backend = name
		g.log().Info("Preview backend", "backend", name)
	}
	return nil
}

// Draw renders the current frame onto the screen.
func (g *Game) Draw(screen *eb.Image) {
	screen.Clear()
	switch frame := g.driver.Frame(time.Now()).(type) {
	case *eb.Image:
		screen.DrawImage(frame, nil)
	case *image.RGBA:
		g.upload(frame)
		screen.DrawImage(g.canvas, nil)
	case nil:
	default:
		g.upload(toRGBA(frame))
		screen.DrawImage(g.canvas, nil)
	}
}

// Layout resizes the driver to the window and returns the screen size in
// device pixels.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	dpr := eb.Monitor().DeviceScaleFactor()
	g.driver.Resize(float64(outsideWidth), float64(outsideHeight), dpr)
	size := g.driver.Size()
	return size.Width, size.Height
}

// Close stops the driver and releases the canvas.
func (g *Game) Close() {
	g.driver.Close()
	if g.canvas != nil {
		g.canvas.Deallocate()
		g.canvas = nil
	}
}

// upload copies a CPU frame into the canvas, reallocating it on size changes.
func (g *Game) upload(frame *image.RGBA) {
	b := frame.Bounds()
	if g.canvas == nil || g.canvas.Bounds().Size() != b.Size() {
		if g.canvas != nil {
			g.canvas.Deallocate()
		}
		g.canvas = eb.NewImage(b.Dx(), b.Dy())
	}
	if frame.Stride == 4*b.Dx() {
		g.canvas.WritePixels(frame.Pix[:4*b.Dx()*b.Dy()])
		return
	}
	g.canvas.WritePixels(toRGBA(frame).Pix)
}

func (g *Game) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
