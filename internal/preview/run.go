package preview

import (
	"context"

	eb "github.com/hajimehoshi/ebiten/v2"

	"github.com/MeKo-Tech/noisyblur/internal/driver"
)

// Run opens a resizable window and blocks until it is closed, Escape is
// pressed or ctx is done.
func Run(ctx context.Context, title string, opts driver.Options) error {
	g := New(ctx, opts)
	defer g.Close()

	eb.SetWindowSize(int(opts.CSSWidth), int(opts.CSSHeight))
	eb.SetWindowResizingMode(eb.WindowResizingModeEnabled)
	eb.SetWindowTitle(title)
	eb.SetVsyncEnabled(true)

	return eb.RunGame(g)
}
