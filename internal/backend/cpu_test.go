package backend

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

func testSource() *texture.Source {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if (x/2+y/2)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{R: 255, G: 200, A: 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	return texture.NewSource(img)
}

func testConfig() effect.Config {
	cfg := effect.DefaultConfig()
	cfg.GapX, cfg.GapY = 4, 4
	cfg.OffsetX, cfg.OffsetY = 0, 0
	cfg.NoiseScale = 0.05
	return cfg
}

func ready(t *testing.T, b RenderBackend, cfg effect.Config, src *texture.Source, size surface.Size) {
	t.Helper()
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := b.Resize(size); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := b.Configure(cfg, src); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

func asRGBA(t *testing.T, img image.Image) *image.RGBA {
	t.Helper()
	rgba, ok := img.(*image.RGBA)
	if !ok {
		t.Fatalf("expected *image.RGBA, got %T", img)
	}
	return rgba
}

func TestAnalyticMatchesPipeline(t *testing.T) {
	cfg := testConfig()
	src := testSource()
	size := surface.Measure(20, 12, 1.5)

	b := NewAnalyticBackend(3)
	ready(t, b, cfg, src, size)
	defer b.Dispose()

	frame, err := b.RenderFrame(2.5)
	if err != nil {
		t.Fatal(err)
	}
	out := asRGBA(t, frame)
	if out.Bounds().Dx() != 30 || out.Bounds().Dy() != 18 {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}

	p, err := effect.NewPipeline(cfg, src, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 18; y++ {
		for x := 0; x < 30; x++ {
			if got, want := out.RGBAAt(x, y), p.Pixel(x, y, 2.5).Color(); got != want {
				t.Fatalf("pixel (%d,%d) = %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func TestBackendsRenderBlankWithoutSource(t *testing.T) {
	for _, b := range []RenderBackend{NewLayeredBackend(), NewAnalyticBackend(1)} {
		t.Run(b.Name(), func(t *testing.T) {
			ready(t, b, testConfig(), nil, surface.Measure(6, 6, 1))
			defer b.Dispose()

			frame, err := b.RenderFrame(1)
			if err != nil {
				t.Fatal(err)
			}
			for _, v := range asRGBA(t, frame).Pix {
				if v != 0 {
					t.Fatal("frame without a source must be blank")
				}
			}
		})
	}
}

func TestNoiseViewWithoutSource(t *testing.T) {
	for _, b := range []RenderBackend{NewLayeredBackend(), NewAnalyticBackend(1)} {
		t.Run(b.Name(), func(t *testing.T) {
			cfg := testConfig()
			cfg.ShowNoise = true
			ready(t, b, cfg, nil, surface.Measure(6, 6, 1))
			defer b.Dispose()

			frame, err := b.RenderFrame(1)
			if err != nil {
				t.Fatal(err)
			}
			out := asRGBA(t, frame)
			for i := 0; i < len(out.Pix); i += 4 {
				p := out.Pix[i : i+4]
				if p[3] != 255 || p[0] != p[1] || p[1] != p[2] {
					t.Fatalf("pixel %d = %v, want opaque gray", i/4, p)
				}
			}

			b.SetShowNoise(false)
			frame, err = b.RenderFrame(1)
			if err != nil {
				t.Fatal(err)
			}
			for _, v := range asRGBA(t, frame).Pix {
				if v != 0 {
					t.Fatal("composite view without a source must be blank")
				}
			}
		})
	}
}

func TestLayeredZeroStrengthIsSharpLayer(t *testing.T) {
	cfg := testConfig()
	cfg.MaskStrength = 0
	src := testSource()
	size := surface.Measure(24, 24, 1)

	b := NewLayeredBackend()
	ready(t, b, cfg, src, size)
	defer b.Dispose()

	frame, err := b.RenderFrame(0.75)
	if err != nil {
		t.Fatal(err)
	}
	want := image.NewRGBA(image.Rect(0, 0, 24, 24))
	texture.RenderTiled(want, cfg.Geometry(src, 1), src)
	out := asRGBA(t, frame)
	for i := range want.Pix {
		if out.Pix[i] != want.Pix[i] {
			t.Fatalf("byte %d: got %d, want %d", i, out.Pix[i], want.Pix[i])
		}
	}
}

func TestLayeredFullMaskIsBlurredLayer(t *testing.T) {
	cfg := testConfig()
	cfg.NoiseContrast = 0 // uniform 0.5 -> shaped 0.5 -> mask 1 with strength 4
	src := testSource()

	b := NewLayeredBackend()
	ready(t, b, cfg, src, surface.Measure(16, 16, 1))
	defer b.Dispose()

	frame, err := b.RenderFrame(0)
	if err != nil {
		t.Fatal(err)
	}
	out := asRGBA(t, frame)
	for i := range out.Pix {
		if out.Pix[i] != b.pool.blurred.Pix[i] {
			t.Fatalf("byte %d differs from blurred layer", i)
		}
	}
}

func TestLayeredResizeIsIdempotent(t *testing.T) {
	b := NewLayeredBackend()
	ready(t, b, testConfig(), testSource(), surface.Measure(10, 10, 1))
	defer b.Dispose()

	if _, err := b.RenderFrame(0); err != nil {
		t.Fatal(err)
	}
	allocs := b.Allocations()

	for i := 0; i < 3; i++ {
		if err := b.Resize(surface.Measure(10, 10, 1)); err != nil {
			t.Fatal(err)
		}
		if _, err := b.RenderFrame(float64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if b.Allocations() != allocs {
		t.Fatalf("same-size resize reallocated: %d -> %d", allocs, b.Allocations())
	}

	if err := b.Resize(surface.Measure(12, 10, 1)); err != nil {
		t.Fatal(err)
	}
	frame, err := b.RenderFrame(1)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Bounds().Dx() != 12 {
		t.Fatalf("expected width 12 after resize, got %d", frame.Bounds().Dx())
	}
	if b.Allocations() != allocs+1 {
		t.Fatalf("expected exactly one reallocation, got %d", b.Allocations()-allocs)
	}
}

func TestShowNoiseToggleWithoutReconfigure(t *testing.T) {
	for _, b := range []RenderBackend{NewLayeredBackend(), NewAnalyticBackend(2)} {
		t.Run(b.Name(), func(t *testing.T) {
			ready(t, b, testConfig(), testSource(), surface.Measure(8, 8, 1))
			defer b.Dispose()

			b.SetShowNoise(true)
			frame, err := b.RenderFrame(1)
			if err != nil {
				t.Fatal(err)
			}
			out := asRGBA(t, frame)
			for i := 0; i < len(out.Pix); i += 4 {
				p := out.Pix[i : i+4]
				if p[0] != p[1] || p[1] != p[2] || p[3] != 255 {
					t.Fatalf("noise view pixel %v is not opaque gray", p)
				}
			}

			b.SetShowNoise(false)
			frame, err = b.RenderFrame(1)
			if err != nil {
				t.Fatal(err)
			}
			gray := true
			out = asRGBA(t, frame)
			for i := 0; i < len(out.Pix); i += 4 {
				if out.Pix[i] != out.Pix[i+2] {
					gray = false
					break
				}
			}
			if gray {
				t.Fatal("effect output should show the coloured source again")
			}
		})
	}
}
