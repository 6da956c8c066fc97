package driver

import (
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/noisyblur/internal/backend"
	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

func writeSource(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 255, 255
	}
	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func testConfig(src string) effect.Config {
	cfg := effect.DefaultConfig()
	cfg.Source = src
	cfg.GapX, cfg.GapY = 0, 0
	cfg.OffsetX, cfg.OffsetY = 0, 0
	return cfg
}

func waitReady(t *testing.T, d *Driver) {
	t.Helper()
	require.Eventually(t, d.Ready, 5*time.Second, 5*time.Millisecond)
}

func blank(img image.Image) bool {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		return false
	}
	for _, v := range rgba.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

func TestFrameBlankUntilImageReady(t *testing.T) {
	release := make(chan struct{})
	data, err := os.ReadFile(writeSource(t))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.Write(data) // nolint:errcheck
	}))
	defer srv.Close()
	defer close(release)

	reg := texture.NewRegistry(texture.RegistryOptions{Client: srv.Client()})
	d := New(context.Background(), Options{
		Config:   testConfig(srv.URL + "/slow.png"),
		CSSWidth: 800, CSSHeight: 20, DPR: 1,
		Registry: reg,
	})
	defer d.Close()

	require.False(t, d.Ready())
	frame := d.FrameAt(1)
	require.True(t, blank(frame))
	require.Equal(t, image.Rect(0, 0, 800, 20), frame.Bounds())

	d.SetShowNoise(true)
	noiseView := d.FrameAt(1).(*image.RGBA)
	c := noiseView.RGBAAt(10, 10)
	require.Equal(t, uint8(255), c.A, "noise view renders while loading")
	require.Equal(t, c.R, c.G)
	require.False(t, d.Ready())

	d.SetShowNoise(false)
	require.True(t, blank(d.FrameAt(1)))
}

func TestFrameRendersOnceReady(t *testing.T) {
	d := New(context.Background(), Options{
		Config:   testConfig(writeSource(t)),
		CSSWidth: 800, CSSHeight: 10, DPR: 1,
	})
	defer d.Close()
	waitReady(t, d)

	frame := d.FrameAt(0.5)
	require.NotNil(t, frame)
	require.False(t, blank(frame))
	require.Equal(t, backend.BackendLayered, d.Backend())
}

func TestResizeAppliesBeforeNextFrame(t *testing.T) {
	d := New(context.Background(), Options{
		Config:   testConfig(writeSource(t)),
		CSSWidth: 800, CSSHeight: 10, DPR: 1,
	})
	defer d.Close()
	waitReady(t, d)

	d.Resize(900, 12, 2)
	d.Resize(900, 12, 2)
	require.Equal(t, surface.Measure(900, 12, 2), d.Size())

	frame := d.FrameAt(0)
	require.Equal(t, image.Rect(0, 0, 1800, 24), frame.Bounds())

	d.Resize(900, 12, 5)
	require.Equal(t, image.Rect(0, 0, 1800, 24), d.FrameAt(0).Bounds(), "dpr is capped at 2")
}

func TestNarrowSurfaceStaysBlank(t *testing.T) {
	path := writeSource(t)
	d := New(context.Background(), Options{Config: testConfig(path), CSSWidth: 500, CSSHeight: 10, DPR: 1})
	defer d.Close()
	waitReady(t, d)
	require.True(t, blank(d.FrameAt(0)))

	wide := New(context.Background(), Options{Config: testConfig(path), CSSWidth: 500, CSSHeight: 10, DPR: 1, AllowNarrow: true})
	defer wide.Close()
	waitReady(t, wide)
	require.False(t, blank(wide.FrameAt(0)))
}

func TestCloseIsIdempotent(t *testing.T) {
	d := New(context.Background(), Options{Config: testConfig(filepath.Join(t.TempDir(), "missing.png")), CSSWidth: 800, CSSHeight: 10})
	d.Close()
	d.Close()
	require.Nil(t, d.FrameAt(0))
	require.Equal(t, "", d.Backend())
}

func TestFailedLoadRendersBlank(t *testing.T) {
	d := New(context.Background(), Options{Config: testConfig(filepath.Join(t.TempDir(), "missing.png")), CSSWidth: 800, CSSHeight: 10})
	defer d.Close()
	require.True(t, blank(d.FrameAt(0)))
	require.False(t, d.Ready())
}

type brokenBackend struct {
	backend.LayeredBackend
	disposed *atomic.Int32
}

func (b *brokenBackend) Name() string { return "broken-test" }

func (b *brokenBackend) Configure(effect.Config, *texture.Source) error {
	return errors.New("simulated configure failure")
}

func (b *brokenBackend) Dispose() {
	b.disposed.Add(1)
	b.LayeredBackend.Dispose()
}

func TestConfigureFailureFallsBack(t *testing.T) {
	var disposed atomic.Int32
	backend.Register("broken-test", func() backend.RenderBackend {
		return &brokenBackend{disposed: &disposed}
	})
	defer backend.Unregister("broken-test")

	d := New(context.Background(), Options{
		Config:   testConfig(writeSource(t)),
		CSSWidth: 800, CSSHeight: 10, DPR: 1,
		Backend:  "broken-test",
	})
	defer d.Close()
	require.Equal(t, "broken-test", d.Backend())
	waitReady(t, d)

	require.False(t, blank(d.FrameAt(0)))
	require.Equal(t, backend.BackendLayered, d.Backend())
	require.Equal(t, int32(1), disposed.Load())
}

func TestNoBackendRendersBlank(t *testing.T) {
	backend.Unregister(backend.BackendLayered)
	backend.Unregister(backend.BackendAnalytic)
	defer backend.Register(backend.BackendLayered, func() backend.RenderBackend { return backend.NewLayeredBackend() })
	defer backend.Register(backend.BackendAnalytic, func() backend.RenderBackend { return backend.NewAnalyticBackend(0) })

	d := New(context.Background(), Options{Config: testConfig(writeSource(t)), CSSWidth: 800, CSSHeight: 10})
	defer d.Close()
	waitReady(t, d)
	require.Equal(t, "", d.Backend())
	require.True(t, blank(d.FrameAt(0)))
}

func TestShowNoiseToggle(t *testing.T) {
	d := New(context.Background(), Options{Config: testConfig(writeSource(t)), CSSWidth: 800, CSSHeight: 4, DPR: 1})
	defer d.Close()
	waitReady(t, d)

	d.SetShowNoise(true)
	require.True(t, d.Config().ShowNoise)
	rgba := d.FrameAt(1).(*image.RGBA)
	c := rgba.RGBAAt(3, 2)
	require.Equal(t, c.R, c.G)
	require.Equal(t, uint8(255), c.A)

	d.SetShowNoise(false)
	c = d.FrameAt(1).(*image.RGBA).RGBAAt(3, 2)
	require.NotZero(t, c.R)
	require.Zero(t, c.G)
	require.Zero(t, c.B)
}

func TestRunStopsOnClose(t *testing.T) {
	d := New(context.Background(), Options{Config: testConfig(writeSource(t)), CSSWidth: 800, CSSHeight: 4})
	waitReady(t, d)

	var frames atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- d.Run(context.Background(), 200, PresenterFunc(func(frame image.Image, _ float64) error {
			if frames.Add(1) == 3 {
				d.Close()
			}
			return nil
		}))
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after Close")
	}
	require.GreaterOrEqual(t, frames.Load(), int32(3))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d := New(context.Background(), Options{Config: testConfig(writeSource(t)), CSSWidth: 800, CSSHeight: 4})
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Run(ctx, 100, PresenterFunc(func(image.Image, float64) error { return nil }))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFrameUsesClock(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(context.Background(), Options{
		Config:   testConfig(writeSource(t)),
		CSSWidth: 800, CSSHeight: 4,
		Now:      func() time.Time { return start },
	})
	defer d.Close()
	require.InDelta(t, 2.5, d.Elapsed(start.Add(2500*time.Millisecond)), 1e-9)
}

func TestReadyDuringSourceSwap(t *testing.T) {
	a := testConfig(writeSource(t))
	b := testConfig(writeSource(t))
	d := New(context.Background(), Options{Config: a, CSSWidth: 800, CSSHeight: 10, DPR: 1})
	defer d.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				d.SetConfig(context.Background(), b)
			} else {
				d.SetConfig(context.Background(), a)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = d.Ready()
		}
	}()
	wg.Wait()

	waitReady(t, d)
}
