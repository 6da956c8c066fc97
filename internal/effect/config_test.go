package effect

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/noisyblur/internal/noise"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

func TestDefaultConfigIsNormalized(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, cfg, cfg.Normalize())
	require.Equal(t, 0.9, cfg.TileScale)
	require.Equal(t, 1, cfg.NoiseOctaves)
	require.Equal(t, noise.KindValue, cfg.NoiseKind)
}

func TestNormalizeClamps(t *testing.T) {
	cfg := Config{
		TileScale:       5,
		GapX:            -10,
		GapY:            math.NaN(),
		NoiseScale:      0,
		NoiseSpeed:      -1,
		BlurRadius:      -4,
		MaskStrength:    -1,
		NoiseContrast:   -2,
		NoiseFrequency:  -1,
		NoiseAmplitude:  -1,
		NoiseOctaves:    40,
		NoiseLacunarity: -1,
		NoiseGain:       math.Inf(1),
		NoiseKind:       "worley",
	}.Normalize()

	require.Equal(t, 1.0, cfg.TileScale)
	require.Zero(t, cfg.GapX)
	require.Zero(t, cfg.GapY)
	require.Equal(t, MinNoiseScale, cfg.NoiseScale)
	require.Zero(t, cfg.NoiseSpeed)
	require.Zero(t, cfg.BlurRadius)
	require.Zero(t, cfg.MaskStrength)
	require.Zero(t, cfg.NoiseContrast)
	require.Equal(t, noise.MinFrequency, cfg.NoiseFrequency)
	require.Zero(t, cfg.NoiseAmplitude)
	require.Equal(t, noise.MaxOctaves, cfg.NoiseOctaves)
	require.Zero(t, cfg.NoiseLacunarity)
	require.Zero(t, cfg.NoiseGain)
	require.Equal(t, noise.KindValue, cfg.NoiseKind)
}

func TestNormalizeTileScaleFloor(t *testing.T) {
	require.Equal(t, MinTileScale, Config{TileScale: 0}.Normalize().TileScale)
	require.Equal(t, MinTileScale, Config{TileScale: -3}.Normalize().TileScale)
	require.Zero(t, Config{NoiseOctaves: -2}.Normalize().NoiseOctaves)
}

func TestNormalizeKeepsKnownKinds(t *testing.T) {
	for _, kind := range noise.Kinds {
		cfg := DefaultConfig()
		cfg.NoiseKind = kind
		require.Equal(t, kind, cfg.Normalize().NoiseKind)
	}
}

func TestRequiredPaddingPx(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlurRadius = 0
	require.Zero(t, RequiredPaddingPx(cfg))

	cfg.BlurRadius = 4
	// sigma = max(2.2, 1) -> 3 sigma = 6.6 -> 7 + 2
	require.Equal(t, 9, RequiredPaddingPx(cfg))
}

func TestGeometryFollowsNativeSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TileScale = 0.5
	cfg.GapX, cfg.GapY = 0, 0

	full := texture.NewSource(image.NewRGBA(image.Rect(0, 0, 200, 100)))
	small := full.Downscale(50)
	require.Equal(t, 50, small.Width())

	want := cfg.Geometry(full, 2)
	require.Equal(t, want, cfg.Geometry(small, 2))
	require.Equal(t, 200.0, want.TileW)
	require.Equal(t, 100.0, want.TileH)
}
