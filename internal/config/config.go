// Package config maps the effect options onto command-line flags and viper
// keys. Every option lives under the "effect." namespace so it can be set
// from a flag, the config file or a NOISYBLUR_EFFECT_* variable.
package config

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	css "github.com/mazznoer/csscolorparser"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/noise"
)

// EffectKey is the viper namespace of the effect options.
const EffectKey = "effect"

// Flag names of the effect options.
const (
	FlagSource          = "source"
	FlagTileScale       = "tile-scale"
	FlagGapX            = "gap-x"
	FlagGapY            = "gap-y"
	FlagOffsetX         = "offset-x"
	FlagOffsetY         = "offset-y"
	FlagNoiseScale      = "noise-scale"
	FlagNoiseSpeed      = "noise-speed"
	FlagBlurRadius      = "blur-radius"
	FlagMaskStrength    = "mask-strength"
	FlagNoiseContrast   = "noise-contrast"
	FlagNoiseFrequency  = "noise-frequency"
	FlagNoiseAmplitude  = "noise-amplitude"
	FlagNoiseOctaves    = "noise-octaves"
	FlagNoiseLacunarity = "noise-lacunarity"
	FlagNoiseGain       = "noise-gain"
	FlagNoiseKind       = "noise-kind"
	FlagSeed            = "seed"
	FlagShowNoise       = "show-noise"
)

// Key returns the viper key of an effect flag.
func Key(flag string) string {
	return EffectKey + "." + flag
}

// EffectFlags returns a flag set with one flag per effect option, defaulting
// to effect.DefaultConfig.
func EffectFlags() *pflag.FlagSet {
	d := effect.DefaultConfig()
	fs := pflag.NewFlagSet(EffectKey, pflag.ContinueOnError)

	fs.String(FlagSource, d.Source, "Image URL, file:// URL or path (empty: embedded demo image)")
	fs.Float64(FlagTileScale, d.TileScale, "Tile size relative to the image size (0..1]")
	fs.Float64(FlagGapX, d.GapX, "Horizontal gap between tiles in CSS px")
	fs.Float64(FlagGapY, d.GapY, "Vertical gap between tiles in CSS px")
	fs.Float64(FlagOffsetX, d.OffsetX, "Horizontal offset of the tile grid in CSS px")
	fs.Float64(FlagOffsetY, d.OffsetY, "Vertical offset of the tile grid in CSS px")
	fs.Float64(FlagNoiseScale, d.NoiseScale, "Pixel to noise space factor")
	fs.Float64(FlagNoiseSpeed, d.NoiseSpeed, "Noise animation speed")
	fs.Float64(FlagBlurRadius, d.BlurRadius, "Maximum blur radius in px")
	fs.Float64(FlagMaskStrength, d.MaskStrength, "Mask strength multiplier")
	fs.Float64(FlagNoiseContrast, d.NoiseContrast, "Noise contrast (0 keeps the raw noise)")
	fs.Float64(FlagNoiseFrequency, d.NoiseFrequency, "Base frequency of the fractal noise")
	fs.Float64(FlagNoiseAmplitude, d.NoiseAmplitude, "Base amplitude of the fractal noise")
	fs.Int(FlagNoiseOctaves, d.NoiseOctaves, fmt.Sprintf("Fractal octaves (0..%d)", noise.MaxOctaves))
	fs.Float64(FlagNoiseLacunarity, d.NoiseLacunarity, "Frequency multiplier per octave")
	fs.Float64(FlagNoiseGain, d.NoiseGain, "Amplitude multiplier per octave")
	fs.String(FlagNoiseKind, string(d.NoiseKind), "Noise kind ("+kindList()+")")
	fs.Int64(FlagSeed, d.Seed, "Noise seed (0: stock look)")
	fs.Bool(FlagShowNoise, d.ShowNoise, "Render the noise field instead of the effect")
	return fs
}

// BindEffect binds every flag of fs to its effect.* key and registers the
// defaults, so keys without a flag still resolve.
func BindEffect(v *viper.Viper, fs *pflag.FlagSet) error {
	SetEffectDefaults(v)
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if bindErr := v.BindPFlag(Key(f.Name), f); bindErr != nil {
			err = fmt.Errorf("failed to bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

// SetEffectDefaults registers effect.DefaultConfig under the effect.* keys.
func SetEffectDefaults(v *viper.Viper) {
	d := effect.DefaultConfig()
	defaults := map[string]any{
		FlagSource:          d.Source,
		FlagTileScale:       d.TileScale,
		FlagGapX:            d.GapX,
		FlagGapY:            d.GapY,
		FlagOffsetX:         d.OffsetX,
		FlagOffsetY:         d.OffsetY,
		FlagNoiseScale:      d.NoiseScale,
		FlagNoiseSpeed:      d.NoiseSpeed,
		FlagBlurRadius:      d.BlurRadius,
		FlagMaskStrength:    d.MaskStrength,
		FlagNoiseContrast:   d.NoiseContrast,
		FlagNoiseFrequency:  d.NoiseFrequency,
		FlagNoiseAmplitude:  d.NoiseAmplitude,
		FlagNoiseOctaves:    d.NoiseOctaves,
		FlagNoiseLacunarity: d.NoiseLacunarity,
		FlagNoiseGain:       d.NoiseGain,
		FlagNoiseKind:       string(d.NoiseKind),
		FlagSeed:            d.Seed,
		FlagShowNoise:       d.ShowNoise,
	}
	for name, value := range defaults {
		v.SetDefault(Key(name), value)
	}
}

// LoadEffect reads the effect options from v. Unknown noise kinds are an
// error; numeric values are clamped by effect.Config.Normalize.
func LoadEffect(v *viper.Viper) (effect.Config, error) {
	kind, err := noise.ParseKind(v.GetString(Key(FlagNoiseKind)))
	if err != nil {
		return effect.Config{}, err
	}

	cfg := effect.Config{
		Source:          strings.TrimSpace(v.GetString(Key(FlagSource))),
		TileScale:       v.GetFloat64(Key(FlagTileScale)),
		GapX:            v.GetFloat64(Key(FlagGapX)),
		GapY:            v.GetFloat64(Key(FlagGapY)),
		OffsetX:         v.GetFloat64(Key(FlagOffsetX)),
		OffsetY:         v.GetFloat64(Key(FlagOffsetY)),
		NoiseScale:      v.GetFloat64(Key(FlagNoiseScale)),
		NoiseSpeed:      v.GetFloat64(Key(FlagNoiseSpeed)),
		BlurRadius:      v.GetFloat64(Key(FlagBlurRadius)),
		MaskStrength:    v.GetFloat64(Key(FlagMaskStrength)),
		NoiseContrast:   v.GetFloat64(Key(FlagNoiseContrast)),
		NoiseFrequency:  v.GetFloat64(Key(FlagNoiseFrequency)),
		NoiseAmplitude:  v.GetFloat64(Key(FlagNoiseAmplitude)),
		NoiseOctaves:    v.GetInt(Key(FlagNoiseOctaves)),
		NoiseLacunarity: v.GetFloat64(Key(FlagNoiseLacunarity)),
		NoiseGain:       v.GetFloat64(Key(FlagNoiseGain)),
		NoiseKind:       kind,
		Seed:            v.GetInt64(Key(FlagSeed)),
		ShowNoise:       v.GetBool(Key(FlagShowNoise)),
	}
	return cfg.Normalize(), nil
}

// ParseColor parses a CSS colour such as "#101820", "rgb(0 0 0 / 50%)" or
// "transparent".
func ParseColor(s string) (color.NRGBA, error) {
	c, err := css.Parse(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{
		R: unit8(c.R),
		G: unit8(c.G),
		B: unit8(c.B),
		A: unit8(c.A),
	}, nil
}

func unit8(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
}

func kindList() string {
	names := make([]string, len(noise.Kinds))
	for i, k := range noise.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
