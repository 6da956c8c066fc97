package effect

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/MeKo-Tech/noisyblur/internal/mask"
	"github.com/MeKo-Tech/noisyblur/internal/noise"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

// kageTemplate mirrors Pipeline.Pixel as an Ebitengine Kage program. The
// value-noise primitive is the only kind available on the GPU.
const kageTemplate = `//kage:unit pixels

package main

var Time float
var Speed float
var NoiseScale float
var Contrast float
var Strength float
var BlurRadius float
var ShowNoise float
var Frequency float
var Amplitude float
var Octaves float
var Lacunarity float
var Gain float
var SeedOffset vec2
var TileSize vec2
var TileStep vec2
var Offset vec2

func hash(p vec2) float {
	return fract(sin(dot(p, vec2(127.1, 311.7))) * 43758.5453123)
}

func valueNoise(p vec2) float {
	q := p + SeedOffset
	i := floor(q)
	f := q - i
	u := f * f * (3.0 - 2.0*f)
	a := hash(i)
	b := hash(i + vec2(1.0, 0.0))
	c := hash(i + vec2(0.0, 1.0))
	d := hash(i + vec2(1.0, 1.0))
	return mix(mix(a, b, u.x), mix(c, d, u.x), u.y)
}

func fbm(p vec2) float {
	freq := max(Frequency, {{f .MinFrequency}})
	amp := Amplitude
	sum := 0.0
	norm := 0.0
	for i := 0; i < {{.MaxOctaves}}; i++ {
		if float(i) < Octaves {
			sum += amp * valueNoise(p*freq)
			norm += amp
			freq *= Lacunarity
			amp *= Gain
		}
	}
	if norm > {{f .MinNorm}} {
		sum /= norm
	}
	return clamp(sum, 0.0, 1.0)
}

func gaussian(d float, sigma float) float {
	r := d / max(sigma, {{f .MinGaussianSigma}})
	return exp(-0.5 * r * r)
}

func texel(p vec2) vec4 {
	q := clamp(p, vec2(0.0), imageSrc0Size()-1.0)
	return imageSrc0At(imageSrc0Origin() + q + 0.5)
}

func sampleUV(uv vec2) vec4 {
	p := uv*imageSrc0Size() - 0.5
	i := floor(p)
	f := p - i
	a := texel(i)
	b := texel(i + vec2(1.0, 0.0))
	c := texel(i + vec2(0.0, 1.0))
	d := texel(i + vec2(1.0, 1.0))
	return mix(mix(a, b, f.x), mix(c, d, f.x), f.y)
}

func samplePattern(coord vec2) vec4 {
	r := (coord + Offset) / TileStep
	cell := (r - floor(r)) * TileStep
	if cell.x > TileSize.x || cell.y > TileSize.y {
		return vec4(0.0)
	}
	return sampleUV(cell / TileSize)
}

func blurPattern(coord vec2, radius float) vec4 {
	if radius <= {{f .SharpRadius}} {
		return samplePattern(coord)
	}
	sigma := max(radius*{{f .SigmaFactor}}, {{f .MinSigma}})
	acc := samplePattern(coord)
	total := 1.0
	angle := hash(coord*{{f .RotationScale}}) * {{f .TwoPi}}
	cs := cos(angle)
	sn := sin(angle)
	var o vec2
	var w float
{{- range .Taps}}
	o = vec2(cs*({{f .X}})+sn*({{f .Y}}), -sn*({{f .X}})+cs*({{f .Y}})) * radius
	w = gaussian(length(o), sigma)
	acc += samplePattern(coord+o) * w
	total += w
{{- end}}
	return acc / max(total, {{f .MinWeight}})
}

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	coord := dstPos.xy - imageDstOrigin()
	t := Time * Speed
	anim := vec2(sin(t*{{f .PhaseRateX}})*0.5+0.5, cos(t*{{f .PhaseRateY}})*0.5+0.5)
	n := fbm(coord*max(NoiseScale, {{f .MinFrequency}}) + anim*{{f .PhaseSpread}})
	c := clamp((n-0.5)*Contrast+0.5, 0.0, 1.0)
	if ShowNoise > 0.5 {
		wide := clamp((c-0.5)*1.8+0.5, 0.0, 1.0)
		v := clamp(wide+0.1*sin(t*2.0), 0.0, 1.0)
		return vec4(v, v, v, 1.0)
	}
	shaped := 1.0 / (1.0 + exp(-{{f .Steepness}}*(c-0.5)))
	m := clamp(shaped*Strength, 0.0, 1.0)
	radius := BlurRadius * pow(m, {{f .BlurExponent}})
	base := samplePattern(coord)
	blurred := blurPattern(coord, radius)
	return mix(base, blurred, m)
}
`

var (
	kageOnce   sync.Once
	kageSource []byte
	kageErr    error
)

// KageSource returns the Kage program for the effect. The source is rendered
// once from the same constants the CPU pipeline uses.
func KageSource() ([]byte, error) {
	kageOnce.Do(func() {
		tmpl, err := template.New("kage").Funcs(template.FuncMap{"f": kageFloat}).Parse(kageTemplate)
		if err != nil {
			kageErr = err
			return
		}
		var buf bytes.Buffer
		err = tmpl.Execute(&buf, map[string]any{
			"MinFrequency":     noise.MinFrequency,
			"MaxOctaves":       noise.MaxOctaves,
			"MinNorm":          1e-4,
			"MinGaussianSigma": minGaussianSigma,
			"SharpRadius":      SharpRadius,
			"SigmaFactor":      SigmaFactor,
			"MinSigma":         MinSigma,
			"RotationScale":    RotationScale,
			"TwoPi":            6.283185307179586,
			"MinWeight":        minWeight,
			"Taps":             PoissonTaps,
			"PhaseRateX":       noise.PhaseRateX,
			"PhaseRateY":       noise.PhaseRateY,
			"PhaseSpread":      noise.PhaseSpread,
			"Steepness":        mask.Steepness,
			"BlurExponent":     mask.BlurExponent,
		})
		kageSource, kageErr = buf.Bytes(), err
	})
	return kageSource, kageErr
}

// KageUniforms returns the uniform values for one frame.
func KageUniforms(cfg Config, g texture.Geometry, t float64) map[string]any {
	sx, sy := noise.SeedOffset(cfg.Seed)
	return map[string]any{
		"Time":       float32(t),
		"Speed":      float32(cfg.NoiseSpeed),
		"NoiseScale": float32(cfg.NoiseScale),
		"Contrast":   float32(cfg.NoiseContrast),
		"Strength":   float32(cfg.MaskStrength),
		"BlurRadius": float32(cfg.BlurRadius),
		"ShowNoise":  boolFloat(cfg.ShowNoise),
		"Frequency":  float32(cfg.NoiseFrequency),
		"Amplitude":  float32(cfg.NoiseAmplitude),
		"Octaves":    float32(cfg.NoiseOctaves),
		"Lacunarity": float32(cfg.NoiseLacunarity),
		"Gain":       float32(cfg.NoiseGain),
		"SeedOffset": []float32{float32(sx), float32(sy)},
		"TileSize":   []float32{float32(g.TileW), float32(g.TileH)},
		"TileStep":   []float32{float32(g.StepX), float32(g.StepY)},
		"Offset":     []float32{float32(g.OffsetX), float32(g.OffsetY)},
	}
}

// kageFloat formats v as a float literal; Kage treats "10" as an integer.
func kageFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func boolFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
