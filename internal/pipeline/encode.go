package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/MeKo-Tech/noisyblur/internal/composite"
)

// Frame encodings.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// DefaultJPEGQuality is used when Encoder.Quality is zero.
const DefaultJPEGQuality = 85

// Encoder turns rendered frames into bytes.
type Encoder struct {
	// Background is drawn under JPEG frames, which carry no alpha.
	Background color.Color
	Format     string
	Quality    int
}

// ParseFormat normalizes a format name. "" means png.
func ParseFormat(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported frame format %q", name)
	}
}

// Ext returns the file extension for the encoder's format.
func (e Encoder) Ext() string {
	if e.Format == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ContentType returns the MIME type for the encoder's format.
func (e Encoder) ContentType() string {
	if e.Format == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Encode encodes img. Frames that are not *image.RGBA are converted first.
func (e Encoder) Encode(img image.Image) ([]byte, error) {
	rgba := toRGBA(img)
	var buf bytes.Buffer

	switch e.Format {
	case FormatJPEG:
		bg := e.Background
		if bg == nil {
			bg = color.Black
		}
		quality := e.Quality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		if err := jpeg.Encode(&buf, composite.Flatten(rgba, bg), &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(&buf, rgba); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
