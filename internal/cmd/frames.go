package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisyblur/internal/config"
	"github.com/MeKo-Tech/noisyblur/internal/pipeline"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
)

// frameSettings are the output options shared by render, bake and serve.
type frameSettings struct {
	backend string
	encoder pipeline.Encoder
	size    surface.Size
}

// addFrameFlags adds the output flags to cmd and binds them under section.
func addFrameFlags(cmd *cobra.Command, section string) {
	cmd.Flags().Float64("width", 1280, "Surface width in CSS px")
	cmd.Flags().Float64("height", 720, "Surface height in CSS px")
	cmd.Flags().Float64("dpr", 1, fmt.Sprintf("Device pixel ratio (capped at %g)", surface.MaxDPR))
	cmd.Flags().String("backend", "", "Preferred render backend (default: best available)")
	cmd.Flags().String("format", pipeline.FormatPNG, "Frame format (png, jpeg)")
	cmd.Flags().Int("quality", pipeline.DefaultJPEGQuality, "JPEG quality (1-100)")
	cmd.Flags().String("background", "black", "CSS colour drawn under JPEG frames")

	for _, name := range []string{"width", "height", "dpr", "backend", "format", "quality", "background"} {
		if err := viper.BindPFlag(section+"."+name, cmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func loadFrameSettings(section string) (frameSettings, error) {
	width := viper.GetFloat64(section + ".width")
	height := viper.GetFloat64(section + ".height")
	if width <= 0 || height <= 0 {
		return frameSettings{}, fmt.Errorf("width and height must be positive")
	}

	format, err := pipeline.ParseFormat(viper.GetString(section + ".format"))
	if err != nil {
		return frameSettings{}, err
	}
	quality := viper.GetInt(section + ".quality")
	if quality < 1 || quality > 100 {
		return frameSettings{}, fmt.Errorf("quality must be within [1,100]")
	}
	bg, err := config.ParseColor(viper.GetString(section + ".background"))
	if err != nil {
		return frameSettings{}, err
	}

	return frameSettings{
		size:    surface.Measure(width, height, viper.GetFloat64(section+".dpr")),
		backend: viper.GetString(section + ".backend"),
		encoder: pipeline.Encoder{Format: format, Quality: quality, Background: bg},
	}, nil
}
