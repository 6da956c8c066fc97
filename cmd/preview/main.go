// Command preview shows the effect in a desktop window, or in the browser
// when built with GOOS=js GOARCH=wasm.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/silbinarywolf/preferdiscretegpu"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisyblur/internal/config"
	"github.com/MeKo-Tech/noisyblur/internal/driver"
	"github.com/MeKo-Tech/noisyblur/internal/preview"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("preview", pflag.ContinueOnError)
	width := fs.Float64("width", 1280, "Initial window width")
	height := fs.Float64("height", 720, "Initial window height")
	backendName := fs.String("backend", "", "Preferred render backend (default: best available)")
	allowNarrow := fs.Bool("allow-narrow", false, "Render on windows narrower than the desktop minimum")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")

	effectFlags := config.EffectFlags()
	fs.AddFlagSet(effectFlags)

	v := viper.New()
	v.SetEnvPrefix("NOISYBLUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := config.BindEffect(v, effectFlags); err != nil {
		return err
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadEffect(v)
	if err != nil {
		return err
	}

	return preview.Run(context.Background(), "NoisyBlur", driver.Options{
		Config:      cfg,
		CSSWidth:    *width,
		CSSHeight:   *height,
		DPR:         1,
		Backend:     *backendName,
		AllowNarrow: *allowNarrow,
		Logger:      logger,
	})
}
