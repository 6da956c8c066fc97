package server

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync/atomic"

	"github.com/MeKo-Tech/noisyblur/internal/driver"
	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/pipeline"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

// Stream limits.
const (
	DefaultStreamFPS = 15
	MaxStreamFPS     = 60
	// MaxStreamPixels bounds the device-pixel area of one stream.
	MaxStreamPixels = 3840 * 2160
)

// StreamConfig configures the live MJPEG stream.
type StreamConfig struct {
	// Background is drawn under the transparent parts of every frame.
	Background color.Color
	// Registry is shared by all connections so each image loads once.
	Registry *texture.Registry
	Backend  string
	Config   effect.Config
	// Width and Height are the CSS size used when the query omits w and h.
	Width       float64
	Height      float64
	FPS         float64
	Quality     int
	AllowNarrow bool
}

// StreamHandler serves a multipart/x-mixed-replace JPEG stream. Each
// connection runs its own driver.
type StreamHandler struct {
	logger *slog.Logger
	cfg    StreamConfig
	active atomic.Int32
	served atomic.Int64
}

// streamParams are the per-connection query parameters.
type streamParams struct {
	width, height, dpr, fps float64
	frames                  int
	debug                   bool
}

// NewStreamHandler creates the handler. Defaults: 1280x720 CSS px at 15 fps
// on a black background.
func NewStreamHandler(cfg StreamConfig, logger *slog.Logger) *StreamHandler {
	if cfg.Registry == nil {
		cfg.Registry = texture.NewRegistry(texture.RegistryOptions{Logger: logger})
	}
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultStreamFPS
	}
	if cfg.Background == nil {
		cfg.Background = color.Black
	}
	return &StreamHandler{cfg: cfg, logger: logger}
}

// Active returns the number of open streams.
func (h *StreamHandler) Active() int {
	return int(h.active.Load())
}

// FramesServed returns the number of frames written across all streams.
func (h *StreamHandler) FramesServed() int64 {
	return h.served.Load()
}

// ServeHTTP streams frames until the client disconnects or the requested
// number of frames was sent.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	h.active.Add(1)
	defer h.active.Add(-1)

	cfg := h.cfg.Config
	cfg.ShowNoise = cfg.ShowNoise || params.debug
	d := driver.New(r.Context(), driver.Options{
		Config:      cfg,
		CSSWidth:    params.width,
		CSSHeight:   params.height,
		DPR:         params.dpr,
		Backend:     h.cfg.Backend,
		Registry:    h.cfg.Registry,
		AllowNarrow: h.cfg.AllowNarrow,
		Logger:      h.logger,
	})
	defer d.Close()

	size := d.Size()
	h.log().Info("Stream opened", "remote", r.RemoteAddr, "backend", d.Backend(),
		"width", size.Width, "height", size.Height, "dpr", size.DPR, "fps", params.fps)

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	enc := pipeline.Encoder{Format: pipeline.FormatJPEG, Background: h.cfg.Background, Quality: h.cfg.Quality}
	sent := 0
	err = d.Run(r.Context(), params.fps, driver.PresenterFunc(func(frame image.Image, _ float64) error {
		data, err := enc.Encode(frame)
		if err != nil {
			return err
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {enc.ContentType()},
			"Content-Length": {strconv.Itoa(len(data))},
		})
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
		flusher.Flush()
		h.served.Add(1)

		sent++
		if params.frames > 0 && sent >= params.frames {
			d.Close()
		}
		return nil
	}))
	if err != nil && !errors.Is(err, r.Context().Err()) {
		h.log().Warn("Stream ended with error", "remote", r.RemoteAddr, "error", err)
	}
	if err := mw.Close(); err == nil {
		flusher.Flush()
	}
	h.log().Info("Stream closed", "remote", r.RemoteAddr, "frames", sent)
}

func (h *StreamHandler) parseParams(r *http.Request) (streamParams, error) {
	q := r.URL.Query()
	p := streamParams{
		width:  h.cfg.Width,
		height: h.cfg.Height,
		dpr:    1,
		fps:    h.cfg.FPS,
	}

	var err error
	parseFloat := func(key string, dst *float64) {
		if err != nil || q.Get(key) == "" {
			return
		}
		v, perr := strconv.ParseFloat(q.Get(key), 64)
		if perr != nil || v <= 0 {
			err = fmt.Errorf("invalid %s: %q", key, q.Get(key))
			return
		}
		*dst = v
	}
	parseFloat("w", &p.width)
	parseFloat("h", &p.height)
	parseFloat("dpr", &p.dpr)
	parseFloat("fps", &p.fps)
	if err != nil {
		return p, err
	}

	if s := q.Get("frames"); s != "" {
		n, perr := strconv.Atoi(s)
		if perr != nil || n < 0 {
			return p, fmt.Errorf("invalid frames: %q", s)
		}
		p.frames = n
	}
	if s := q.Get("debug"); s != "" {
		b, perr := strconv.ParseBool(s)
		if perr != nil {
			return p, fmt.Errorf("invalid debug: %q", s)
		}
		p.debug = b
	}

	p.fps = min(p.fps, MaxStreamFPS)
	if px := surface.Measure(p.width, p.height, p.dpr).Pixels(); px.X*px.Y > MaxStreamPixels {
		return p, fmt.Errorf("stream size %dx%d exceeds %d pixels", px.X, px.Y, MaxStreamPixels)
	}
	return p, nil
}

func (h *StreamHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
