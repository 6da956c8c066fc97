package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/noisyblur/internal/pipeline"
)

// OnDemandFramesConfig configures on-demand frame rendering.
type OnDemandFramesConfig struct {
	// FramesDir caches rendered frames on disk; empty disables the cache.
	FramesDir    string
	CacheControl string
	// FPS maps frame indices to animation time.
	FPS float64
	// FrameCount bounds the valid indices when > 0.
	FrameCount        int
	MaxConcurrent     int
	GenerationTimeout time.Duration
	DisableCache      bool
}

// Renderer renders encoded frames. *pipeline.Baker implements it.
type Renderer interface {
	Render(ctx context.Context, t float64) ([]byte, error)
	Encoder() pipeline.Encoder
}

// OnDemandFrames renders frames when they are first requested.
type OnDemandFrames struct {
	renderer Renderer
	logger   *slog.Logger
	sem      chan struct{}
	locks    sync.Map
	cfg      OnDemandFramesConfig

	activeRenders  atomic.Int32
	totalRendered  atomic.Int64
	totalFailed    atomic.Int64
	cacheHits      atomic.Int64
	currentRenders sync.Map // frame index -> start time
	queuedRenders  atomic.Int32
}

// FrameStatus reports the state of on-demand rendering.
type FrameStatus struct {
	ActiveRenders int   `json:"active_renders"`
	TotalRendered int64 `json:"total_rendered"`
	TotalFailed   int64 `json:"total_failed"`
	CacheHits     int64 `json:"cache_hits"`
	CurrentFrames []int `json:"current_frames"`
	MaxConcurrent int   `json:"max_concurrent"`
	QueuedRenders int   `json:"queued_renders"`
}

// NewOnDemandFrames creates the handler. Defaults: 30 fps, one render at a
// time, one minute timeout, no-store caching.
func NewOnDemandFrames(renderer Renderer, cfg OnDemandFramesConfig, logger *slog.Logger) (*OnDemandFrames, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = time.Minute
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.FramesDir != "" && !cfg.DisableCache {
		if err := os.MkdirAll(cfg.FramesDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create frames dir: %w", err)
		}
	}

	return &OnDemandFrames{
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Status returns the current render status.
func (f *OnDemandFrames) Status() FrameStatus {
	current := []int{}
	f.currentRenders.Range(func(key, _ any) bool {
		current = append(current, key.(int))
		return true
	})
	sort.Ints(current)

	return FrameStatus{
		ActiveRenders: int(f.activeRenders.Load()),
		TotalRendered: f.totalRendered.Load(),
		TotalFailed:   f.totalFailed.Load(),
		CacheHits:     f.cacheHits.Load(),
		CurrentFrames: current,
		MaxConcurrent: f.cfg.MaxConcurrent,
		QueuedRenders: int(f.queuedRenders.Load()),
	}
}

// StatusStreamHandler pushes the render status as Server-Sent Events.
func (f *OnDemandFrames) StatusStreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		f.sendStatusEvent(w, flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				f.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (f *OnDemandFrames) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(f.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// Handler returns the frame handler.
func (f *OnDemandFrames) Handler() http.Handler {
	return http.HandlerFunc(f.serveFrame)
}

func (f *OnDemandFrames) serveFrame(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	index, _, ok := parseFramePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if f.cfg.FrameCount > 0 && index >= f.cfg.FrameCount {
		http.Error(w, fmt.Sprintf("frame %d out of range", index), http.StatusNotFound)
		return
	}

	encoder := f.renderer.Encoder()
	cachePath := ""
	if f.cfg.FramesDir != "" && !f.cfg.DisableCache {
		cachePath = pipeline.FramePath(f.cfg.FramesDir, index, encoder.Ext())
	}

	w.Header().Set("Cache-Control", f.cfg.CacheControl)

	if cachePath != "" && fileExists(cachePath) {
		f.cacheHits.Add(1)
		http.ServeFile(w, r, cachePath)
		return
	}

	mu := f.getLock(index)
	mu.Lock()
	defer mu.Unlock()

	if cachePath != "" && fileExists(cachePath) {
		f.cacheHits.Add(1)
		http.ServeFile(w, r, cachePath)
		return
	}

	f.queuedRenders.Add(1)
	select {
	case f.sem <- struct{}{}:
		f.queuedRenders.Add(-1)
		defer func() { <-f.sem }()
	case <-r.Context().Done():
		f.queuedRenders.Add(-1)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), f.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	f.activeRenders.Add(1)
	f.currentRenders.Store(index, start)

	data, err := f.renderer.Render(ctx, float64(index)/f.cfg.FPS)

	f.activeRenders.Add(-1)
	f.currentRenders.Delete(index)

	if err != nil {
		f.totalFailed.Add(1)
		f.log().Error("failed to render frame", "frame", index, "error", err)
		http.Error(w, fmt.Sprintf("failed to render frame %d: %v", index, err), http.StatusInternalServerError)
		return
	}
	f.totalRendered.Add(1)
	f.log().Info("frame rendered on-demand", "frame", index, "ms", time.Since(start).Milliseconds())

	if cachePath != "" {
		if err := writeFileAtomic(cachePath, data); err != nil {
			f.log().Warn("failed to cache frame", "frame", index, "error", err)
		}
	}

	w.Header().Set("Content-Type", encoder.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		f.log().Error("failed to write response", "error", err)
	}
}

func (f *OnDemandFrames) getLock(index int) *sync.Mutex {
	if v, ok := f.locks.Load(index); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := f.locks.LoadOrStore(index, mu)
	return actual.(*sync.Mutex)
}

func (f *OnDemandFrames) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}

// writeFileAtomic writes through a temp file so concurrent readers never see
// a partial frame.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
