package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/noisyblur/internal/framestore"
)

// ArchiveHandler serves frames from a baked frame archive.
type ArchiveHandler struct {
	reader       *framestore.Reader
	logger       *slog.Logger
	meta         framestore.Metadata
	contentType  string
	cacheControl string
}

// ArchiveConfig configures the archive handler.
type ArchiveConfig struct {
	ArchivePath  string
	CacheControl string
}

// NewArchiveHandler opens the archive for reading.
func NewArchiveHandler(cfg ArchiveConfig, logger *slog.Logger) (*ArchiveHandler, error) {
	reader, err := framestore.OpenReader(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame archive: %w", err)
	}
	meta, err := reader.Metadata()
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("failed to read archive metadata: %w", err)
	}

	contentType := "image/png"
	if meta.Format == "jpeg" {
		contentType = "image/jpeg"
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=86400"
	}

	return &ArchiveHandler{
		reader:       reader,
		logger:       logger,
		meta:         meta,
		contentType:  contentType,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Metadata returns the archive metadata.
func (h *ArchiveHandler) Metadata() framestore.Metadata {
	return h.meta
}

// Handler returns the HTTP handler function.
func (h *ArchiveHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serveFrame(w, r)
	}
}

func (h *ArchiveHandler) serveFrame(w http.ResponseWriter, r *http.Request) {
	index, _, ok := parseFramePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := h.reader.ReadFrame(index)
	if errors.Is(err, framestore.ErrFrameNotFound) {
		http.Error(w, "frame not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("Failed to read frame", "frame", index, "error", err)
		http.Error(w, "failed to read frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", h.contentType)
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

// Close closes the archive reader.
func (h *ArchiveHandler) Close() error {
	return h.reader.Close()
}

func (h *ArchiveHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
