package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/noisyblur/internal/framestore"
)

// Options wires the handlers into one mux. Nil handlers are not mounted.
type Options struct {
	Logger   *slog.Logger
	Archive  *ArchiveHandler
	OnDemand *OnDemandFrames
	Stream   *StreamHandler
	// Info is echoed in /status.
	Info Info
}

// Info describes the running server.
type Info struct {
	Version string `json:"version,omitempty"`
	Backend string `json:"backend,omitempty"`
	Source  string `json:"source"`
}

// Status is the /status response body.
type Status struct {
	Info
	Mode    string               `json:"mode"`
	Archive *framestore.Metadata `json:"archive,omitempty"`
	Render  *FrameStatus         `json:"render,omitempty"`
	Streams StreamStatus         `json:"streams"`
}

// StreamStatus reports live stream activity.
type StreamStatus struct {
	Active       int   `json:"active"`
	FramesServed int64 `json:"frames_served"`
}

// NewMux returns the HTTP routes:
//
//	GET /healthz          liveness
//	GET /status           JSON status
//	GET /status/stream    status as Server-Sent Events (on-demand mode)
//	GET /frames/{n}.png   archived or on-demand frame
//	GET /stream           live MJPEG stream
func NewMux(opts Options) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(buildStatus(opts)); err != nil {
			loggerOr(opts.Logger).Error("failed to encode status", "error", err)
		}
	})

	switch {
	case opts.Archive != nil:
		mux.Handle("/frames/", opts.Archive.Handler())
	case opts.OnDemand != nil:
		mux.Handle("/frames/", opts.OnDemand.Handler())
		mux.Handle("/status/stream", opts.OnDemand.StatusStreamHandler())
	}

	if opts.Stream != nil {
		mux.Handle("/stream", opts.Stream)
	}
	return mux
}

func buildStatus(opts Options) Status {
	st := Status{Info: opts.Info, Mode: "stream"}
	switch {
	case opts.Archive != nil:
		meta := opts.Archive.Metadata()
		st.Mode = "archive"
		st.Archive = &meta
	case opts.OnDemand != nil:
		render := opts.OnDemand.Status()
		st.Mode = "on-demand"
		st.Render = &render
	}
	if opts.Stream != nil {
		st.Streams = StreamStatus{
			Active:       opts.Stream.Active(),
			FramesServed: opts.Stream.FramesServed(),
		}
	}
	return st
}

func loggerOr(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
