package texture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/MeKo-Tech/noisyblur/assets"
)

// ErrNotReady is returned while a source is still loading.
var ErrNotReady = errors.New("texture: image not ready")

// DefaultMaxDimension bounds the longest side of a decoded source.
const DefaultMaxDimension = 4096

// Decode reads and decodes an image in any registered format.
func Decode(r io.Reader) (*Source, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	src := NewSource(img)
	if src == nil {
		return nil, format, fmt.Errorf("decoded %s image is empty", format)
	}
	return src, format, nil
}

// Open resolves a source reference to a byte stream. Supported references are
// http(s) URLs, file:// URLs, plain paths, and "" for the embedded demo image.
func Open(ctx context.Context, client *http.Client, ref string) (io.ReadCloser, error) {
	switch {
	case ref == "":
		return io.NopCloser(bytes.NewReader(assets.DefaultImage)), nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", ref, err)
		}
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close() // nolint:errcheck
			return nil, fmt.Errorf("failed to fetch %s: status %s", ref, resp.Status)
		}
		return resp.Body, nil
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid file URL %s: %w", ref, err)
		}
		return openFile(u.Path)
	default:
		return openFile(ref)
	}
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return f, nil
}

// Handle tracks one load. It is shared by every caller that asked for the same
// reference.
type Handle struct {
	ref  string
	done chan struct{}
	src  atomic.Pointer[Source]
	err  error
}

// Ref returns the source reference.
func (h *Handle) Ref() string { return h.ref }

// Done is closed once the load finished, successfully or not.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Ready reports whether the source decoded successfully.
func (h *Handle) Ready() bool { return h.src.Load() != nil }

// Source returns the decoded image, ErrNotReady while loading, or the load error.
func (h *Handle) Source() (*Source, error) {
	if src := h.src.Load(); src != nil {
		return src, nil
	}
	select {
	case <-h.done:
		return nil, h.err
	default:
		return nil, ErrNotReady
	}
}

// Wait blocks until the load finished or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*Source, error) {
	select {
	case <-h.done:
		return h.Source()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Client *http.Client
	Logger *slog.Logger
	// MaxDimension downscales larger sources; 0 selects DefaultMaxDimension,
	// negative disables downscaling.
	MaxDimension int
}

// Registry loads each reference at most once and hands out shared handles.
type Registry struct {
	client  *http.Client
	logger  *slog.Logger
	handles map[string]*Handle
	maxDim  int
	mu      sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	maxDim := opts.MaxDimension
	if maxDim == 0 {
		maxDim = DefaultMaxDimension
	}
	return &Registry{
		client:  opts.Client,
		logger:  opts.Logger,
		handles: make(map[string]*Handle),
		maxDim:  maxDim,
	}
}

// Ensure returns the handle for ref, starting the load on first use. The load
// is detached from ctx cancellation so later callers can still use the result.
func (r *Registry) Ensure(ctx context.Context, ref string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[ref]; ok {
		return h
	}
	h := &Handle{ref: ref, done: make(chan struct{})}
	r.handles[ref] = h
	go r.load(context.WithoutCancel(ctx), h)
	return h
}

// Len returns the number of distinct references seen.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *Registry) load(ctx context.Context, h *Handle) {
	defer close(h.done)

	rc, err := Open(ctx, r.client, h.ref)
	if err != nil {
		h.err = err
		r.log().Error("Image load failed", "source", h.ref, "error", err)
		return
	}
	defer rc.Close() // nolint:errcheck

	src, format, err := Decode(rc)
	if err != nil {
		h.err = fmt.Errorf("%s: %w", displayRef(h.ref), err)
		r.log().Error("Image decode failed", "source", h.ref, "error", err)
		return
	}
	if r.maxDim > 0 {
		src = src.Downscale(r.maxDim)
	}
	h.src.Store(src)
	nw, nh := src.NativeSize()
	r.log().Debug("Image loaded", "source", displayRef(h.ref), "format", format,
		"width", src.Width(), "height", src.Height(), "native_width", nw, "native_height", nh)
}

func (r *Registry) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

func displayRef(ref string) string {
	if ref == "" {
		return "embedded"
	}
	return ref
}
