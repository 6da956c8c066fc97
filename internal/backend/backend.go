// Package backend provides the pluggable render strategies for the effect.
//
// Backends register themselves by name from init functions and are selected
// at runtime, either explicitly with Get or by priority with Default. The CPU
// backends in this package are always registered; the GPU backend lives in
// the kage subpackage and registers on import:
//
//	import _ "github.com/MeKo-Tech/noisyblur/internal/backend/kage"
package backend

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/noisyblur/internal/effect"
	"github.com/MeKo-Tech/noisyblur/internal/surface"
	"github.com/MeKo-Tech/noisyblur/internal/texture"
)

// Backend name constants.
const (
	// BackendKage is the GPU backend running the effect as a Kage program.
	BackendKage = "kage"
	// BackendLayered is the CPU backend compositing pre-blurred buffers.
	BackendLayered = "layered"
	// BackendAnalytic is the CPU backend evaluating every pixel exactly.
	BackendAnalytic = "analytic"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrUnsupported is returned by Configure for options a backend cannot render.
	ErrUnsupported = errors.New("backend: unsupported configuration")
)

// RenderBackend renders frames of the effect. Implementations own all of
// their buffers and are not safe for concurrent use.
type RenderBackend interface {
	// Name returns the backend identifier.
	Name() string

	// Init acquires backend resources. It must be called first.
	Init() error

	// Configure installs the effect options and the decoded source. A nil
	// source renders transparent frames.
	Configure(cfg effect.Config, src *texture.Source) error

	// Resize sets the output size. Calling it with the current size is a no-op.
	Resize(size surface.Size) error

	// SetShowNoise toggles the noise visualization without reconfiguring.
	SetShowNoise(show bool)

	// RenderFrame renders the frame for t seconds since start. The returned
	// image is owned by the backend and valid until the next call.
	RenderFrame(t float64) (image.Image, error)

	// Dispose releases all resources. It is safe to call more than once.
	Dispose()
}
