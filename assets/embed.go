// Package assets embeds the demo source image so binaries work without
// any files next to them.
package assets

import _ "embed"

// DefaultImage is the PNG used when no source is configured.
//
// NOTE: go:embed patterns must not use ".." and must be relative to this file.
//
//go:embed images/main.png
var DefaultImage []byte
