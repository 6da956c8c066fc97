// Package server exposes the effect over HTTP: archived or on-demand frames,
// a live MJPEG stream and status endpoints.
package server

import (
	"os"
	"path"
	"strconv"
	"strings"
)

// parseFramePath parses a frame path like /frames/12.png and returns the
// frame index and the extension without the dot.
func parseFramePath(requestPath string) (int, string, bool) {
	if !strings.HasPrefix(requestPath, "/frames/") {
		return 0, "", false
	}
	base := path.Base(requestPath)
	ext := path.Ext(base)
	switch ext {
	case ".png", ".jpg", ".jpeg":
	default:
		return 0, "", false
	}

	index, err := strconv.Atoi(strings.TrimSuffix(base, ext))
	if err != nil || index < 0 {
		return 0, "", false
	}
	return index, strings.TrimPrefix(ext, "."), true
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !st.IsDir()
}
