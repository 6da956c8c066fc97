package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/noisyblur/internal/framestore"
	"github.com/MeKo-Tech/noisyblur/internal/worker"
)

// Sink stores encoded frames. Implementations must be safe for concurrent use.
type Sink interface {
	WriteFrame(task worker.Task, data []byte) (path string, err error)
	Close() error
}

// FramePath returns the file name of a frame inside a frame directory.
func FramePath(dir string, index int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%05d%s", index, ext))
}

// DirSink writes each frame to its own file.
type DirSink struct {
	dir   string
	ext   string
	force bool
}

// NewDirSink creates dir if needed. Existing frames are kept unless force is set.
func NewDirSink(dir, ext string, force bool) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &DirSink{dir: dir, ext: ext, force: force}, nil
}

// Exists reports whether the frame file is already present.
func (s *DirSink) Exists(index int) bool {
	_, err := os.Stat(FramePath(s.dir, index, s.ext))
	return err == nil
}

// WriteFrame writes the frame file.
func (s *DirSink) WriteFrame(task worker.Task, data []byte) (string, error) {
	path := FramePath(s.dir, task.Index, s.ext)
	if !s.force && s.Exists(task.Index) {
		return path, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write frame file: %w", err)
	}
	return path, nil
}

// Close is a no-op.
func (s *DirSink) Close() error { return nil }

// ArchiveSink writes frames into a framestore archive.
type ArchiveSink struct {
	w    *framestore.Writer
	path string
}

// NewArchiveSink creates the archive at path with the given metadata.
func NewArchiveSink(path string, meta framestore.Metadata) (*ArchiveSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive dir: %w", err)
		}
	}
	w, err := framestore.New(path, meta)
	if err != nil {
		return nil, err
	}
	return &ArchiveSink{w: w, path: path}, nil
}

// WriteFrame buffers the frame in the archive writer.
func (s *ArchiveSink) WriteFrame(task worker.Task, data []byte) (string, error) {
	if err := s.w.WriteFrame(task.Index, task.Time, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s#%d", s.path, task.Index), nil
}

// Close flushes and closes the archive.
func (s *ArchiveSink) Close() error {
	return s.w.Close()
}
