package framestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReader_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.frames")

	metadata := Metadata{
		Name:        "Noise loop",
		Format:      "png",
		Description: "Test description",
		Config:      `{"blur-radius":12}`,
		Width:       768,
		Height:      432,
		DPR:         1.5,
		FPS:         30,
		FrameCount:  3,
	}

	w, err := New(dbPath, metadata)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	frames := [][]byte{[]byte("frame zero"), []byte("frame one"), []byte("frame two")}
	for i, data := range frames {
		if err := w.WriteFrame(i, float64(i)/30, data); err != nil {
			t.Fatalf("Failed to write frame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	for i, want := range frames {
		data, err := r.ReadFrame(i)
		if err != nil {
			t.Fatalf("Failed to read frame %d: %v", i, err)
		}
		if string(data) != string(want) {
			t.Errorf("Frame %d data mismatch: got %q, want %q", i, data, want)
		}
	}

	got, err := r.Metadata()
	if err != nil {
		t.Fatalf("Failed to read metadata: %v", err)
	}
	if got != metadata {
		t.Errorf("Metadata mismatch:\n got %+v\nwant %+v", got, metadata)
	}
}

func TestReader_FrameNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.frames")

	w, err := New(dbPath, Metadata{Name: "Empty"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	_, err = r.ReadFrame(7)
	if !errors.Is(err, ErrFrameNotFound) {
		t.Errorf("Expected ErrFrameNotFound, got %v", err)
	}
}

func TestOpenReader_NotAnArchive(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "plain.db")
	if err := os.WriteFile(dbPath, nil, 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	if _, err := OpenReader(dbPath); err == nil {
		t.Fatal("Expected error for database without frames table")
	}
}
