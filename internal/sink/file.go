package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

// File appends every message as one JSON line.
type File struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	enc *json.Encoder
}

// OpenFile opens path for appending, creating parent directories.
func OpenFile(path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	return &File{f: f, w: w, enc: json.NewEncoder(w)}, nil
}

func (s *File) Name() string { return "file" }

func (s *File) Write(_ context.Context, batch []model.LiveTimingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		if err := s.enc.Encode(m); err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
	}
	return s.w.Flush()
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
