package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MessageLog appends every complete inbound frame as one line. The file
// format is what the mock hub replays.
type MessageLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenMessageLog opens path for appending, creating parent directories.
func OpenMessageLog(path string) (*MessageLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating message log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening message log %s: %w", path, err)
	}
	return &MessageLog{file: f}, nil
}

// Write appends one line. Write errors are dropped; a nil log is a no-op.
func (l *MessageLog) Write(raw string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	_, _ = l.file.WriteString(raw + "\n")
}

// Close closes the underlying file.
func (l *MessageLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
