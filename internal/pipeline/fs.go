package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSystem is the housekeeping the orchestrator needs from the host.
type FileSystem interface {
	// ListFiles returns the names of the regular files in dir, sorted by name.
	ListFiles(dir string) ([]string, error)
	Remove(path string) error
	RemoveAll(path string) error
	MkdirAll(path string) error
}

type OSFileSystem struct{}

func (OSFileSystem) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (OSFileSystem) Remove(path string) error    { return os.Remove(path) }
func (OSFileSystem) RemoveAll(path string) error { return os.RemoveAll(path) }
func (OSFileSystem) MkdirAll(path string) error  { return os.MkdirAll(path, 0o755) }

// ErrorLog receives one line per blank archive.
type ErrorLog interface {
	Append(line string) error
}

// FileErrorLog appends lines to a plain text file. Appends are serialized.
type FileErrorLog struct {
	path string
	mu   sync.Mutex
}

func NewFileErrorLog(path string) *FileErrorLog {
	return &FileErrorLog{path: path}
}

func (l *FileErrorLog) Path() string {
	return l.path
}

func (l *FileErrorLog) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create error log directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append error log: %w", err)
	}
	return f.Close()
}
