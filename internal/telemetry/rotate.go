package telemetry

import (
	"fmt"
	"os"
	"sync"
)

// rotatingWriter is a minimal size-based rotating file writer: once the
// current file exceeds maxBytes, it is renamed to a numbered backup and a
// fresh file is opened. Backups beyond maxBackups are pruned oldest-first.
//
// No third-party rotation library appears anywhere in the retrieval pack, so
// this is hand-rolled stdlib os.File/os.Rename code rather than an adopted
// dependency — see DESIGN.md.
type rotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int

	f    *os.File
	size int64
}

func newRotatingWriter(path string, maxBytes int64, maxBackups int) *rotatingWriter {
	return &rotatingWriter{path: path, maxBytes: maxBytes, maxBackups: maxBackups}
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	if w.size+int64(len(p)) > w.maxBytes && w.size > 0 {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("telemetry: open log file %s: %w", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("telemetry: stat log file %s: %w", w.path, err)
	}
	w.f = f
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) rotate() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("telemetry: close log file %s: %w", w.path, err)
	}

	for i := w.maxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", w.path, i)
		dst := fmt.Sprintf("%s.%d", w.path, i+1)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}
	_ = os.Rename(w.path, w.path+".1")
	_ = os.Remove(fmt.Sprintf("%s.%d", w.path, w.maxBackups+1))

	return w.open()
}
