package runner

import (
	"io"
	"sync"
)

// lockedWriter serializes writes to an underlying writer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// wrapVerboseWriter returns a concurrency-safe writer when more than one
// pipeline worker will share it.
func wrapVerboseWriter(workers int, w io.Writer) io.Writer {
	if workers <= 1 || w == nil {
		return w
	}
	return &lockedWriter{w: w}
}
