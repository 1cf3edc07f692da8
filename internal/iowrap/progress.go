package iowrap

import (
	"io"

	"github.com/TilBlechschmidt/restic-dl/internal/progress"
)

// flushThreshold is the number of written bytes a ProgressWriter counts
// before posting a Data count to its tracker. The bytes themselves are
// forwarded to the inner writer immediately.
const flushThreshold = 512 * 1024

// ProgressWriter forwards writes to an inner sink while accumulating a byte
// counter; once the counter crosses flushThreshold it posts a Data count to
// the tracker and resets. Close (standing in for the original's Drop) flushes
// whatever remains so that the total bytes posted across the writer's
// lifetime always equals the total bytes written.
type ProgressWriter struct {
	inner   io.Writer
	tracker *progress.Tracker
	counter uint64
}

// NewProgressWriter wraps inner, posting Data counts to tracker.
func NewProgressWriter(inner io.Writer, tracker *progress.Tracker) *ProgressWriter {
	return &ProgressWriter{inner: inner, tracker: tracker}
}

func (w *ProgressWriter) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	if n > 0 {
		w.counter += uint64(n)
		if w.counter >= flushThreshold {
			w.flush()
		}
	}
	return n, err
}

func (w *ProgressWriter) flush() {
	if w.counter == 0 {
		return
	}
	w.tracker.Add(progress.UnitData.Mul(w.counter))
	w.counter = 0
}

// Seek forwards to the inner writer if it implements io.Seeker.
func (w *ProgressWriter) Seek(offset int64, whence int) (int64, error) {
	if s, ok := w.inner.(io.Seeker); ok {
		return s.Seek(offset, whence)
	}
	return 0, io.ErrUnexpectedEOF
}

// Close flushes any unreported bytes. Safe to call multiple times.
func (w *ProgressWriter) Close() error {
	w.flush()
	if c, ok := w.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
