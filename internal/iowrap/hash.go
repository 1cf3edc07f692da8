// Package iowrap provides the two composable write-side decorators used in
// the restore write path: a hashing writer and a progress-counting writer.
package iowrap

import (
	"io"

	"github.com/zeebo/blake3"
)

// HashWriter forwards every write to an inner io.Writer while feeding the
// same bytes into a running BLAKE3 hash. Seeking is forwarded unchanged to
// the inner writer if it implements io.Seeker; this system only ever
// appends, so seeking backwards (which would invalidate the hash) never
// occurs in practice.
type HashWriter struct {
	inner  io.Writer
	hasher *blake3.Hasher
}

// NewHashWriter wraps inner in a HashWriter.
func NewHashWriter(inner io.Writer) *HashWriter {
	return &HashWriter{inner: inner, hasher: blake3.New()}
}

func (h *HashWriter) Write(p []byte) (int, error) {
	n, err := h.inner.Write(p)
	if n > 0 {
		h.hasher.Write(p[:n])
	}
	return n, err
}

// Seek forwards to the inner writer if it is an io.Seeker.
func (h *HashWriter) Seek(offset int64, whence int) (int64, error) {
	if s, ok := h.inner.(io.Seeker); ok {
		return s.Seek(offset, whence)
	}
	return 0, io.ErrUnexpectedEOF
}

// Finalize returns the BLAKE3 digest of everything written so far, along
// with the inner writer for any final flush/close the caller needs to do.
func (h *HashWriter) Finalize() ([32]byte, io.Writer) {
	var sum [32]byte
	copy(sum[:], h.hasher.Sum(nil))
	return sum, h.inner
}
