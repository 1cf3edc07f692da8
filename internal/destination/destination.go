// Package destination implements the restore plan's polymorphic sink
// capability: add_file/add_dir, realized as a small interface with two
// concrete implementations rather than a class hierarchy.
package destination

import "io"

// Destination is the capability a restore plan writes through. AddDir is
// invalid on destinations that only ever receive a single file; callers must
// not call it for single-file restores.
type Destination interface {
	// AddFile registers a file entry at path and returns a writer for its
	// contents. The returned writer must be closed by the caller once all
	// bytes have been written.
	AddFile(path string) (io.WriteCloser, error)

	// AddDir registers a directory entry at path.
	AddDir(path string) error
}

// Finalizer is implemented by destinations that must write trailing
// structure (e.g. a zip central directory) once the plan has finished
// calling AddFile/AddDir. The restore manager calls Close, if present,
// before finalizing the underlying hash writer.
type Finalizer interface {
	Close() error
}
