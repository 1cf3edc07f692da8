// Package backend defines the narrow contract the restore engine needs from
// the underlying snapshot-repository library. The library itself is an
// out-of-scope external collaborator (see SPEC_FULL.md §1/§4.12); this
// package only declares the shape the core depends on and is implemented
// either by shelling out to the real restic binary (subpackage resticcli) or
// by an in-memory fake used in tests (subpackage memfake).
package backend

import (
	"context"
	"io"
	"time"
)

// EntryKind distinguishes files from directories in a snapshot tree.
type EntryKind int

const (
	File EntryKind = iota
	Directory
)

// Entry is a single node in a snapshot tree. The core treats entries as
// opaque values carrying exactly these three fields.
type Entry struct {
	Path string
	Kind EntryKind
	Size int64
}

// Snapshot is a named, immutable point-in-time tree inside a repository.
type Snapshot struct {
	ID    string
	Time  time.Time
	Paths []string
}

// Location is the configuration-time description of a repository: its
// unique name, its filesystem path, and an opaque password verifier string.
type Location struct {
	Name     string
	Path     string
	Verifier string
}

// Repository is an opened, password-verified handle onto one backing
// repository. Implementations must be safe for concurrent use by multiple
// goroutines holding a shared session handle.
type Repository interface {
	// ID returns the repository's content-addressed configuration
	// identifier — stable across restarts and independent of the
	// configured Name, per the restore-ID design resolved in SPEC_FULL.md.
	ID() string

	// Snapshots lists all snapshots stored in the repository.
	Snapshots(ctx context.Context) ([]Snapshot, error)

	// Entry resolves the metadata of a single path within a snapshot.
	Entry(ctx context.Context, snapshotID, path string) (Entry, error)

	// Enumerate lists the entries under path within a snapshot. If
	// recursive is true, all descendants are returned, not just direct
	// children.
	Enumerate(ctx context.Context, snapshotID, path string, recursive bool) ([]Entry, error)

	// Dump streams the decrypted bytes of the file at path into w. It must
	// not be called for directory entries.
	Dump(ctx context.Context, snapshotID, path string, w io.Writer) error

	// Read returns up to limit bytes of the file at path, for preview
	// purposes. truncatedBy is the number of bytes omitted from the end of
	// the file, or zero if the whole file fit within limit.
	Read(ctx context.Context, snapshotID, path string, limit int64) (data []byte, truncatedBy int64, err error)

	// Close releases any resources (subprocess handles, file descriptors)
	// held by the repository.
	Close() error
}

// Backend opens repositories at a filesystem path, given the plaintext
// repository password. Opening performs expensive key-derivation work;
// callers should cache the result rather than calling Open repeatedly for
// the same location. Password gating against the configured verifier
// (package passwd) happens before Open is ever called — Open always
// receives the caller-supplied plaintext password, which the backend uses to
// decrypt the repository itself.
type Backend interface {
	Open(ctx context.Context, path, password string) (Repository, error)
}
