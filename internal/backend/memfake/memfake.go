// Package memfake provides an in-memory backend.Backend for exercising the
// restore plan, session cache, and manager logic without invoking a real
// restic binary.
package memfake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
)

// File describes one file's content for a fake repository tree.
type File struct {
	Path    string
	Content []byte
}

// Backend is a set of fixed, in-memory repositories keyed by path, each gated
// by a password. Build one with New and register repositories via Add.
type Backend struct {
	repos map[string]*Repository
}

// New returns an empty Backend. Use Add to register fake repositories.
func New() *Backend {
	return &Backend{repos: make(map[string]*Repository)}
}

// Add registers a fake repository reachable at path, gated by password.
func (b *Backend) Add(path, password, configID string, snapshot backend.Snapshot, files []File) {
	b.repos[path] = &Repository{
		id:       configID,
		password: password,
		snapshot: snapshot,
		files:    files,
	}
}

func (b *Backend) Open(_ context.Context, path, password string) (backend.Repository, error) {
	repo, ok := b.repos[path]
	if !ok {
		return nil, fmt.Errorf("memfake: no repository registered at %q", path)
	}
	if repo.password != password {
		return nil, fmt.Errorf("memfake: wrong password for %q", path)
	}
	return repo, nil
}

// Repository is a fixed single-snapshot fake repository.
type Repository struct {
	id       string
	password string
	snapshot backend.Snapshot
	files    []File
}

func (r *Repository) ID() string   { return r.id }
func (r *Repository) Close() error { return nil }

func (r *Repository) Snapshots(context.Context) ([]backend.Snapshot, error) {
	return []backend.Snapshot{r.snapshot}, nil
}

func (r *Repository) Enumerate(_ context.Context, _, path string, recursive bool) ([]backend.Entry, error) {
	prefix := strings.TrimSuffix(path, "/")
	dirs := map[string]bool{}
	var entries []backend.Entry

	for _, f := range r.files {
		if prefix != "" && !strings.HasPrefix(f.Path, prefix+"/") && f.Path != prefix {
			continue
		}
		rel := strings.TrimPrefix(f.Path, prefix+"/")
		if prefix == "" {
			rel = strings.TrimPrefix(f.Path, "/")
		}

		if recursive {
			// Register every intermediate directory between prefix and the
			// file, not just its immediate parent.
			segments := strings.Split(rel, "/")
			for i := 0; i < len(segments)-1; i++ {
				dirPath := prefix + "/" + strings.Join(segments[:i+1], "/")
				if prefix == "" {
					dirPath = "/" + strings.Join(segments[:i+1], "/")
				}
				if !dirs[dirPath] {
					dirs[dirPath] = true
					entries = append(entries, backend.Entry{Path: dirPath, Kind: backend.Directory})
				}
			}
		} else if idx := strings.Index(rel, "/"); idx >= 0 {
			dirPath := prefix + "/" + rel[:idx]
			if prefix == "" {
				dirPath = "/" + rel[:idx]
			}
			if !dirs[dirPath] {
				dirs[dirPath] = true
				entries = append(entries, backend.Entry{Path: dirPath, Kind: backend.Directory})
			}
			continue
		}

		entries = append(entries, backend.Entry{Path: f.Path, Kind: backend.File, Size: int64(len(f.Content))})
	}

	sort.Slice(entries, func(i, j int) bool {
		// Directories before their contents: a directory must sort before
		// any path that has it as a proper prefix.
		if entries[i].Path == entries[j].Path {
			return false
		}
		if strings.HasPrefix(entries[j].Path, entries[i].Path+"/") {
			return true
		}
		if strings.HasPrefix(entries[i].Path, entries[j].Path+"/") {
			return false
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

func (r *Repository) Entry(ctx context.Context, snapshotID, path string) (backend.Entry, error) {
	for _, f := range r.files {
		if f.Path == path {
			return backend.Entry{Path: path, Kind: backend.File, Size: int64(len(f.Content))}, nil
		}
	}
	// Not a file — it's a directory iff it has any contents of its own.
	// Enumerate(path) lists path's children, not path itself, so a
	// non-empty result is proof path is a directory.
	entries, err := r.Enumerate(ctx, snapshotID, path, false)
	if err == nil && len(entries) > 0 {
		return backend.Entry{Path: path, Kind: backend.Directory}, nil
	}
	return backend.Entry{}, fmt.Errorf("memfake: no entry at %q", path)
}

func (r *Repository) Dump(_ context.Context, _, path string, w io.Writer) error {
	for _, f := range r.files {
		if f.Path == path {
			_, err := w.Write(f.Content)
			return err
		}
	}
	return fmt.Errorf("memfake: no file at %q", path)
}

func (r *Repository) Read(ctx context.Context, snapshotID, path string, limit int64) ([]byte, int64, error) {
	var buf bytes.Buffer
	if err := r.Dump(ctx, snapshotID, path, &buf); err != nil {
		return nil, 0, err
	}
	data := buf.Bytes()
	if int64(len(data)) <= limit {
		return data, 0, nil
	}
	return data[:limit], int64(len(data)) - limit, nil
}
