package restore

import (
	"context"
	"fmt"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
	"github.com/TilBlechschmidt/restic-dl/internal/destination"
)

// Plan resolves a (snapshot, source path) pair into the ordered set of
// entries that must be written to a destination, plus a pre-computed
// content descriptor so callers know the restore's shape before executing
// it.
type Plan struct {
	repo       backend.Repository
	snapshotID string
	source     backend.Entry
	entries    []backend.Entry
	content    Content
}

// NewPlan resolves sourcePath within snapshotID, recursively enumerating its
// descendants if it is a directory, and folds the resulting entries into a
// Content descriptor.
func NewPlan(ctx context.Context, repo backend.Repository, snapshotID, sourcePath string) (*Plan, error) {
	target, err := repo.Entry(ctx, snapshotID, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("restore: failed to resolve %q in snapshot %q: %w", sourcePath, snapshotID, err)
	}

	if target.Kind == backend.File {
		return &Plan{
			repo:       repo,
			snapshotID: snapshotID,
			source:     target,
			entries:    []backend.Entry{target},
			content:    Content{Kind: ContentFile, Size: uint64(target.Size)},
		}, nil
	}

	entries, err := repo.Enumerate(ctx, snapshotID, sourcePath, true)
	if err != nil {
		return nil, fmt.Errorf("restore: failed to enumerate %q in snapshot %q: %w", sourcePath, snapshotID, err)
	}

	var size, files, dirs uint64
	for _, e := range entries {
		switch e.Kind {
		case backend.File:
			size += uint64(e.Size)
			files++
		case backend.Directory:
			dirs++
		}
	}

	return &Plan{
		repo:       repo,
		snapshotID: snapshotID,
		source:     target,
		entries:    entries,
		content:    Content{Kind: ContentArchive, Size: size, Files: files, Directories: dirs},
	}, nil
}

// Source returns the resolved root entry of the restore.
func (p *Plan) Source() backend.Entry { return p.source }

// Content returns the pre-computed content descriptor.
func (p *Plan) Content() Content { return p.content }

// Execute walks the plan's entries in repository order, calling AddDir for
// directories and streaming each file's decrypted bytes into the writer
// AddFile returns. Any backend error aborts execution immediately — restores
// are never retried.
func (p *Plan) Execute(ctx context.Context, dest destination.Destination) error {
	for _, e := range p.entries {
		switch e.Kind {
		case backend.Directory:
			if err := dest.AddDir(e.Path); err != nil {
				return fmt.Errorf("restore: failed to add directory %q: %w", e.Path, err)
			}
		case backend.File:
			w, err := dest.AddFile(e.Path)
			if err != nil {
				return fmt.Errorf("restore: failed to add file %q: %w", e.Path, err)
			}
			err = p.repo.Dump(ctx, p.snapshotID, e.Path, w)
			closeErr := w.Close()
			if err != nil {
				return fmt.Errorf("restore: failed to dump %q: %w", e.Path, err)
			}
			if closeErr != nil {
				return fmt.Errorf("restore: failed to close writer for %q: %w", e.Path, closeErr)
			}
		}
	}

	if f, ok := dest.(destination.Finalizer); ok {
		if err := f.Close(); err != nil {
			return fmt.Errorf("restore: failed to finalize destination: %w", err)
		}
	}
	return nil
}
