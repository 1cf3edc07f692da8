// Package store implements the restore artifact store (C8): the on-disk
// layout under a root directory, two-phase metadata commit, and the dedup
// lookup the restore manager relies on.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TilBlechschmidt/restic-dl/internal/ident"
	"github.com/TilBlechschmidt/restic-dl/internal/restore"
)

// ErrNotFound is returned when metadata for a restore ID does not exist.
var ErrNotFound = errors.New("store: metadata not found")

// Metadata is the small JSON document persisted once per restore. Hash is
// nil until the worker finishes — its presence is the durable "complete"
// marker, not a separate status flag.
type Metadata struct {
	ID        string          `json:"id"`
	Source    string          `json:"source_path"`
	Content   restore.Content `json:"content"`
	Hash      *string         `json:"hash"`
	CreatedAt time.Time       `json:"created_at"`
}

// Committed reports whether this metadata describes a finished restore.
func (m Metadata) Committed() bool {
	return m.Hash != nil
}

// Store is the disk-backed artifact store rooted at a single directory.
// root/meta/<id>.json holds metadata; root/data/<id>.bin holds the artifact
// bytes.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the meta/ and data/
// subdirectories if needed.
func New(root string) (*Store, error) {
	for _, sub := range []string{"meta", "data"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0750); err != nil {
			return nil, fmt.Errorf("store: failed to create %s directory: %w", sub, err)
		}
	}
	return &Store{root: root}, nil
}

// MetaPath returns the metadata file path for id.
func (s *Store) MetaPath(id ident.RestoreID) string {
	return filepath.Join(s.root, "meta", id.String()+".json")
}

// DataPath returns the artifact data file path for id.
func (s *Store) DataPath(id ident.RestoreID) string {
	return filepath.Join(s.root, "data", id.String()+".bin")
}

// Exists reports whether metadata has already been written for id — the
// dedup short-circuit the restore manager checks before spawning a worker.
func (s *Store) Exists(id ident.RestoreID) bool {
	_, err := os.Stat(s.MetaPath(id))
	return err == nil
}

// ReadMetadata reads and parses the metadata file for id.
func (s *Store) ReadMetadata(id ident.RestoreID) (*Metadata, error) {
	return s.readMetadataPath(s.MetaPath(id))
}

func (s *Store) readMetadataPath(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: failed to read metadata %q: %w", path, err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("store: failed to parse metadata %q: %w", path, err)
	}
	return &m, nil
}

// WriteMetadata writes m as JSON to a temporary file and renames it over the
// metadata file for id, replacing any previous version. The worker calls
// this twice per restore: once as a placeholder with
// Hash == nil, once again after finalize with the real hash — this is the
// two-phase artifact commit.
func (s *Store) WriteMetadata(id ident.RestoreID, m *Metadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("store: failed to encode metadata: %w", err)
	}

	path := s.MetaPath(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("store: failed to write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: failed to commit metadata: %w", err)
	}
	return nil
}

// CreateData opens the data file for id with create-new semantics — it must
// not already exist, preventing an accidental overwrite of a committed
// artifact.
func (s *Store) CreateData(id ident.RestoreID) (*os.File, error) {
	f, err := os.OpenFile(s.DataPath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create data file: %w", err)
	}
	return f, nil
}

// RemoveArtifact best-effort removes both files for id.
func (s *Store) RemoveArtifact(id ident.RestoreID) {
	os.Remove(s.DataPath(id))
	os.Remove(s.MetaPath(id))
}

// Root returns the store's root directory, for the sweeper's directory
// walks.
func (s *Store) Root() string { return s.root }
