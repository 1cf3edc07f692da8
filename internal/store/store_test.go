package store

import (
	"testing"
	"time"

	"github.com/TilBlechschmidt/restic-dl/internal/ident"
	"github.com/TilBlechschmidt/restic-dl/internal/restore"
)

func TestWriteAndReadMetadataTwoPhase(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := ident.NewRestoreID("repo", "snap", "/etc/hostname")
	if s.Exists(id) {
		t.Fatalf("expected no metadata before write")
	}

	placeholder := &Metadata{
		ID:        id.String(),
		Source:    "/etc/hostname",
		Content:   restore.Content{Kind: restore.ContentFile, Size: 7},
		Hash:      nil,
		CreatedAt: time.Now(),
	}
	if err := s.WriteMetadata(id, placeholder); err != nil {
		t.Fatalf("WriteMetadata placeholder: %v", err)
	}

	if !s.Exists(id) {
		t.Fatalf("expected metadata to exist after placeholder write")
	}

	got, err := s.ReadMetadata(id)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got.Committed() {
		t.Fatalf("expected placeholder metadata to be uncommitted")
	}

	hash := "deadbeef"
	committed := *placeholder
	committed.Hash = &hash
	if err := s.WriteMetadata(id, &committed); err != nil {
		t.Fatalf("WriteMetadata committed: %v", err)
	}

	got, err = s.ReadMetadata(id)
	if err != nil {
		t.Fatalf("ReadMetadata after commit: %v", err)
	}
	if !got.Committed() || *got.Hash != hash {
		t.Fatalf("expected committed metadata with hash %q, got %+v", hash, got)
	}
}

func TestCreateDataRejectsOverwrite(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id := ident.NewRestoreID("repo", "snap", "/a")

	f, err := s.CreateData(id)
	if err != nil {
		t.Fatalf("first CreateData: %v", err)
	}
	f.Close()

	if _, err := s.CreateData(id); err == nil {
		t.Fatalf("expected second CreateData to fail (file exists)")
	}
}

func TestReadMetadataMissingReturnsErrNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id := ident.NewRestoreID("repo", "snap", "/missing")
	if _, err := s.ReadMetadata(id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
