package sweep

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TilBlechschmidt/restic-dl/internal/ident"
	"github.com/TilBlechschmidt/restic-dl/internal/restore"
	"github.com/TilBlechschmidt/restic-dl/internal/store"
)

func mustWrite(t *testing.T, s *store.Store, id ident.RestoreID, age time.Duration, hash *string) {
	t.Helper()
	m := &store.Metadata{
		ID:        id.String(),
		Source:    "/x",
		Content:   restore.Content{Kind: restore.ContentFile, Size: 1},
		Hash:      hash,
		CreatedAt: time.Now().Add(-age),
	}
	if err := s.WriteMetadata(id, m); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
}

func TestExpiryPassRemovesAgedMetadataAndData(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	expiredID := ident.NewRestoreID("r", "s", "/expired")
	hash := "aa"
	mustWrite(t, st, expiredID, 48*time.Hour, &hash)
	f, _ := st.CreateData(expiredID)
	f.Close()

	freshID := ident.NewRestoreID("r", "s", "/fresh")
	mustWrite(t, st, freshID, time.Minute, &hash)
	f, _ = st.CreateData(freshID)
	f.Close()

	var lock sync.RWMutex
	sw, err := New(st, &lock, time.Hour, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sw.runSweep()

	if st.Exists(expiredID) {
		t.Fatalf("expected expired metadata to be removed")
	}
	if _, err := os.Stat(st.DataPath(expiredID)); err == nil {
		t.Fatalf("expected expired data file to be removed")
	}
	if !st.Exists(freshID) {
		t.Fatalf("expected fresh metadata to survive")
	}
	if _, err := os.Stat(st.DataPath(freshID)); err != nil {
		t.Fatalf("expected fresh data file to survive: %v", err)
	}
}

func TestOrphanDataPassRemovesDataWithoutMetadata(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	id := ident.NewRestoreID("r", "s", "/orphan")
	f, err := st.CreateData(id)
	if err != nil {
		t.Fatalf("CreateData: %v", err)
	}
	f.Close()

	var lock sync.RWMutex
	sw, err := New(st, &lock, time.Hour, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sw.runSweep()

	if _, err := os.Stat(st.DataPath(id)); err == nil {
		t.Fatalf("expected orphan data file to be removed")
	}
}

func TestDanglingMetadataPassRemovesCommittedEntryMissingData(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	id := ident.NewRestoreID("r", "s", "/dangling")
	hash := "bb"
	mustWrite(t, st, id, time.Minute, &hash)
	// Never create the data file — simulates a committed artifact that was
	// lost after metadata was rewritten.

	var lock sync.RWMutex
	sw, err := New(st, &lock, time.Hour, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sw.runSweep()

	if st.Exists(id) {
		t.Fatalf("expected dangling metadata to be removed")
	}
}

func TestExpiryPassPreservesUncommittedPlaceholderUntilAged(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	id := ident.NewRestoreID("r", "s", "/placeholder")
	mustWrite(t, st, id, time.Minute, nil)

	var lock sync.RWMutex
	sw, err := New(st, &lock, time.Hour, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sw.runSweep()

	if !st.Exists(id) {
		t.Fatalf("expected fresh placeholder metadata to survive a sweep")
	}
}

func TestExpiryPassRemovesCorruptMetadata(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	path := filepath.Join(st.Root(), "meta", "deadbeef.json")
	if err := os.WriteFile(path, []byte("not json"), 0640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var lock sync.RWMutex
	sw, err := New(st, &lock, time.Hour, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sw.runSweep()

	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected corrupt metadata file to be removed")
	}
}
