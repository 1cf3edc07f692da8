package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
	"github.com/TilBlechschmidt/restic-dl/internal/backend/memfake"
	"github.com/TilBlechschmidt/restic-dl/internal/ident"
	"github.com/TilBlechschmidt/restic-dl/internal/progress"
	"github.com/TilBlechschmidt/restic-dl/internal/store"
)

// waitForReady polls Fetch until the restore reaches FetchReady, failing the
// test if it doesn't within a generous bound — Restore only waits for the
// worker's first progress emission, not completion.
func waitForReady(t *testing.T, m *Manager, id ident.RestoreID) FetchResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		result, err := m.Fetch(id)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if result.Status == FetchReady {
			return result
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("restore %s did not become ready in time", id)
	return FetchResult{}
}

func newTestManager(t *testing.T) (*Manager, backend.Repository) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	b := memfake.New()
	b.Add("/repo", "pw", "cfg-1", backend.Snapshot{ID: "abcdef0123"}, []memfake.File{
		{Path: "/etc/hostname", Content: []byte("myhost\n")},
		{Path: "/home/alice/docs/notes.txt", Content: []byte("0123456789")},
	})
	repo, err := b.Open(context.Background(), "/repo", "pw")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	return New(st, false, zap.NewNop()), repo
}

func TestRestoreSingleFileHappyPath(t *testing.T) {
	m, repo := newTestManager(t)

	id, err := m.Restore(context.Background(), repo, repo.ID(), "abcdef0123", "/etc/hostname")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	result := waitForReady(t, m, id)
	if result.Content.Size != 7 {
		t.Fatalf("expected size 7, got %d", result.Content.Size)
	}
}

func TestRestoreDeduplicatesConcurrentRequests(t *testing.T) {
	m, repo := newTestManager(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := m.Restore(context.Background(), repo, repo.ID(), "abcdef0123", "/home/alice/docs")
			if err != nil {
				t.Errorf("Restore: %v", err)
				return
			}
			ids[i] = id.String()
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0] {
			t.Fatalf("expected identical restore IDs, got %v", ids)
		}
	}

	id, err := ident.ParseRestoreID(ids[0])
	if err != nil {
		t.Fatalf("ParseRestoreID: %v", err)
	}
	waitForReady(t, m, id)

	m.mu.Lock()
	pending := len(m.progress)
	m.mu.Unlock()
	if pending != 0 {
		t.Fatalf("expected no lingering progress entries after completion, got %d", pending)
	}
}

func TestProgressTotalMatchesContentSize(t *testing.T) {
	m, repo := newTestManager(t)

	id, err := m.Restore(context.Background(), repo, repo.ID(), "abcdef0123", "/etc/hostname")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	result := waitForReady(t, m, id)

	var want uint64 = 7
	if result.Content.Size != want {
		t.Fatalf("expected total %d, got %d", want, result.Content.Size)
	}

	var state progress.Progress = progressFromContent(result.Content)
	if state.Data.Total != result.Content.Size {
		t.Fatalf("expected progress total %d to equal content size %d", state.Data.Total, result.Content.Size)
	}
}
