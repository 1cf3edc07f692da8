package session

import (
	"context"
	"testing"
	"time"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
	"github.com/TilBlechschmidt/restic-dl/internal/backend/memfake"
	"github.com/TilBlechschmidt/restic-dl/internal/passwd"
)

func TestRepositoryCacheOpenRejectsUnknownName(t *testing.T) {
	cache := NewRepositoryCache(memfake.New(), nil, time.Minute)
	if _, _, err := cache.Open(context.Background(), "nope", "whatever"); err == nil {
		t.Fatalf("expected error for unknown repository")
	}
}

func TestRepositoryCacheOpenRejectsWrongPassword(t *testing.T) {
	verifier, _ := passwd.Hash("right-password")
	b := memfake.New()
	b.Add("/repo", "right-password", "cfg-1", backend.Snapshot{ID: "s1"}, nil)

	cache := NewRepositoryCache(b, []backend.Location{{Name: "r1", Path: "/repo", Verifier: verifier}}, time.Minute)

	if _, _, err := cache.Open(context.Background(), "r1", "wrong-password"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
}

func TestRepositoryCacheOpenAndGet(t *testing.T) {
	verifier, _ := passwd.Hash("right-password")
	b := memfake.New()
	b.Add("/repo", "right-password", "cfg-1", backend.Snapshot{ID: "s1"}, nil)

	cache := NewRepositoryCache(b, []backend.Location{{Name: "r1", Path: "/repo", Verifier: verifier}}, time.Minute)

	repo, token, err := cache.Open(context.Background(), "r1", "right-password")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if repo.ID() != "cfg-1" {
		t.Fatalf("unexpected repository id: %s", repo.ID())
	}

	got, ok := cache.Get(token)
	if !ok {
		t.Fatalf("expected session to be found")
	}
	if got.ID() != repo.ID() {
		t.Fatalf("expected same repository identity")
	}
}

func TestSiteCacheInsertAndContains(t *testing.T) {
	verifier, _ := passwd.Hash("site-password")
	cache := NewSiteCache(verifier, time.Minute)

	if _, err := cache.Insert("wrong"); err == nil {
		t.Fatalf("expected error for wrong password")
	}

	token, err := cache.Insert("site-password")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !cache.Contains(token) {
		t.Fatalf("expected token to be present after insert")
	}
}
