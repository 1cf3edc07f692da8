package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
	"github.com/TilBlechschmidt/restic-dl/internal/ident"
	"github.com/TilBlechschmidt/restic-dl/internal/passwd"
)

type repoEntry struct {
	name  string
	repo  backend.Repository
	timer *time.Timer
}

// RepositoryCache opens repositories on demand, gated by per-repository
// password verification, and binds each opened handle to a session token
// with a sliding expiry: both Open and Get reset the idle timer.
type RepositoryCache struct {
	backend   backend.Backend
	locations map[string]backend.Location
	lifetime  time.Duration

	mu      sync.Mutex
	entries map[ident.SessionToken]*repoEntry
}

// NewRepositoryCache configures a cache over the given locations (keyed by
// name) with the given idle lifetime.
func NewRepositoryCache(b backend.Backend, locations []backend.Location, lifetime time.Duration) *RepositoryCache {
	byName := make(map[string]backend.Location, len(locations))
	for _, loc := range locations {
		byName[loc.Name] = loc
	}
	return &RepositoryCache{
		backend:   b,
		locations: byName,
		lifetime:  lifetime,
		entries:   make(map[ident.SessionToken]*repoEntry),
	}
}

// Open verifies password against the named repository's configured
// verifier, opens it via the backend, and returns a fresh session token
// bound to the opened handle.
func (c *RepositoryCache) Open(ctx context.Context, name, password string) (backend.Repository, ident.SessionToken, error) {
	loc, ok := c.locations[name]
	if !ok {
		return nil, ident.SessionToken{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	if !passwd.Verify(loc.Verifier, password) {
		return nil, ident.SessionToken{}, ErrForbidden
	}

	repo, err := c.backend.Open(ctx, loc.Path, password)
	if err != nil {
		return nil, ident.SessionToken{}, fmt.Errorf("session: failed to open repository %q: %w", name, err)
	}

	token, err := ident.NewSessionToken()
	if err != nil {
		return nil, ident.SessionToken{}, fmt.Errorf("session: failed to generate token: %w", err)
	}

	c.mu.Lock()
	c.entries[token] = &repoEntry{
		name:  name,
		repo:  repo,
		timer: time.AfterFunc(c.lifetime, func() { c.expire(token) }),
	}
	c.mu.Unlock()

	return repo, token, nil
}

// Get returns the repository bound to token, sliding its expiry forward. The
// same token used concurrently always observes the same underlying handle.
func (c *RepositoryCache) Get(token ident.SessionToken) (backend.Repository, bool) {
	repo, _, ok := c.getEntry(token)
	return repo, ok
}

// GetNamed returns the repository bound to token only if it was opened for
// the given repository name — guarding against a session cookie for one
// repository being replayed under another repository's path.
func (c *RepositoryCache) GetNamed(token ident.SessionToken, name string) (backend.Repository, bool) {
	repo, entryName, ok := c.getEntry(token)
	if !ok || entryName != name {
		return nil, false
	}
	return repo, true
}

func (c *RepositoryCache) getEntry(token ident.SessionToken) (backend.Repository, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[token]
	if !ok {
		return nil, "", false
	}

	// Cancel-and-reschedule: replacing the timer aborts the previous one,
	// implementing the sliding window.
	e.timer.Stop()
	e.timer = time.AfterFunc(c.lifetime, func() { c.expire(token) })

	return e.repo, e.name, true
}

func (c *RepositoryCache) expire(token ident.SessionToken) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}
