package session

import (
	"sync"
	"time"

	"github.com/TilBlechschmidt/restic-dl/internal/ident"
	"github.com/TilBlechschmidt/restic-dl/internal/passwd"
)

// SiteCache gates site-wide browsing behind a single shared password and
// tracks logged-in sessions with a fixed-duration lifetime set once at
// login — unlike RepositoryCache, membership checks never extend it.
type SiteCache struct {
	verifier string
	lifetime time.Duration

	mu      sync.Mutex
	entries map[ident.SessionToken]*time.Timer
}

// NewSiteCache configures a cache gated by verifier with the given
// fixed session lifetime.
func NewSiteCache(verifier string, lifetime time.Duration) *SiteCache {
	return &SiteCache{
		verifier: verifier,
		lifetime: lifetime,
		entries:  make(map[ident.SessionToken]*time.Timer),
	}
}

// Insert verifies password and, on success, allocates and stores a fresh
// session token that expires after the configured lifetime.
func (c *SiteCache) Insert(password string) (ident.SessionToken, error) {
	if !passwd.Verify(c.verifier, password) {
		return ident.SessionToken{}, ErrForbidden
	}

	token, err := ident.NewSessionToken()
	if err != nil {
		return ident.SessionToken{}, err
	}

	c.mu.Lock()
	c.entries[token] = time.AfterFunc(c.lifetime, func() { c.remove(token) })
	c.mu.Unlock()

	return token, nil
}

// Contains is a pure membership test — it does not extend the session's
// lifetime. Site sessions are fixed-duration from login.
func (c *SiteCache) Contains(token ident.SessionToken) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[token]
	return ok
}

func (c *SiteCache) remove(token ident.SessionToken) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}
