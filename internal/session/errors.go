// Package session implements the two session caches: per-repository
// (sliding expiry, password-gated per repository) and site-wide (fixed
// expiry, a single shared password). Both follow the same
// cancel-and-reschedule pattern for their expiry timers.
package session

import "errors"

var (
	// ErrNotFound is returned when a repository name has no configured
	// location.
	ErrNotFound = errors.New("session: repository not found")

	// ErrForbidden is returned when a submitted password does not match
	// the configured verifier.
	ErrForbidden = errors.New("session: incorrect password")
)
