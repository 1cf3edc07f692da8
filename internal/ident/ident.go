// Package ident implements the two opaque identifier types used throughout
// the gateway: session tokens and restore IDs. Both are 256-bit values
// rendered as lowercase hex; neither carries structure beyond its bytes.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

const byteLen = 32

// SessionToken is a uniformly random 256-bit value used to authorize a site
// or repository session. Tokens are unguessable and compared byte-for-byte;
// the server never derives meaning from a token's contents.
type SessionToken [byteLen]byte

// NewSessionToken draws a fresh token from a cryptographic RNG.
func NewSessionToken() (SessionToken, error) {
	var t SessionToken
	if _, err := rand.Read(t[:]); err != nil {
		return SessionToken{}, fmt.Errorf("ident: failed to generate session token: %w", err)
	}
	return t, nil
}

// String renders the token as 64 lowercase hex characters.
func (t SessionToken) String() string {
	return hex.EncodeToString(t[:])
}

// ParseSessionToken decodes a hex string into a SessionToken, rejecting
// non-hex input and input of the wrong length.
func ParseSessionToken(s string) (SessionToken, error) {
	if len(s) != byteLen*2 {
		return SessionToken{}, fmt.Errorf("ident: session token must be %d hex characters, got %d", byteLen*2, len(s))
	}
	var t SessionToken
	if _, err := hex.Decode(t[:], []byte(s)); err != nil {
		return SessionToken{}, fmt.Errorf("ident: invalid session token encoding: %w", err)
	}
	return t, nil
}

// RestoreID is a BLAKE3 hash of a (repository, snapshot, path) triple. It is
// the deduplication key: identical restore requests from any session always
// collapse onto the same ID.
type RestoreID [byteLen]byte

// NewRestoreID derives the deterministic ID for a restore request. repoID and
// snapshotID are the backend's opaque content-addressed identifiers; path is
// the raw source path being restored. The result depends only on the raw
// bytes of the three inputs, concatenated in order.
func NewRestoreID(repoID, snapshotID, path string) RestoreID {
	h := blake3.New()
	h.Write([]byte(repoID))
	h.Write([]byte(snapshotID))
	h.Write([]byte(path))

	var id RestoreID
	copy(id[:], h.Sum(nil))
	return id
}

// String renders the restore ID as 64 lowercase hex characters.
func (id RestoreID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseRestoreID decodes a hex string into a RestoreID, rejecting non-hex
// input and input of the wrong length.
func ParseRestoreID(s string) (RestoreID, error) {
	if len(s) != byteLen*2 {
		return RestoreID{}, fmt.Errorf("ident: restore id must be %d hex characters, got %d", byteLen*2, len(s))
	}
	var id RestoreID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return RestoreID{}, fmt.Errorf("ident: invalid restore id encoding: %w", err)
	}
	return id, nil
}
