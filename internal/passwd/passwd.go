// Package passwd implements the Argon2id verifier string shared by the site
// password, every per-repository password, and the `hash` CLI subcommand.
// The same encode/verify logic backs all three so a verifier string produced
// by one is always readable by the others.
package passwd

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// timeCost is the number of Argon2id iterations.
	timeCost = 2
	// memoryCost is the memory parameter in KiB (64 MiB) — deliberately
	// slow and memory-hard so offline guessing is expensive.
	memoryCost = 64 * 1024
	// parallelism is the number of parallel Argon2id lanes.
	parallelism = 2
	// keyLen is the derived key length in bytes.
	keyLen = 32
	// saltLen is the random salt length in bytes.
	saltLen = 16
)

// Hash derives a verifier string for password. The string encodes the salt
// and derived key as "saltHex:hashHex" — opaque to every caller except this
// package.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("passwd: generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, timeCost, memoryCost, parallelism, keyLen)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// Verify reports whether password matches the verifier string in constant
// time. An invalid or malformed verifier always fails rather than erroring
// — there is nothing a caller can do differently given a bad verifier
// except treat the password as rejected.
func Verify(verifier, password string) bool {
	saltHex, keyHex, ok := splitVerifier(verifier)
	if !ok {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(keyHex)
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memoryCost, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func splitVerifier(s string) (salt, key string, ok bool) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}
