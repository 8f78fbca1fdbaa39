// Package cryptox holds the hashing applied to bearer secrets before they
// are stored.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken returns the hex SHA-256 digest of token. Refresh tokens and
// magic-link tokens are persisted and looked up by this digest, so a leaked
// table does not hand out live credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenMatches reports whether token hashes to digest, in constant time.
func TokenMatches(token, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(digest)) == 1
}
