// Package revocation implements the credential denylist. Tokens are never
// stored verbatim: entries are keyed by the base64url SHA-256 digest of the
// token, and expire when the token would have.
package revocation

import (
	"crypto/sha256"
	"encoding/base64"
)

// DefaultPrefix namespaces denylist keys
const DefaultPrefix = "bl:"

// Fingerprint returns the digest used as the denylist key for token
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
