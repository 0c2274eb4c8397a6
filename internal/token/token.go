// Package token mints and resolves the opaque link tokens customers use to
// reach their verification. Postgres remains the source of truth; the cache
// only short-circuits the hot lookup on first paint of the guided flow.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Generate returns a 128-bit URL-safe opaque token. Tokens carry no structure;
// possession is the only credential a customer has.
func Generate() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
