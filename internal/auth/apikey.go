// Package auth guards mutating endpoints with a pre-shared write key.
// Read endpoints stay open; seeding metrics requires the key.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	phenology "github.com/arborlab/phenotrack/internal"
)

// WriteKeyPrefix marks well-formed write keys so a leaked key is
// recognizable in logs and secret scanners.
const WriteKeyPrefix = "phn_"

// Guard validates the bearer token on write requests against a single
// pre-shared key. An empty key disables the guard.
type Guard struct {
	key []byte
}

// NewGuard returns a Guard for the given write key.
func NewGuard(key string) *Guard {
	if key == "" {
		return &Guard{}
	}
	return &Guard{key: []byte(key)}
}

// Enabled reports whether a write key is configured.
func (g *Guard) Enabled() bool {
	return len(g.key) > 0
}

// Authenticate checks the Authorization header of r. It returns
// ErrUnauthorized for a missing, malformed, or mismatched token. The
// comparison is constant-time so timing cannot narrow the key.
func (g *Guard) Authenticate(r *http.Request) error {
	if !g.Enabled() {
		return nil
	}

	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return phenology.ErrUnauthorized
	}
	if !strings.HasPrefix(token, WriteKeyPrefix) {
		return phenology.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), g.key) != 1 {
		return phenology.ErrUnauthorized
	}
	return nil
}
