// Package auth holds API key identity data for the admin surface.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no API key matches the given hash.
var ErrNotFound = errors.New("api key not found")

// APIKey holds the identity and permission data for a validated API key.
// KeyHash is the hex HMAC-SHA256 of the raw key under the server pepper.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}
