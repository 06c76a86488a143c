package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/merchkit/storefront/internal/domain/auth"
	"github.com/merchkit/storefront/pkg/httpmiddleware"
)

// RequireAPIKey returns a middleware that authenticates requests via the
// X-API-Key header. The key is hashed with HMAC-SHA256 under the server
// pepper and looked up in the repository.
func RequireAPIKey(apikeys auth.Repository, pepper []byte) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing API key")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			if _, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash)); err != nil {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HashAPIKey computes the hex HMAC-SHA256 of key under pepper. Shared with
// the seed tool so stored hashes match what RequireAPIKey computes.
func HashAPIKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
