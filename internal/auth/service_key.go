package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// SyncKeyHeader carries the shared secret of the sync layer
const SyncKeyHeader = "X-Sync-Key"

// RequireServiceKey admits only callers presenting the configured sync key.
// An empty key closes the route entirely.
func RequireServiceKey(key string) func(next http.Handler) http.Handler {
	want := sha256.Sum256([]byte(key))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				pkghttp.WriteUnauthorized(w, "service enrollment is disabled")
				return
			}

			presented := r.Header.Get(SyncKeyHeader)
			if presented == "" {
				pkghttp.WriteUnauthorized(w, "missing service key")
				return
			}

			// Hash both sides so the comparison does not leak the key length
			got := sha256.Sum256([]byte(presented))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				pkghttp.WriteUnauthorized(w, "invalid service key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
