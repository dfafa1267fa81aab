package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/jcmexdev/mebel-storefront/internal/pkg/interceptors/constants"
)

// APIKeyAuth guards the admin routes. The key comes from X-API-Key or a
// "Bearer" Authorization header. With no keys configured every request is refused.
func APIKeyAuth(keys []string, unauthorized http.HandlerFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(constants.HeaderXAPIKey)
			if apiKey == "" {
				apiKey, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if apiKey == "" || !validKey(keys, apiKey) {
				unauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validKey(keys []string, candidate string) bool {
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(candidate)) == 1 {
			return true
		}
	}
	return false
}
