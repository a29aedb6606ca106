package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthHeader carries the shared operator secret on every request except the
// health check.
const AuthHeader = "X-StreamX-Token"

// TokenAuthMiddleware gates requests on the shared secret. The comparison
// runs over fixed-length digests in constant time, so neither length nor
// prefix of the secret leaks through response timing.
func TokenAuthMiddleware(secret string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := sha256.Sum256([]byte(r.Header.Get(AuthHeader)))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				recordAuthRejection()
				respondUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BasicAuthMiddleware protects /metrics.
func BasicAuthMiddleware(next http.Handler, metricsUser, metricsPass string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(metricsUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(metricsPass)) == 1
		if !ok || metricsUser == "" || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body, err := json.Marshal(map[string]any{
		"code":    http.StatusUnauthorized,
		"message": "Unauthorized",
	})
	if err != nil {
		fmt.Fprint(w, `{"code": 401}`)
		return
	}
	w.Write(body)
}
