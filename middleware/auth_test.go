package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenAuthMiddleware(t *testing.T) {
	gate := TokenAuthMiddleware("s3cret")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := gate(next)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"valid token", "s3cret", http.StatusOK},
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "guess", http.StatusUnauthorized},
		{"prefix of secret", "s3cre", http.StatusUnauthorized},
		{"secret plus suffix", "s3cretx", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/info/2", nil)
			if tt.token != "" {
				req.Header.Set(AuthHeader, tt.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"code":401,"message":"Unauthorized"}`, rr.Body.String())
			}
		})
	}
}

func TestBasicAuthMiddlewareProtectsMetrics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := BasicAuthMiddleware(next, "ops", "hunter2")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("ops", "hunter2")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Unconfigured credentials must fail closed, not open.
	open := BasicAuthMiddleware(next, "", "")
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("", "")
	rr = httptest.NewRecorder()
	open.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
