package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamxAPI/internal/store"
	"streamxAPI/middleware"
	"streamxAPI/services"
)

const testToken = "test-secret"

func newTestRouter() *mux.Router {
	st := store.NewMemoryStore()
	svc := services.NewCustomerService(st)
	h := NewCustomerHandler(svc, 3*time.Second)
	return NewRouter(h, testToken, "metrics", "metrics")
}

// do fires a request through the full middleware chain. Each test passes its
// own client IP so the per-IP rate limiter never couples tests.
func do(t *testing.T, router *mux.Router, method, path, token, ip string, body string) (int, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Forwarded-For", ip)
	if token != "" {
		req.Header.Set(middleware.AuthHeader, token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var payload map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			payload = nil
		}
	}
	return rr.Code, payload
}

func TestHealthCheckNeedsNoAuth(t *testing.T) {
	router := newTestRouter()

	code, body := do(t, router, http.MethodGet, "/", "", "10.0.0.1", "")
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, body)
	assert.Equal(t, float64(200), body["code"])
	assert.Equal(t, "OK", body["message"])
}

func TestAuthGate(t *testing.T) {
	router := newTestRouter()

	code, body := do(t, router, http.MethodGet, "/info/2", "", "10.0.0.2", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, body)
	assert.Equal(t, float64(401), body["code"])

	code, _ = do(t, router, http.MethodGet, "/info/2", "wrong-token", "10.0.0.2", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, router, http.MethodPost, "/activate", "wrong-token", "10.0.0.2", `{"userid":2,"username":"T","expires":31}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestActivateAcceptsStringAndNumericIDs(t *testing.T) {
	router := newTestRouter()

	code, body := do(t, router, http.MethodPost, "/activate", testToken, "10.0.0.3",
		`{"userid":"5","username":"Quoted","expires":"31"}`)
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, body)
	assert.Equal(t, true, body["created"])

	code, body = do(t, router, http.MethodPost, "/activate", testToken, "10.0.0.3",
		`{"userid":5,"username":"Quoted","expires":31}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["created"])
	assert.Equal(t, float64(62), body["new_quota"])
}

func TestActivateRejectsBadRequests(t *testing.T) {
	router := newTestRouter()

	code, _ := do(t, router, http.MethodPost, "/activate", testToken, "10.0.0.4", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodPost, "/activate", testToken, "10.0.0.4", `{"userid":"abc","username":"T","expires":31}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodPost, "/activate", testToken, "10.0.0.4", `{"userid":2,"expires":31}`)
	assert.Equal(t, http.StatusBadRequest, code, "username required on first activation")

	code, _ = do(t, router, http.MethodPost, "/activate", testToken, "10.0.0.4", `{"userid":20000000000,"username":"T","expires":31}`)
	assert.Equal(t, http.StatusBadRequest, code, "userid out of range")
}

func TestUnknownKeyReportsInactive(t *testing.T) {
	router := newTestRouter()

	code, body := do(t, router, http.MethodGet, "/active/sx-nothere", testToken, "10.0.0.5", "")
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, body)
	assert.Equal(t, false, body["active"])
}

// Full operator flow: activate, renew, invalidate, whitelist, delete, all
// through the real middleware chain.
func TestEndToEndScenario(t *testing.T) {
	router := newTestRouter()
	ip := "10.0.0.6"

	code, body := do(t, router, http.MethodPost, "/activate", testToken, ip,
		`{"userid":2,"username":"T","expires":31}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["created"])
	firstKey, ok := body["apikey"].(string)
	require.True(t, ok)
	require.NotEmpty(t, firstKey)

	code, body = do(t, router, http.MethodGet, "/info/2", testToken, ip, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "T", body["username"])
	assert.Equal(t, float64(31), body["quota"])
	require.Len(t, body["apikeys"], 1)

	code, body = do(t, router, http.MethodPost, "/invalidate", testToken, ip,
		`{"userid":2,"reason":"abuse"}`)
	require.Equal(t, http.StatusOK, code)
	secondKey, ok := body["apikey"].(string)
	require.True(t, ok)
	require.NotEqual(t, firstKey, secondKey)

	code, body = do(t, router, http.MethodGet, "/info/2", testToken, ip, "")
	require.Equal(t, http.StatusOK, code)
	keys, ok := body["apikeys"].([]any)
	require.True(t, ok)
	require.Len(t, keys, 2)
	live := 0
	for _, k := range keys {
		if k.(map[string]any)["reason"] == nil {
			live++
		}
	}
	assert.Equal(t, 1, live)

	code, body = do(t, router, http.MethodGet, "/active/"+firstKey, testToken, ip, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["active"])

	code, body = do(t, router, http.MethodGet, "/active/"+secondKey, testToken, ip, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["active"])

	for _, payload := range []string{
		`{"userid":2,"gameid":69420}`,
		`{"userid":2,"gameid":10001}`,
	} {
		code, _ = do(t, router, http.MethodPost, "/whitelist/add", testToken, ip, payload)
		require.Equal(t, http.StatusOK, code)
	}
	code, _ = do(t, router, http.MethodPost, "/whitelist/delete", testToken, ip, `{"userid":2,"gameid":10001}`)
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, router, http.MethodGet, "/info/2", testToken, ip, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{float64(69420)}, body["whitelist"])

	code, _ = do(t, router, http.MethodPost, "/delete", testToken, ip, `{"userid":2}`)
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, router, http.MethodGet, "/info/2", testToken, ip, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, float64(404), body["code"])

	code, _ = do(t, router, http.MethodPost, "/delete", testToken, ip, `{"userid":2}`)
	assert.Equal(t, http.StatusNotFound, code, "repeat delete is not success")
}

func TestWhitelistUnknownUser(t *testing.T) {
	router := newTestRouter()

	code, _ := do(t, router, http.MethodPost, "/whitelist/add", testToken, "10.0.0.7", `{"userid":99,"gameid":1}`)
	assert.Equal(t, http.StatusNotFound, code)
}
