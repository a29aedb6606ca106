package handlers

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamxAPI/middleware"
)

// NewRouter wires the full HTTP surface. The health check at "/" is the only
// route outside the auth gate; /metrics sits behind its own basic auth.
func NewRouter(h *CustomerHandler, authToken, metricsUser, metricsPass string) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.HandleFunc("/", h.Index).Methods("GET")
	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler(), metricsUser, metricsPass)).Methods("GET")

	protected := r.PathPrefix("/").Subrouter()
	protected.Use(middleware.TokenAuthMiddleware(authToken))

	protected.HandleFunc("/info/{userid}", h.GetInfo).Methods("GET")
	protected.HandleFunc("/active/{key}", h.CheckActive).Methods("GET")
	protected.HandleFunc("/activate", h.Activate).Methods("POST")
	protected.HandleFunc("/invalidate", h.Invalidate).Methods("POST")
	protected.HandleFunc("/delete", h.Delete).Methods("POST")
	protected.HandleFunc("/whitelist/add", h.WhitelistAdd).Methods("POST")
	protected.HandleFunc("/whitelist/delete", h.WhitelistRemove).Methods("POST")

	return r
}
