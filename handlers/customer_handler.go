package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"streamxAPI/internal/customer"
	"streamxAPI/internal/store"
	"streamxAPI/services"
)

type CustomerHandler struct {
	customerService *services.CustomerService
	storeTimeout    time.Duration
}

func NewCustomerHandler(customerService *services.CustomerService, storeTimeout time.Duration) *CustomerHandler {
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	return &CustomerHandler{
		customerService: customerService,
		storeTimeout:    storeTimeout,
	}
}

// flexInt accepts a JSON number or a numeric string. Operator tooling has
// sent userids both ways depending on the endpoint.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type activateRequest struct {
	UserID   flexInt `json:"userid"`
	Username string  `json:"username"`
	Expires  flexInt `json:"expires"`
}

type invalidateRequest struct {
	UserID flexInt `json:"userid"`
	Reason string  `json:"reason"`
}

type userRequest struct {
	UserID flexInt `json:"userid"`
}

type whitelistRequest struct {
	UserID flexInt `json:"userid"`
	GameID flexInt `json:"gameid"`
}

func (h *CustomerHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.customerService.Ping(ctx); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (h *CustomerHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.storeTimeout)
	defer cancel()

	userID, err := strconv.ParseInt(mux.Vars(r)["userid"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid userid")
		return
	}

	rec, err := h.customerService.GetInfo(ctx, userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, recordPayload(rec))
}

func (h *CustomerHandler) CheckActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.storeTimeout)
	defer cancel()

	active, err := h.customerService.CheckKeyActive(ctx, mux.Vars(r)["key"])
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"active": active})
}

func (h *CustomerHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.storeTimeout)
	defer cancel()

	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.customerService.Activate(ctx, int64(req.UserID), req.Username, int64(req.Expires))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if res.Created {
		respondWithJSON(w, http.StatusOK, map[string]any{
			"created": true,
			"apikey":  res.APIKey,
			"quota":   res.Quota,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"created":   false,
		"old_quota": res.OldQuota,
		"new_quota": res.NewQuota,
	})
}

func (h *CustomerHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.storeTimeout)
	defer cancel()

	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newKey, err := h.customerService.Invalidate(ctx, int64(req.UserID), req.Reason)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"apikey": newKey})
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.storeTimeout)
	defer cancel()

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.customerService.Delete(ctx, int64(req.UserID)); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (h *CustomerHandler) WhitelistAdd(w http.ResponseWriter, r *http.Request) {
	h.whitelist(w, r, h.customerService.WhitelistAdd)
}

func (h *CustomerHandler) WhitelistRemove(w http.ResponseWriter, r *http.Request) {
	h.whitelist(w, r, h.customerService.WhitelistRemove)
}

func (h *CustomerHandler) whitelist(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int64) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.storeTimeout)
	defer cancel()

	var req whitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := op(ctx, int64(req.UserID), int64(req.GameID)); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (h *CustomerHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidIdentifier), errors.Is(err, services.ErrMissingArgument):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "customer not found")
	case errors.Is(err, store.ErrUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func recordPayload(rec *customer.Record) map[string]any {
	whitelist := rec.Whitelist
	if whitelist == nil {
		whitelist = []int64{}
	}
	apikeys := rec.APIKeys
	if apikeys == nil {
		apikeys = []customer.APIKey{}
	}
	return map[string]any{
		"userid":     rec.UserID,
		"username":   rec.Username,
		"quota":      rec.Quota,
		"apikeys":    apikeys,
		"whitelist":  whitelist,
		"last_usage": rec.LastUsage,
	}
}

// Every response carries a numeric "code" mirroring the HTTP status, which
// the operator CLI prints verbatim.
func respondWithJSON(w http.ResponseWriter, code int, payload map[string]any) {
	body := map[string]any{"code": code}
	for k, v := range payload {
		body[k] = v
	}
	response, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]any{"message": message})
}
