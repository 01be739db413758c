package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veluxhome/lumen-core/internal/cloud"
	"github.com/veluxhome/lumen-core/internal/coordinator"
)

// Error is the JSON error body every failing endpoint returns.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Machine-readable error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"

	// ErrCodeCloudAuth means the upstream cloud rejected our API key.
	// Not to be confused with unauthorised, which is about the caller's
	// own token.
	ErrCodeCloudAuth   = "cloud_auth_required"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeCloudError  = "cloud_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // the client may have gone away mid-response
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeCloudError translates a cloud failure into a response. Upstream
// faults are 502 so callers can tell them from faults in this server;
// quota exhaustion alone maps to 429.
func writeCloudError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cloud.ErrAuthFailed), errors.Is(err, coordinator.ErrAuthRequired):
		writeError(w, http.StatusBadGateway, ErrCodeCloudAuth, "cloud rejected the API key; reauthentication required")
	case errors.Is(err, cloud.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "cloud request quota exhausted")
	default:
		writeError(w, http.StatusBadGateway, ErrCodeCloudError, err.Error())
	}
}
