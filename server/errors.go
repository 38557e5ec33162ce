package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// classify maps an error to a status code and a short error kind. Internal
// failures get a generic description so causes never reach the client.
func classify(err error) (int, errorResponse) {
	switch {
	case errors.IsAuthFailure(err):
		return http.StatusUnauthorized, errorResponse{"unauthorized", err.Error()}
	case errors.IsForbidden(err):
		return http.StatusForbidden, errorResponse{"forbidden", err.Error()}
	case errors.IsBadRequest(err):
		return http.StatusBadRequest, errorResponse{"invalid_request", err.Error()}
	case errors.Is(err, errors.ErrUpstream):
		return http.StatusBadGateway, errorResponse{"upstream_error", "image provider unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{"server_error", "internal server error"}
	}
}

// writeError answers JSON to API callers and plain text to browser pages
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}

	if isAPIRoute(r.URL.Path) {
		writeJSON(w, status, body)
		return
	}
	http.Error(w, http.StatusText(status)+": "+body.ErrorDescription, status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, RouteGetLoginToken) || strings.HasPrefix(path, RouteRender)
}
