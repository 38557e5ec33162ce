package server

import (
	"net/http"

	"github.com/jrsteele09/go-device-link/auth"
	"github.com/jrsteele09/go-device-link/devices"
	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/rs/zerolog/log"
)

type loginTokenResponse struct {
	LoginToken string `json:"login_token"`
}

// GetLoginTokenHandler swaps the app's JWT for a one-time login token the app
// can put in a browser URL.
func (s *Server) GetLoginTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.services.Auth.Authenticate(r, auth.Bearer)
		if err != nil {
			writeError(w, r, err)
			return
		}

		token, err := s.services.Tokens.Issue(r.Context(), id.UserID, id.AuthorizedDevices)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, loginTokenResponse{LoginToken: token})
	}
}

// RenderHandler returns the placeholder image for the caller's device,
// claiming the device on first contact.
func (s *Server) RenderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.services.Auth.Authenticate(r, auth.Bearer)
		if err != nil {
			writeError(w, r, err)
			return
		}

		deviceType, err := devices.ParseDeviceType(r.URL.Query().Get(ParamDeviceType))
		if err != nil {
			writeError(w, r, err)
			return
		}

		deviceID := id.ResolveDeviceID(r.URL.Query().Get(ParamDeviceID))
		if deviceID == "" {
			writeError(w, r, errors.Wrapf(errors.ErrInvalidRequest, "%s is required", ParamDeviceID))
			return
		}

		device, err := s.services.Devices.GetOrCreate(r.Context(), deviceID, id.UserID, deviceType, id.AuthorizedDevices)
		if err != nil {
			writeError(w, r, err)
			return
		}

		image, err := s.services.Renders.RenderDevice(r.Context(), device, deviceType)
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(image); err != nil {
			log.Err(err).Msg("failed to write render")
		}
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
