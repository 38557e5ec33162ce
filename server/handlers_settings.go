package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-device-link/auth"
	"github.com/jrsteele09/go-device-link/devices"
	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/rs/zerolog/log"
)

type settingsPage struct {
	AppName    string
	DeviceID   string
	Vertical   bool
	SaveAction string
	LogoutPath string
}

// LoginHandler redeems the login token the app opened the browser with,
// claims the device and starts a browser session.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claim, err := newDeviceClaim(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		id, err := s.services.Auth.AuthenticateWithClaim(r, s.claimDevice(claim), auth.LoginToken)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := s.services.Auth.StartSession(w, r, id.UserID, claim.device.DeviceID); err != nil {
			writeError(w, r, err)
			return
		}
		http.Redirect(w, r, RouteSettings, http.StatusSeeOther)
	}
}

// SettingsHandler shows the orientation form. A login token in the URL is
// exchanged for a session first so reloads do not need the spent token.
func (s *Server) SettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var claim *deviceClaim
		if r.URL.Query().Get(auth.LoginTokenParam) != "" {
			var err error
			if claim, err = newDeviceClaim(r); err != nil {
				writeError(w, r, err)
				return
			}
		}

		id, err := s.services.Auth.AuthenticateWithClaim(r, s.claimDevice(claim), auth.LoginToken, auth.Session)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if id.Source == auth.LoginToken {
			if err := s.services.Auth.StartSession(w, r, id.UserID, claim.device.DeviceID); err != nil {
				writeError(w, r, err)
				return
			}
			http.Redirect(w, r, RouteSettings, http.StatusSeeOther)
			return
		}

		device, err := s.services.Devices.Get(r.Context(), id.DeviceID, id.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = s.settings.Execute(w, settingsPage{
			AppName:    s.config.GetAppName(),
			DeviceID:   device.DeviceID,
			Vertical:   device.IsVerticallyOriented,
			SaveAction: RouteSettingsSave,
			LogoutPath: RouteLogout,
		})
		if err != nil {
			log.Err(err).Msg("failed to render settings page")
		}
	}
}

func (s *Server) SettingsSaveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.services.Auth.Authenticate(r, auth.Session)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := r.ParseForm(); err != nil {
			writeError(w, r, errors.Wrapf(errors.ErrInvalidRequest, "malformed form"))
			return
		}

		var vertical bool
		switch r.PostForm.Get(ParamOrientation) {
		case OrientationVertical:
			vertical = true
		case OrientationHorizontal:
		default:
			writeError(w, r, errors.Wrapf(errors.ErrInvalidRequest, "%s must be %s or %s", ParamOrientation, OrientationVertical, OrientationHorizontal))
			return
		}

		if _, err := s.services.Devices.SetOrientation(r.Context(), id.DeviceID, id.UserID, vertical); err != nil {
			writeError(w, r, err)
			return
		}

		log.Info().Str("device_id", id.DeviceID).Bool("vertical", vertical).Msg("device orientation saved")
		http.Redirect(w, r, RouteSettings, http.StatusSeeOther)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.services.Auth.EndSession(w, r)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Signed out. You can close this window.\n"))
	}
}

// deviceClaim is the device a browser login asks for. It is parsed from the
// query before the login token is touched.
type deviceClaim struct {
	deviceType  devices.DeviceType
	requestedID string
	device      *devices.Device
}

func newDeviceClaim(r *http.Request) (*deviceClaim, error) {
	deviceType, err := devices.ParseDeviceType(r.URL.Query().Get(ParamDeviceType))
	if err != nil {
		return nil, err
	}
	return &deviceClaim{
		deviceType:  deviceType,
		requestedID: r.URL.Query().Get(ParamDeviceID),
	}, nil
}

// claimDevice registers or verifies the claimed device for the token owner.
// It runs before the token is spent so a rejected claim can be retried.
func (s *Server) claimDevice(c *deviceClaim) auth.ClaimFunc {
	if c == nil {
		return nil
	}
	return func(ctx context.Context, id *auth.Identity) error {
		deviceID := id.ResolveDeviceID(c.requestedID)
		if deviceID == "" {
			return errors.Wrapf(errors.ErrInvalidRequest, "%s is required", ParamDeviceID)
		}

		device, err := s.services.Devices.GetOrCreate(ctx, deviceID, id.UserID, c.deviceType, id.AuthorizedDevices)
		if err != nil {
			return err
		}
		c.device = device
		return nil
	}
}
