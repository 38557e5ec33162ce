// Package auth answers "who is making this request" by trying bearer JWTs,
// one-time login tokens and browser sessions in the order each route allows.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-device-link/identity"
	"github.com/jrsteele09/go-device-link/internal/config"
	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/jrsteele09/go-device-link/logintoken"
	"github.com/jrsteele09/go-device-link/sessions"
	"github.com/rs/zerolog/log"
)

const (
	// SessionCookieName carries the opaque session id to the browser
	SessionCookieName = "session_id"
	// LoginTokenParam is the query parameter the app appends to browser URLs
	LoginTokenParam = "login-token"
)

type TokenVerifier interface {
	Verify(rawToken string) (*identity.DecodedIdentity, error)
}

type LoginTokens interface {
	Redeem(ctx context.Context, token string, checks ...logintoken.RedeemCheck) (*logintoken.Token, error)
	RevokeForOwner(ctx context.Context, ownerID string) error
}

// ClaimFunc runs against a login token identity before the token is spent.
// An error fails authentication and leaves the token redeemable.
type ClaimFunc func(ctx context.Context, id *Identity) error

type Config interface {
	config.EnvConfig
	config.SecurityConfig
}

// Service resolves identities and manages browser sessions
type Service struct {
	verifier TokenVerifier
	tokens   LoginTokens
	sessions sessions.Repo
	config   Config
	nowFunc  func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func NewService(verifier TokenVerifier, tokens LoginTokens, sessionRepo sessions.Repo, cfg Config, options ...ServiceOption) (*Service, error) {
	if verifier == nil {
		return nil, errors.New("[auth NewService] verifier is required")
	}
	if tokens == nil {
		return nil, errors.New("[auth NewService] login tokens are required")
	}
	if sessionRepo == nil {
		return nil, errors.New("[auth NewService] session repo is required")
	}
	if cfg == nil {
		return nil, errors.New("[auth NewService] config is required")
	}

	s := &Service{
		verifier: verifier,
		tokens:   tokens,
		sessions: sessionRepo,
		config:   cfg,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Authenticate tries strategies in order. A strategy whose credential is
// absent is skipped; one whose credential is present but bad ends the search
// with its error. When nothing applied, a single strategy reports its own
// missing credential and several report ErrNotAuthenticated.
func (s *Service) Authenticate(r *http.Request, strategies ...Strategy) (*Identity, error) {
	return s.AuthenticateWithClaim(r, nil, strategies...)
}

// AuthenticateWithClaim is Authenticate with claim run on a login token
// identity before the token is consumed.
func (s *Service) AuthenticateWithClaim(r *http.Request, claim ClaimFunc, strategies ...Strategy) (*Identity, error) {
	var lastSkip error
	for _, strategy := range strategies {
		id, err := s.authenticateWith(r, strategy, claim)
		if errors.Is(err, errors.ErrNoCredentials) {
			lastSkip = err
			continue
		}
		if err != nil {
			return nil, err
		}
		id.Source = strategy
		return id, nil
	}

	switch {
	case lastSkip == nil:
		return nil, errors.ErrNotAuthenticated
	case len(strategies) == 1:
		return nil, lastSkip
	default:
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "%v", lastSkip)
	}
}

func (s *Service) authenticateWith(r *http.Request, strategy Strategy, claim ClaimFunc) (*Identity, error) {
	switch strategy {
	case Bearer:
		return s.fromBearer(r)
	case LoginToken:
		return s.fromLoginToken(r, claim)
	case Session:
		return s.fromSession(r)
	default:
		return nil, errors.Wrapf(errors.ErrInternal, "unknown strategy %q", strategy)
	}
}

func (s *Service) fromBearer(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errors.Wrapf(errors.ErrNoCredentials, "no authorization header")
	}

	decoded, err := s.verifier.Verify(header)
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID:            decoded.UserID,
		DeviceID:          decoded.DeviceID,
		AuthorizedDevices: decoded.AuthorizedDeviceIDs(),
	}, nil
}

func (s *Service) fromLoginToken(r *http.Request, claim ClaimFunc) (*Identity, error) {
	raw := r.URL.Query().Get(LoginTokenParam)
	if raw == "" {
		return nil, errors.Wrapf(errors.ErrNoCredentials, "no login token")
	}

	var checks []logintoken.RedeemCheck
	if claim != nil {
		checks = append(checks, func(ctx context.Context, token *logintoken.Token) error {
			return claim(ctx, identityFromToken(token))
		})
	}

	token, err := s.tokens.Redeem(r.Context(), raw, checks...)
	if err != nil {
		return nil, err
	}
	return identityFromToken(token), nil
}

func identityFromToken(token *logintoken.Token) *Identity {
	return &Identity{
		UserID:            token.OwnerID,
		AuthorizedDevices: token.DeviceIDs,
		Source:            LoginToken,
	}
}

func (s *Service) fromSession(r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, errors.Wrapf(errors.ErrNoCredentials, "no session cookie")
	}

	session, err := s.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if !session.Valid() {
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "malformed session")
	}
	if session.IsExpired(s.nowFunc()) {
		if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
			log.Warn().Err(err).Msg("failed to delete expired session")
		}
		return nil, errors.ErrSessionExpired
	}

	return &Identity{
		UserID:            session.UserID,
		DeviceID:          session.DeviceID,
		AuthorizedDevices: []string{session.DeviceID},
	}, nil
}

// StartSession stores the user and the device they are configuring and hands
// the browser a session cookie. A previous session on the request is replaced.
func (s *Service) StartSession(w http.ResponseWriter, r *http.Request, userID, deviceID string) error {
	if userID == "" || deviceID == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "session needs a user and a device")
	}

	s.dropSession(r)

	now := s.nowFunc()
	maxAge := s.config.GetMaxSessionAge()
	sessionID := uuid.NewString()

	err := s.sessions.Upsert(r.Context(), sessionID, sessions.Session{
		UserID:    userID,
		DeviceID:  deviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(maxAge),
	})
	if err != nil {
		return errors.Wrapf(err, "[auth StartSession] storing session")
	}

	s.setSessionCookie(w, sessionID, int(maxAge.Seconds()))
	return nil
}

// EndSession deletes the caller's session, revokes any login token the user
// has not redeemed yet and expires the cookie
func (s *Service) EndSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if session, err := s.sessions.Get(r.Context(), cookie.Value); err == nil {
			if err := s.tokens.RevokeForOwner(r.Context(), session.UserID); err != nil {
				log.Warn().Err(err).Msg("failed to revoke login tokens")
			}
		}
	}
	s.dropSession(r)
	s.setSessionCookie(w, "", -1)
}

func (s *Service) dropSession(r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
		log.Warn().Err(err).Msg("failed to delete session")
	}
}

func (s *Service) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetEnv() != "DEV",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
