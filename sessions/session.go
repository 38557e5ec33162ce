// Package sessions holds the server side browser sessions created once a
// login token has been exchanged. The browser only carries the session id.
package sessions

import (
	"context"
	"time"
)

type Session struct {
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the session expired before now
func (s Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// Valid reports whether the session carries the identity the settings pages need
func (s Session) Valid() bool {
	return s.UserID != "" && s.DeviceID != ""
}

type Repo interface {
	Upsert(ctx context.Context, sessionID string, session Session) error
	// Get returns errors.ErrSessionNotFound for unknown or unreadable sessions
	Get(ctx context.Context, sessionID string) (Session, error)
	Delete(ctx context.Context, sessionID string) error
}
