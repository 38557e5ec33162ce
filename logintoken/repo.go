package logintoken

import (
	"context"
	"time"
)

// Token is a single use credential handed from the mobile app to a browser.
// The browser only ever sees the Token string; the rest is server side.
type Token struct {
	OwnerID   string    // User the token was issued to
	Token     string    // Random URL safe string (sent to client)
	ExpiresAt time.Time // Absolute expiry
	DeviceIDs []string  // Devices the owner was authorized for when the token was issued
}

// IsExpired reports whether the token expired before now
func (t *Token) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// Repo stores login tokens. Implementations must keep at most one token per
// owner and must make Replace and Take atomic.
type Repo interface {
	// Replace deletes every token held by token.OwnerID and stores token
	Replace(ctx context.Context, token *Token) error

	// Get returns the token without consuming it. Returns
	// errors.ErrTokenNotFound when no such token exists.
	Get(ctx context.Context, token string) (*Token, error)

	// Take returns the token and deletes it in the same step. Returns
	// errors.ErrTokenNotFound when no such token exists.
	Take(ctx context.Context, token string) (*Token, error)

	// DeleteByOwner removes any token held by ownerID
	DeleteByOwner(ctx context.Context, ownerID string) error

	// DeleteExpired removes tokens that expired before the given time
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
