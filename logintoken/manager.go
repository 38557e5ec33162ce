// Package logintoken issues and redeems the one-time tokens that bridge the
// mobile app to a browser. Passing the app's JWT in a URL would leak it through
// browser history and logs; a login token is short lived and dies on first use.
package logintoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jrsteele09/go-device-link/internal/config"
	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Manager handles login token creation, redemption and cleanup
type Manager struct {
	repo    Repo
	config  config.LoginTokenConfig
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new login token manager
func NewManager(repo Repo, cfg config.LoginTokenConfig, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:    repo,
		config:  cfg,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Issue creates a login token for ownerID, invalidating any token the owner
// already holds. deviceIDs are the devices the owner is authorized for and
// travel with the token to the browser session.
func (m *Manager) Issue(ctx context.Context, ownerID string, deviceIDs []string) (string, error) {
	if ownerID == "" {
		return "", errors.Wrapf(errors.ErrInvalidRequest, "owner id is required")
	}

	tokenStr, err := generateToken(m.config.GetLoginTokenLength())
	if err != nil {
		return "", err
	}

	if err := m.repo.Replace(ctx, &Token{
		OwnerID:   ownerID,
		Token:     tokenStr,
		ExpiresAt: m.nowFunc().Add(m.config.GetLoginTokenExpiry()),
		DeviceIDs: lo.Uniq(deviceIDs),
	}); err != nil {
		return "", fmt.Errorf("failed to store login token: %w", err)
	}

	return tokenStr, nil
}

// RedeemCheck runs against a live token before it is consumed. An error
// aborts the redemption and leaves the token redeemable.
type RedeemCheck func(ctx context.Context, token *Token) error

// Redeem consumes tokenStr and returns what it was issued for. A token can be
// redeemed once; an expired token is removed and rejected. checks run before
// the token is taken, so a failed check does not spend it.
func (m *Manager) Redeem(ctx context.Context, tokenStr string, checks ...RedeemCheck) (*Token, error) {
	if tokenStr == "" {
		return nil, errors.Wrapf(errors.ErrNoCredentials, "no login token")
	}

	if len(checks) > 0 {
		token, err := m.repo.Get(ctx, tokenStr)
		if err != nil {
			return nil, err
		}
		if token.IsExpired(m.nowFunc()) {
			return nil, errors.ErrTokenExpired
		}
		for _, check := range checks {
			if err := check(ctx, token); err != nil {
				return nil, err
			}
		}
	}

	// Concurrent redeemers may all pass the checks; only one Take succeeds
	token, err := m.repo.Take(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	if token.IsExpired(m.nowFunc()) {
		return nil, errors.ErrTokenExpired
	}

	return token, nil
}

// RevokeForOwner drops any unredeemed token held by ownerID
func (m *Manager) RevokeForOwner(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return nil
	}
	return m.repo.DeleteByOwner(ctx, ownerID)
}

// DeleteExpired removes every token whose expiry has passed
func (m *Manager) DeleteExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.nowFunc())
}

// StartCleanupJob deletes expired tokens every interval until ctx is done.
// Redeem already rejects expired tokens; this only keeps storage tidy.
func (m *Manager) StartCleanupJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.config.GetLoginTokenCleanupInterval()
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := m.DeleteExpired(ctx)
				if err != nil {
					log.Err(err).Msg("login token cleanup failed")
					continue
				}
				if removed > 0 {
					log.Debug().Int64("removed", removed).Msg("expired login tokens removed")
				}
			}
		}
	}()
}

// generateToken returns length URL safe characters drawn from length random bytes
func generateToken(length int) (string, error) {
	if length <= 0 {
		length = 50
	}

	tokenBytes := make([]byte, length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(tokenBytes)[:length], nil
}
