// Package pgrepo stores login tokens in PostgreSQL
package pgrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/jrsteele09/go-device-link/logintoken"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ logintoken.Repo = (*Repo)(nil)

type Repo struct {
	db DBTX
}

func New(db DBTX) *Repo {
	return &Repo{db: db}
}

// Replace upserts on the unique owner_id so issuing is a single atomic
// statement; two concurrent issues for one owner leave exactly one row.
func (r *Repo) Replace(ctx context.Context, token *logintoken.Token) error {
	deviceIDs := token.DeviceIDs
	if deviceIDs == nil {
		deviceIDs = []string{}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO login_tokens (owner_id, token, expiration_time, device_ids)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE SET
			token = EXCLUDED.token,
			expiration_time = EXCLUDED.expiration_time,
			device_ids = EXCLUDED.device_ids`,
		token.OwnerID, token.Token, token.ExpiresAt, deviceIDs,
	)
	if err != nil {
		return fmt.Errorf("[pgrepo Replace] %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, token string) (*logintoken.Token, error) {
	var t logintoken.Token
	err := r.db.QueryRow(ctx, `
		SELECT owner_id, token, expiration_time, device_ids
		FROM login_tokens
		WHERE token = $1`,
		token,
	).Scan(&t.OwnerID, &t.Token, &t.ExpiresAt, &t.DeviceIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[pgrepo Get] %w", err)
	}
	return &t, nil
}

// Take deletes and returns the token in one statement, so a token cannot be
// redeemed twice by concurrent requests.
func (r *Repo) Take(ctx context.Context, token string) (*logintoken.Token, error) {
	var t logintoken.Token
	err := r.db.QueryRow(ctx, `
		DELETE FROM login_tokens
		WHERE token = $1
		RETURNING owner_id, token, expiration_time, device_ids`,
		token,
	).Scan(&t.OwnerID, &t.Token, &t.ExpiresAt, &t.DeviceIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[pgrepo Take] %w", err)
	}
	return &t, nil
}

func (r *Repo) DeleteByOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM login_tokens WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("[pgrepo DeleteByOwner] %w", err)
	}
	return nil
}

func (r *Repo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM login_tokens WHERE expiration_time < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("[pgrepo DeleteExpired] %w", err)
	}
	return tag.RowsAffected(), nil
}
