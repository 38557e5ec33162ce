package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/jrsteele09/go-device-link/logintoken"
)

var _ logintoken.Repo = (*FakeLoginTokenRepo)(nil)

// FakeLoginTokenRepo is an in-memory logintoken.Repo. It backs the server when
// no database is configured and is used throughout the tests.
type FakeLoginTokenRepo struct {
	tokens   map[string]*logintoken.Token
	ownerIDs map[string]string // owner ID to token
	lock     sync.Mutex
}

func NewFakeLoginTokenRepo() *FakeLoginTokenRepo {
	return &FakeLoginTokenRepo{
		tokens:   make(map[string]*logintoken.Token),
		ownerIDs: make(map[string]string),
	}
}

func (tr *FakeLoginTokenRepo) Replace(_ context.Context, token *logintoken.Token) error {
	if token == nil || token.OwnerID == "" || token.Token == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "token and owner are required")
	}

	tr.lock.Lock()
	defer tr.lock.Unlock()

	if existing, ok := tr.ownerIDs[token.OwnerID]; ok {
		delete(tr.tokens, existing)
	}
	tr.tokens[token.Token] = copyToken(token)
	tr.ownerIDs[token.OwnerID] = token.Token
	return nil
}

func (tr *FakeLoginTokenRepo) Get(_ context.Context, token string) (*logintoken.Token, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	t, ok := tr.tokens[token]
	if !ok {
		return nil, errors.ErrTokenNotFound
	}
	return copyToken(t), nil
}

func (tr *FakeLoginTokenRepo) Take(_ context.Context, token string) (*logintoken.Token, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	t, ok := tr.tokens[token]
	if !ok {
		return nil, errors.ErrTokenNotFound
	}
	delete(tr.tokens, token)
	delete(tr.ownerIDs, t.OwnerID)
	return t, nil
}

func (tr *FakeLoginTokenRepo) DeleteByOwner(_ context.Context, ownerID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if token, ok := tr.ownerIDs[ownerID]; ok {
		delete(tr.tokens, token)
		delete(tr.ownerIDs, ownerID)
	}
	return nil
}

func (tr *FakeLoginTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var removed int64
	for tokenStr, t := range tr.tokens {
		if t.IsExpired(before) {
			delete(tr.tokens, tokenStr)
			delete(tr.ownerIDs, t.OwnerID)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored tokens
func (tr *FakeLoginTokenRepo) Len() int {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	return len(tr.tokens)
}

func copyToken(t *logintoken.Token) *logintoken.Token {
	c := *t
	c.DeviceIDs = append([]string(nil), t.DeviceIDs...)
	return &c
}
