// Package devices keeps the registry of claimed displays and enforces who may
// claim, read and modify them.
package devices

import (
	"context"
	"time"

	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Authorizer guards every device read and write with an ownership check
type Authorizer struct {
	repo    Repo
	nowFunc func() time.Time
}

type AuthorizerOption func(*Authorizer)

func WithNowFunc(now func() time.Time) AuthorizerOption {
	return func(a *Authorizer) {
		a.nowFunc = now
	}
}

func NewAuthorizer(repo Repo, options ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		repo:    repo,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// GetOrCreate returns the device, claiming it for userID on first contact.
// deviceID must be in authorized, the device ids the caller's credential
// vouches for. An existing device owned by someone else is refused.
func (a *Authorizer) GetOrCreate(ctx context.Context, deviceID, userID string, deviceType DeviceType, authorized []string) (*Device, error) {
	deviceID = NormaliseID(deviceID)
	if deviceID == "" || userID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "device id and user id are required")
	}

	authorized = lo.Map(authorized, func(id string, _ int) string { return NormaliseID(id) })
	if !lo.Contains(authorized, deviceID) {
		return nil, errors.ErrDeviceNotAuthorized
	}

	device, err := a.repo.Get(ctx, deviceID)
	if errors.Is(err, errors.ErrDeviceNotFound) {
		device, err = a.repo.CreateIfAbsent(ctx, &Device{
			DeviceID:   deviceID,
			OwnerID:    userID,
			DeviceType: deviceType,
			CreatedAt:  a.nowFunc(),
		})
		if err == nil && device.OwnerID == userID {
			log.Info().Str("device_id", deviceID).Str("user_id", userID).Msg("device claimed")
		}
	}
	if err != nil {
		return nil, err
	}

	return checkOwner(device, userID)
}

// Get returns a device the caller already owns
func (a *Authorizer) Get(ctx context.Context, deviceID, userID string) (*Device, error) {
	device, err := a.repo.Get(ctx, NormaliseID(deviceID))
	if err != nil {
		return nil, err
	}
	return checkOwner(device, userID)
}

// SetOrientation updates the orientation of a device the caller owns
func (a *Authorizer) SetOrientation(ctx context.Context, deviceID, userID string, vertical bool) (*Device, error) {
	device, err := a.Get(ctx, deviceID, userID)
	if err != nil {
		return nil, err
	}

	if err := a.repo.SetOrientation(ctx, device.DeviceID, vertical); err != nil {
		return nil, err
	}
	device.IsVerticallyOriented = vertical
	return device, nil
}

// checkOwner runs on every read. A device can only be created under an
// authorization check, so a mismatch here means an id was guessed or reused.
func checkOwner(device *Device, userID string) (*Device, error) {
	if device.OwnerID != userID {
		log.Warn().Str("device_id", device.DeviceID).Str("user_id", userID).Msg("device owner mismatch")
		return nil, errors.ErrDeviceOwnerMismatch
	}
	return device, nil
}
