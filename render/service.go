package render

import (
	"context"
	"time"

	"github.com/jrsteele09/go-device-link/devices"
	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/rs/zerolog/log"
)

type FetchFunc func(ctx context.Context) ([]byte, error)

// Fetcher is satisfied by PlaceholderClient
type Fetcher interface {
	Fetch(ctx context.Context, width, height int) ([]byte, error)
}

type Service struct {
	cache   Cache
	fetcher Fetcher
	ttl     time.Duration
}

func NewService(cache Cache, fetcher Fetcher, ttl time.Duration) *Service {
	return &Service{
		cache:   cache,
		fetcher: fetcher,
		ttl:     ttl,
	}
}

// GetOrFetch returns the cached bytes for key or calls fetch and caches the
// result. Cache failures never fail the request.
func (s *Service) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	data, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		return data, nil
	case !errors.Is(err, errors.ErrNotFound):
		log.Warn().Err(err).Str("key", key).Msg("render cache read failed, treating as miss")
	}

	data, err = fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("render cache write failed")
	}
	return data, nil
}

// RenderDevice returns the placeholder image for a device at the size of
// deviceType in the device's current orientation.
func (s *Service) RenderDevice(ctx context.Context, device *devices.Device, deviceType devices.DeviceType) ([]byte, error) {
	dims, err := device.Dimensions(deviceType)
	if err != nil {
		return nil, err
	}
	key := CacheKey(device.DeviceID, dims.Width, dims.Height)

	return s.GetOrFetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		return s.fetcher.Fetch(ctx, dims.Width, dims.Height)
	})
}
