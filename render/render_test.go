package render_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-device-link/devices"
	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/jrsteele09/go-device-link/render"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newPlaceholderServer(t *testing.T, calls *int32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCacheKey(t *testing.T) {
	require.Equal(t, "image_gallery_cache_key_dev-1_880_528", render.CacheKey("dev-1", 880, 528))
}

func TestPlaceholderClient_Fetch(t *testing.T) {
	var calls int32
	srv := newPlaceholderServer(t, &calls, http.StatusOK)

	client := render.NewPlaceholderClient(srv.URL+"/", time.Second)
	data, err := client.Fetch(context.Background(), 880, 528)
	require.NoError(t, err)
	require.Equal(t, "/880/528/", string(data))
}

func TestPlaceholderClient_UpstreamFailure(t *testing.T) {
	var calls int32
	srv := newPlaceholderServer(t, &calls, http.StatusServiceUnavailable)

	_, err := render.NewPlaceholderClient(srv.URL, time.Second).Fetch(context.Background(), 10, 10)
	require.ErrorIs(t, err, errors.ErrUpstream)

	_, err = render.NewPlaceholderClient("http://127.0.0.1:1", time.Second).Fetch(context.Background(), 10, 10)
	require.ErrorIs(t, err, errors.ErrUpstream)
}

func TestPlaceholderClient_OversizedImageRejected(t *testing.T) {
	var calls int32
	srv := newPlaceholderServer(t, &calls, http.StatusOK)
	ctx := context.Background()

	// the body is the 9 byte request path
	data, err := render.NewPlaceholderClient(srv.URL, time.Second, render.WithMaxImageBytes(9)).Fetch(ctx, 880, 528)
	require.NoError(t, err)
	require.Equal(t, "/880/528/", string(data))

	limited := render.NewPlaceholderClient(srv.URL, time.Second, render.WithMaxImageBytes(8))
	_, err = limited.Fetch(ctx, 880, 528)
	require.ErrorIs(t, err, errors.ErrUpstream)
	require.Contains(t, err.Error(), "exceeds 8 bytes")

	svc := render.NewService(render.NewMemoryCache(), limited, time.Hour)
	device := &devices.Device{DeviceID: "dev-1"}
	for i := 0; i < 2; i++ {
		_, err = svc.RenderDevice(ctx, device, devices.DeviceTypeBlackAndWhite880x528)
		require.ErrorIs(t, err, errors.ErrUpstream)
	}
	require.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestService_RenderDevice_CachesForTTL(t *testing.T) {
	var calls int32
	srv := newPlaceholderServer(t, &calls, http.StatusOK)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := render.NewService(
		render.NewMemoryCache(render.WithCacheNowFunc(clock.Now)),
		render.NewPlaceholderClient(srv.URL, time.Second),
		30*time.Minute,
	)
	device := &devices.Device{DeviceID: "dev-1", OwnerID: "user-1"}
	ctx := context.Background()

	first, err := svc.RenderDevice(ctx, device, devices.DeviceTypeBlackAndWhite880x528)
	require.NoError(t, err)
	second, err := svc.RenderDevice(ctx, device, devices.DeviceTypeBlackAndWhite880x528)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	clock.now = clock.now.Add(29 * time.Minute)
	_, err = svc.RenderDevice(ctx, device, devices.DeviceTypeBlackAndWhite880x528)
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = svc.RenderDevice(ctx, device, devices.DeviceTypeBlackAndWhite880x528)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestService_RenderDevice_OrientationChangeMisses(t *testing.T) {
	var calls int32
	srv := newPlaceholderServer(t, &calls, http.StatusOK)
	svc := render.NewService(render.NewMemoryCache(), render.NewPlaceholderClient(srv.URL, time.Second), time.Hour)
	device := &devices.Device{DeviceID: "dev-1"}
	ctx := context.Background()

	landscape, err := svc.RenderDevice(ctx, device, devices.DeviceTypeBlackAndWhite800x480)
	require.NoError(t, err)
	require.Equal(t, "/800/480/", string(landscape))

	device.IsVerticallyOriented = true
	portrait, err := svc.RenderDevice(ctx, device, devices.DeviceTypeBlackAndWhite800x480)
	require.NoError(t, err)
	require.Equal(t, "/480/800/", string(portrait))
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestService_UpstreamErrorNotCached(t *testing.T) {
	svc := render.NewService(render.NewMemoryCache(), nil, time.Hour)
	ctx := context.Background()

	_, err := svc.GetOrFetch(ctx, "k", func(context.Context) ([]byte, error) {
		return nil, errors.ErrUpstream
	})
	require.ErrorIs(t, err, errors.ErrUpstream)

	data, err := svc.GetOrFetch(ctx, "k", func(context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", string(data))
}

func TestService_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := render.NewService(render.NewRedisCache(client), nil, 30*time.Minute)
	ctx := context.Background()
	var fetches int

	fetch := func(context.Context) ([]byte, error) {
		fetches++
		return []byte("image"), nil
	}

	_, err := svc.GetOrFetch(ctx, "key", fetch)
	require.NoError(t, err)
	_, err = svc.GetOrFetch(ctx, "key", fetch)
	require.NoError(t, err)
	require.Equal(t, 1, fetches)
	require.Equal(t, 30*time.Minute, mr.TTL("key"))

	mr.FastForward(31 * time.Minute)
	_, err = svc.GetOrFetch(ctx, "key", fetch)
	require.NoError(t, err)
	require.Equal(t, 2, fetches)
}

func TestService_CacheUnavailableFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	svc := render.NewService(render.NewRedisCache(client), nil, time.Minute)
	data, err := svc.GetOrFetch(context.Background(), "key", func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "fresh", string(data))
}
