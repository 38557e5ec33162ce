package config_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/jrsteele09/go-device-link/internal/config"
	"github.com/stretchr/testify/require"
)

func TestEnvVars_GetJWTPublicKey(t *testing.T) {
	t.Setenv("JWT_PUBLIC_KEY", `-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----`)
	require.Equal(t, "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----", config.EnvVars{}.GetJWTPublicKey())
}

func TestEnvVars_GetPort(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("PORT", "")
		require.Equal(t, ":8080", config.EnvVars{}.GetPort())
	})

	t.Run("bare number", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		require.Equal(t, ":9000", config.EnvVars{}.GetPort())
	})

	t.Run("already prefixed", func(t *testing.T) {
		t.Setenv("PORT", ":9001")
		require.Equal(t, ":9001", config.EnvVars{}.GetPort())
	})
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("RENDER_CACHE_TTL", "")
	require.Equal(t, 30*time.Minute, config.Render{}.GetRenderCacheTTL())

	t.Setenv("RENDER_CACHE_TTL", "5m")
	require.Equal(t, 5*time.Minute, config.Render{}.GetRenderCacheTTL())

	t.Setenv("RENDER_CACHE_TTL", "nonsense")
	require.Equal(t, 30*time.Minute, config.Render{}.GetRenderCacheTTL())
}

func TestCors_GetAllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	origins := config.Cors{}.GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("https://a.example"))
	require.True(t, origins.IsAllowedOrigin("https://b.example"))
	require.False(t, origins.IsAllowedOrigin(""))
}

func TestSecurity_GetTrustedProxies(t *testing.T) {
	t.Run("none by default", func(t *testing.T) {
		t.Setenv("TRUSTED_PROXIES", "")
		require.Empty(t, config.Security{}.GetTrustedProxies())
	})

	t.Run("cidrs and bare addresses", func(t *testing.T) {
		t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7 ,bogus,::1")
		require.Equal(t, []netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("192.168.1.7/32"),
			netip.MustParsePrefix("::1/128"),
		}, config.Security{}.GetTrustedProxies())
	})
}
