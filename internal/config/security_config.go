package config

import (
	"net/netip"
	"strings"
	"time"

	"github.com/samber/lo"
)

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetEnableRateLimiting() bool
	GetRateLimitPerMinute() int
	GetRateLimitBurst() int
	GetTrustedProxies() []netip.Prefix
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetMaxSessionAge() time.Duration {
	return GetEnvDuration("SESSION_MAX_AGE", 24*time.Hour)
}

func (Security) GetEnableRateLimiting() bool {
	return GetEnv("RATE_LIMITING", "on") != "off"
}

func (Security) GetRateLimitPerMinute() int {
	return 120
}

func (Security) GetRateLimitBurst() int {
	return 20
}

// GetTrustedProxies reads TRUSTED_PROXIES, a comma separated list of CIDRs or
// bare addresses whose X-Forwarded-For entries are believed. Unparseable
// entries are ignored.
func (Security) GetTrustedProxies() []netip.Prefix {
	return parsePrefixes(GetEnv("TRUSTED_PROXIES", ""))
}

func parsePrefixes(list string) []netip.Prefix {
	return lo.FilterMap(strings.Split(list, ","), func(entry string, _ int) (netip.Prefix, bool) {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			return prefix.Masked(), err == nil
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return netip.Prefix{}, false
		}
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), true
	})
}
