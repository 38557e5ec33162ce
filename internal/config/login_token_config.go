package config

import "time"

type LoginToken struct{}

var _ LoginTokenConfig = LoginToken{}

func (LoginToken) GetLoginTokenExpiry() time.Duration {
	return GetEnvDuration("LOGIN_TOKEN_EXPIRY", 10*time.Minute)
}

func (LoginToken) GetLoginTokenLength() int {
	return 50
}

func (LoginToken) GetLoginTokenCleanupInterval() time.Duration {
	return GetEnvDuration("LOGIN_TOKEN_CLEANUP_INTERVAL", 5*time.Minute)
}
