package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	LoginTokenConfig
	RenderConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetJWTPublicKey() string
	GetDeveloperID() string
	GetDatabaseURL() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type LoginTokenConfig interface {
	GetLoginTokenExpiry() time.Duration
	GetLoginTokenLength() int
	GetLoginTokenCleanupInterval() time.Duration
}

type RenderConfig interface {
	GetRenderCacheTTL() time.Duration
	GetPlaceholderBaseURL() string
	GetPlaceholderTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	LoginToken
	Render
	Security
}

func New() Config {
	return mainConfig{}
}
