package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	logLevelVar       = "LOG_LEVEL"
	jwtPublicKeyVar   = "JWT_PUBLIC_KEY"
	developerIDVar    = "MY_DEVELOPER_ID"
	databaseURLVar    = "DATABASE_URL"
	redisAddrVar      = "REDIS_ADDR"
	redisPasswordVar  = "REDIS_PASSWORD"
	redisDBVar        = "REDIS_DB"
	placeholderURLVar = "PLACEHOLDER_BASE_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Device Link")
}

func (EnvVars) GetEnv() string {
	return GetEnv("ENV", "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetJWTPublicKey returns the PEM encoded key used to verify app issued JWTs.
// Deployment platforms often store the PEM on one line with literal \n
// sequences, those are turned back into newlines here.
func (EnvVars) GetJWTPublicKey() string {
	return strings.ReplaceAll(GetEnv(jwtPublicKeyVar, ""), `\n`, "\n")
}

func (EnvVars) GetDeveloperID() string {
	return GetEnv(developerIDVar, "")
}

// GetDatabaseURL returns the postgres connection string, empty means the
// in-memory repositories are used.
func (EnvVars) GetDatabaseURL() string {
	return GetEnv(databaseURLVar, "")
}

func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func (EnvVars) GetRedisPassword() string {
	return GetEnv(redisPasswordVar, "")
}

func (EnvVars) GetRedisDB() int {
	db, err := strconv.Atoi(GetEnv(redisDBVar, "0"))
	return lo.Ternary(err == nil, db, 0)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	return lo.Ternary(value != "", value, defaultValue)
}

// GetEnvDuration parses a time.Duration from envVar ("90s", "10m")
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	return lo.Ternary(err == nil && parsed > 0, parsed, defaultValue)
}
