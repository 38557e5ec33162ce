package config

import "time"

type Render struct{}

var _ RenderConfig = Render{}

func (Render) GetRenderCacheTTL() time.Duration {
	return GetEnvDuration("RENDER_CACHE_TTL", 30*time.Minute)
}

func (Render) GetPlaceholderBaseURL() string {
	return GetEnv(placeholderURLVar, "https://picsum.photos")
}

func (Render) GetPlaceholderTimeout() time.Duration {
	return GetEnvDuration("PLACEHOLDER_TIMEOUT", 10*time.Second)
}
