package constants

import "time"

var CacheTTL = struct {
	CatalogGames     time.Duration
	CatalogPlatforms time.Duration
	LiveViewers      time.Duration
}{
	CatalogGames:     10 * time.Minute, // catalog "most added" ordering moves slowly
	CatalogPlatforms: 30 * time.Minute,
	LiveViewers:      1 * time.Minute, // viewer counts go stale fast
}

var CatalogQuery = struct {
	GameOrdering     string
	PlatformOrdering string
	TrendingPageSize int
	GenrePageSize    int
	PlatformPageSize int
}{
	GameOrdering:     "-added",
	PlatformOrdering: "-games_count",
	TrendingPageSize: 5,
	GenrePageSize:    50,
	PlatformPageSize: 8,
}

var AggregationConfig = struct {
	ResolveTimeout time.Duration
	MaxConcurrency int
}{
	ResolveTimeout: 5 * time.Second,
	MaxConcurrency: 5,
}

var RetryConfig = struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	Jitter           time.Duration
	MaxRateLimitWait time.Duration
}{
	MaxAttempts:      3,
	BaseDelay:        500 * time.Millisecond,
	Jitter:           250 * time.Millisecond,
	MaxRateLimitWait: 5 * time.Second, // cap on a Ratelimit-Reset wait
}

var CircuitBreakerConfig = struct {
	FailureThreshold      int
	HelixFailureThreshold int
	ResetTimeout          time.Duration
	RateLimitTimeout      time.Duration
}{
	// consecutive failed calls before OPEN
	FailureThreshold: 3,
	// one trending batch of per-game lookups must never trip Helix on its own
	HelixFailureThreshold: 2 * CatalogQuery.TrendingPageSize,
	// wait before a HALF_OPEN trial request
	ResetTimeout: 30 * time.Second,
	// used when every key got 429
	RateLimitTimeout: 1 * time.Minute,
}

var APIConfig = struct {
	RAWGBaseURL          string
	RAWGTimeout          time.Duration
	TwitchTokenURL       string
	TwitchHelixBaseURL   string
	TwitchTimeout        time.Duration
	HelixStreamsPageSize int
}{
	RAWGBaseURL:          "https://api.rawg.io/api",
	RAWGTimeout:          10 * time.Second,
	TwitchTokenURL:       "https://id.twitch.tv/oauth2/token",
	TwitchHelixBaseURL:   "https://api.twitch.tv/helix",
	TwitchTimeout:        10 * time.Second,
	HelixStreamsPageSize: 100,
}

var ServerConfig = struct {
	ShutdownTimeout time.Duration
	BuildTimeout    time.Duration
}{
	ShutdownTimeout: 10 * time.Second,
	BuildTimeout:    30 * time.Second,
}
