package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kapu/gamepulse-dashboard/internal/constants"
)

type Config struct {
	Server      ServerConfig
	RAWG        RAWGConfig
	Twitch      TwitchConfig
	Redis       RedisConfig
	Aggregation AggregationConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type RAWGConfig struct {
	BaseURL string
	APIKeys []string
}

type TwitchConfig struct {
	ClientID          string
	ClientSecret      string
	TokenURL          string
	HelixBaseURL      string
	RequestsPerSecond float64
	Burst             int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type AggregationConfig struct {
	ResolveTimeout time.Duration
	MaxConcurrency int
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "5000"),
			AllowedOrigins: parseCommaSeparated(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
			ReadTimeout:    time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)) * time.Second,
			WriteTimeout:   time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		RAWG: RAWGConfig{
			BaseURL: getEnv("RAWG_BASE_URL", constants.APIConfig.RAWGBaseURL),
			APIKeys: collectAPIKeys("RAWG_API_KEY"),
		},
		Twitch: TwitchConfig{
			ClientID:          getEnv("TWITCH_CLIENT_ID", ""),
			ClientSecret:      getEnv("TWITCH_CLIENT_SECRET", ""),
			TokenURL:          getEnv("TWITCH_TOKEN_URL", constants.APIConfig.TwitchTokenURL),
			HelixBaseURL:      getEnv("TWITCH_HELIX_BASE_URL", constants.APIConfig.TwitchHelixBaseURL),
			RequestsPerSecond: getEnvFloat("TWITCH_REQUESTS_PER_SECOND", 10),
			Burst:             getEnvInt("TWITCH_BURST", 20),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Aggregation: AggregationConfig{
			ResolveTimeout: time.Duration(getEnvInt("AGGREGATION_RESOLVE_TIMEOUT_MS", int(constants.AggregationConfig.ResolveTimeout.Milliseconds()))) * time.Millisecond,
			MaxConcurrency: getEnvInt("AGGREGATION_MAX_CONCURRENCY", constants.AggregationConfig.MaxConcurrency),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if len(c.RAWG.APIKeys) == 0 {
		return fmt.Errorf("at least one RAWG_API_KEY is required")
	}
	if c.Twitch.ClientID == "" {
		return fmt.Errorf("TWITCH_CLIENT_ID is required")
	}
	if c.Twitch.ClientSecret == "" {
		return fmt.Errorf("TWITCH_CLIENT_SECRET is required")
	}
	if c.Twitch.RequestsPerSecond <= 0 {
		return fmt.Errorf("TWITCH_REQUESTS_PER_SECOND must be positive")
	}
	if c.Aggregation.ResolveTimeout <= 0 {
		return fmt.Errorf("AGGREGATION_RESOLVE_TIMEOUT_MS must be positive")
	}
	if c.Aggregation.MaxConcurrency <= 0 {
		return fmt.Errorf("AGGREGATION_MAX_CONCURRENCY must be positive")
	}
	return nil
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// collectAPIKeys reads PREFIX and then PREFIX_1..PREFIX_5, skipping blanks
// and duplicates.
func collectAPIKeys(prefix string) []string {
	keys := make([]string, 0)
	seen := make(map[string]struct{})

	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if _, dup := seen[value]; dup {
			return
		}
		seen[value] = struct{}{}
		keys = append(keys, value)
	}

	add(os.Getenv(prefix))
	for i := 1; i <= 5; i++ {
		add(os.Getenv(fmt.Sprintf("%s_%d", prefix, i)))
	}
	return keys
}
