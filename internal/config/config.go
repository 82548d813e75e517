package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4o-mini"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	SupabaseURL     string
	SupabaseKey     string
	SupabaseTimeout time.Duration
	// SupabaseJWTPrecheck rejects malformed or expired JWTs before calling
	// the auth server. Turn off for projects issuing opaque tokens.
	SupabaseJWTPrecheck bool

	OpenAIAPIKey  string
	OpenAIURL     string
	OpenAIModel   string
	OpenAITimeout time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitKey      string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	UsageDBPath    string
	MetricsEnabled bool

	// UpstreamFailureStatus is the HTTP status used when the completion
	// provider fails. 200 keeps the legacy error-in-body contract.
	UpstreamFailureStatus int
}

// MissingError lists required environment variables that are not set.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("required env vars not set: %s", strings.Join(e.Keys, ", "))
}

func Load() (*Config, error) {
	// .env is optional; env vars may already be set (e.g. in production)
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SupabaseURL:     strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseTimeout: getEnvAsDuration("SUPABASE_TIMEOUT", 15*time.Second),

		SupabaseJWTPrecheck: getEnvAsBool("SUPABASE_JWT_PRECHECK", true),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIURL:     getEnv("OPENAI_URL", defaultOpenAIURL),
		OpenAIModel:   getEnv("OPENAI_MODEL", defaultOpenAIModel),
		OpenAITimeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", 30*time.Second),
		RateLimitKey:      strings.ToLower(getEnv("RATE_LIMIT_KEY", "global")),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		UsageDBPath:    getEnv("USAGE_DB_PATH", ""),
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),

		UpstreamFailureStatus: getEnvAsInt("UPSTREAM_FAILURE_STATUS", 502),
	}

	var missing []string
	for _, req := range []struct {
		name, val string
	}{
		{"SUPABASE_URL", cfg.SupabaseURL},
		{"SUPABASE_KEY", cfg.SupabaseKey},
		{"OPENAI_API_KEY", cfg.OpenAIAPIKey},
	} {
		if req.val == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingError{Keys: missing}
	}

	if cfg.RateLimitRequests <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimitWindow)
	}
	switch cfg.RateLimitKey {
	case "global", "ip":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_KEY must be global or ip, got %q", cfg.RateLimitKey)
	}
	if cfg.UpstreamFailureStatus < 200 || cfg.UpstreamFailureStatus > 599 {
		return nil, fmt.Errorf("UPSTREAM_FAILURE_STATUS out of range: %d", cfg.UpstreamFailureStatus)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
