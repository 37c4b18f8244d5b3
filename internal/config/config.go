// README: Config loader with env defaults for HTTP, DB, Redis, LLM, maps, auth, and logging.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type LLMConfig struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	BaseURL   string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN        string
		Migrations string // directory applied at startup; empty skips
	}
	Redis struct {
		Addr    string
		LockTTL time.Duration
	}
	LLM  LLMConfig
	Maps struct {
		APIKey string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	Quota struct {
		MonthlyTokens int
	}
	Log struct {
		Level  string
		Format string
	}
}

// providerKeyEnv names the API key variable for each completion provider.
var providerKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

// lockMargin is how much longer than one completion the session lock must live, covering
// persistence and geocoding after the reply arrives.
const lockMargin = 10 * time.Second

func Load() (Config, error) {
	var cfg Config
	var errs []string
	cfg.HTTP.Addr = envOrDefault("WAYFARER_HTTP_ADDR", ":8080")
	cfg.DB.DSN = envOrDefault("WAYFARER_DB_DSN", "")
	cfg.DB.Migrations = envOrDefault("WAYFARER_DB_MIGRATIONS", "")
	cfg.Redis.Addr = envOrDefault("WAYFARER_REDIS_ADDR", "")
	cfg.Redis.LockTTL = envOrDefaultDuration("WAYFARER_LOCK_TTL", 60*time.Second, &errs)

	cfg.LLM.Provider = strings.ToLower(envOrDefault("WAYFARER_LLM_PROVIDER", "anthropic"))
	cfg.LLM.Model = envOrDefault("WAYFARER_LLM_MODEL", "")
	cfg.LLM.MaxTokens = envOrDefaultInt("WAYFARER_LLM_MAX_TOKENS", 1000, &errs)
	cfg.LLM.Timeout = envOrDefaultDuration("WAYFARER_LLM_TIMEOUT", 30*time.Second, &errs)
	cfg.LLM.BaseURL = envOrDefault("WAYFARER_LLM_BASE_URL", "")
	if keyEnv, ok := providerKeyEnv[cfg.LLM.Provider]; ok {
		cfg.LLM.APIKey = os.Getenv(keyEnv)
		if cfg.LLM.APIKey == "" {
			errs = append(errs, "environment variable "+keyEnv+" is required")
		}
	} else {
		errs = append(errs, fmt.Sprintf("WAYFARER_LLM_PROVIDER: unknown provider %q", cfg.LLM.Provider))
	}

	if cfg.Redis.LockTTL < cfg.LLM.Timeout+lockMargin {
		errs = append(errs, fmt.Sprintf("WAYFARER_LOCK_TTL (%s) must be at least WAYFARER_LLM_TIMEOUT (%s) plus %s",
			cfg.Redis.LockTTL, cfg.LLM.Timeout, lockMargin))
	}

	cfg.Maps.APIKey = envOrDefault("WAYFARER_MAPS_API_KEY", "")
	cfg.Firebase.ProjectID = envOrDefault("WAYFARER_FIREBASE_PROJECT_ID", "")
	cfg.Firebase.CredentialsFile = envOrDefault("WAYFARER_FIREBASE_CREDENTIALS", "")
	cfg.Quota.MonthlyTokens = envOrDefaultInt("WAYFARER_MONTHLY_TOKENS", 100, &errs)
	cfg.Log.Level = envOrDefault("WAYFARER_LOG_LEVEL", "info")
	cfg.Log.Format = envOrDefault("WAYFARER_LOG_FORMAT", "json")

	if len(errs) > 0 {
		return cfg, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int, errs *[]string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Sprintf("%s: invalid non-negative integer %q", key, v))
		return def
	}
	return n
}

func envOrDefaultDuration(key string, def time.Duration, errs *[]string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
