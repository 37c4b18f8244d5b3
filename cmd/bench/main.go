// README: Smoke/bench runner for a live wayfarer API; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case statusPass:
			pass++
		case statusFail:
			fail++
		case statusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL        string
	UID            string
	DSN            string
	RedisAddr      string
	MigrationsDir  string
	ApplyMigration bool
	LiveLLM        bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("WAYFARER_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.UID, "uid", envOrDefault("WAYFARER_BENCH_UID", "bench-user"), "caller uid sent as X-User-ID")
	flag.StringVar(&cfg.DSN, "dsn", envOrDefault("WAYFARER_DB_DSN", ""), "Postgres DSN (empty skips DB checks)")
	flag.StringVar(&cfg.RedisAddr, "redis", envOrDefault("WAYFARER_REDIS_ADDR", ""), "Redis address (empty skips Redis checks)")
	flag.StringVar(&cfg.MigrationsDir, "migrations", envOrDefault("WAYFARER_BENCH_MIGRATIONS", "migrations"), "migrations directory")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", envOrDefaultBool("WAYFARER_BENCH_APPLY_MIGRATION", false), "apply migrations before tests")
	flag.BoolVar(&cfg.LiveLLM, "live-llm", envOrDefaultBool("WAYFARER_BENCH_LIVE_LLM", false), "run cases that spend real completions")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("WAYFARER_BENCH_STRICT", false), "fail on skipped cases")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("WAYFARER_BENCH_TIMEOUT", 2*time.Minute), "total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("WAYFARER_BENCH_CONCURRENCY", 10), "concurrency for race and perf cases")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("WAYFARER_BENCH_DURATION", 5*time.Second), "duration for perf cases")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
