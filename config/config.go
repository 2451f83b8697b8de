package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDBPath          = "clipshare.db"
	DefaultFlushInterval   = 5 * time.Second
	DefaultSweepInterval   = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogDir          = "logs"
)

// Config holds runtime configuration. Everything comes from the environment.
type Config struct {
	DBPath          string
	RedisURL        string // empty disables Redis: bigcache is used and no events are exchanged
	RedisPassword   string
	RedisDB         int
	FlushInterval   time.Duration
	SweepInterval   time.Duration
	ShutdownTimeout time.Duration
	LogDir          string
	SentryDSN       string
}

// FromEnv loads configuration from environment variables, falling back to defaults.
// A local ".env" file is read first; it never overrides variables already set.
func FromEnv() Config {
	loadDotEnv(".env")

	return Config{
		DBPath:          getenvDefault("DB_PATH", DefaultDBPath),
		RedisURL:        os.Getenv("REDIS_URL"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getenvIntDefault("REDIS_DB", 0),
		FlushInterval:   getenvDurationDefault("HIT_FLUSH_INTERVAL", DefaultFlushInterval),
		SweepInterval:   getenvDurationDefault("SWEEP_INTERVAL", DefaultSweepInterval),
		ShutdownTimeout: getenvDurationDefault("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		LogDir:          getenvDefault("LOG_DIR", DefaultLogDir),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
	}
}

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getenvDurationDefault rejects unparsable and non-positive values.
func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// loadDotEnv sets KEY=VALUE pairs from path, skipping blank lines and # comments.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
}
