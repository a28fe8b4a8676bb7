// Package config reads server settings from the environment, after loading
// a .env file if one is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type StatsBackend string

const (
	StatsNone     StatsBackend = "none"
	StatsPostgres StatsBackend = "postgres"
	StatsRedis    StatsBackend = "redis"
)

type Config struct {
	Addr            string
	MinPlayers      int
	ReconnectGrace  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
	AllowedOrigins  []string
	JWTSecret       string
	StatsBackend    StatsBackend
	DatabaseURL     string
	RedisURL        string
	ArtworkBaseURL  string
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		MinPlayers:      1,
		ReconnectGrace:  15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
		StatsBackend:    StatsNone,
		ArtworkBaseURL:  "/static/cards",
	}
}

// Load reads .env (missing is fine) and then the process environment.
// It reports whether a .env file was loaded.
func Load() (Config, bool, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromLookup(os.LookupEnv)
	return cfg, loaded, err
}

// FromLookup builds a Config from lookup, reporting every bad value at once.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs error

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("ADDR"); ok {
		cfg.Addr = v
	} else if v, ok := get("PORT"); ok {
		cfg.Addr = ":" + v
	}

	if v, ok := get("MIN_PLAYERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs = multierr.Append(errs, fmt.Errorf("MIN_PLAYERS: want a positive integer, got %q", v))
		} else {
			cfg.MinPlayers = n
		}
	}

	if v, ok := get("RECONNECT_GRACE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = multierr.Append(errs, fmt.Errorf("RECONNECT_GRACE: want a non-negative duration, got %q", v))
		} else {
			cfg.ReconnectGrace = d
		}
	}

	if v, ok := get("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT: want a positive duration, got %q", v))
		} else {
			cfg.ShutdownTimeout = d
		}
	}

	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		switch f := strings.ToLower(v); f {
		case "json", "console":
			cfg.LogFormat = f
		default:
			errs = multierr.Append(errs, fmt.Errorf("LOG_FORMAT: want json or console, got %q", v))
		}
	}

	if v, ok := get("ALLOWED_ORIGINS"); ok {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	cfg.JWTSecret, _ = get("JWT_SECRET")
	cfg.DatabaseURL, _ = get("DATABASE_URL")
	cfg.RedisURL, _ = get("REDIS_URL")
	if v, ok := get("ARTWORK_BASE_URL"); ok {
		cfg.ArtworkBaseURL = v
	}

	if v, ok := get("STATS_BACKEND"); ok {
		cfg.StatsBackend = StatsBackend(strings.ToLower(v))
	}
	switch cfg.StatsBackend {
	case StatsNone:
	case StatsPostgres:
		if cfg.DatabaseURL == "" {
			errs = multierr.Append(errs, errors.New("DATABASE_URL is required when STATS_BACKEND=postgres"))
		}
	case StatsRedis:
		if cfg.RedisURL == "" {
			errs = multierr.Append(errs, errors.New("REDIS_URL is required when STATS_BACKEND=redis"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("STATS_BACKEND: want none, postgres or redis, got %q", cfg.StatsBackend))
	}

	return cfg, errs
}
