package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string `yaml:"listenAddr"`

	JWTSecret string `yaml:"jwtSecret"`

	RedisURL        string `yaml:"redisUrl"`
	DatabaseURL     string `yaml:"databaseUrl"`
	AccountsBaseURL string `yaml:"accountsBaseUrl"`

	AllowedOrigins []string `yaml:"allowedOrigins"`

	TickIntervalSec int `yaml:"tickIntervalSec"`
	EloK            int `yaml:"eloK"`

	PairBaseRange     int `yaml:"pairBaseRange"`
	PairWidenStep     int `yaml:"pairWidenStep"`
	PairWidenEverySec int `yaml:"pairWidenEverySec"`

	SnapshotTTLSec int `yaml:"snapshotTtlSec"`
}

func (c *AppConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSec) * time.Second
}

func (c *AppConfig) PairWidenEvery() time.Duration {
	return time.Duration(c.PairWidenEverySec) * time.Second
}

func (c *AppConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSec) * time.Second
}

// Load builds the runtime configuration: defaults first, then an optional
// YAML file named by CONFIG_FILE, then environment overrides on top.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:        ":8080",
		TickIntervalSec:   5,
		EloK:              32,
		PairBaseRange:     100,
		PairWidenStep:     50,
		PairWidenEverySec: 10,
		SnapshotTTLSec:    24 * 3600,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ACCOUNTS_BASE_URL")); v != "" {
		cfg.AccountsBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	setPositive(&cfg.TickIntervalSec, "TICK_INTERVAL_SEC")
	setPositive(&cfg.EloK, "ELO_K")
	setPositive(&cfg.PairBaseRange, "PAIR_BASE_RANGE")
	setPositive(&cfg.PairWidenStep, "PAIR_WIDEN_STEP")
	setPositive(&cfg.PairWidenEverySec, "PAIR_WIDEN_EVERY_SEC")
	setPositive(&cfg.SnapshotTTLSec, "SNAPSHOT_TTL_SEC")

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

func setPositive(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
