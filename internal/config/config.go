package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type API struct {
	BaseURL string `yaml:"base_url" env:"BIGBRAIN_API_URL"`
	Timeout string `yaml:"timeout" env:"BIGBRAIN_API_TIMEOUT"`
}

type Machine struct {
	Tick           string `yaml:"tick" env:"BIGBRAIN_TICK"`
	PollEvery      int    `yaml:"poll_every" env:"BIGBRAIN_POLL_EVERY"`
	DriftTolerance string `yaml:"drift_tolerance" env:"BIGBRAIN_DRIFT_TOLERANCE"`
}

type Store struct {
	Backend string `yaml:"backend" env:"BIGBRAIN_STORE"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
}

type Postgres struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type Server struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

type Log struct {
	Level   string `yaml:"level" env:"LOG_LEVEL"`
	Console bool   `yaml:"console" env:"LOG_CONSOLE"`
}

type Config struct {
	API      API      `yaml:"api"`
	Machine  Machine  `yaml:"machine"`
	Store    Store    `yaml:"store"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		API:     API{BaseURL: "http://localhost:5005", Timeout: "10s"},
		Machine: Machine{Tick: "1s", PollEvery: 2, DriftTolerance: "2s"},
		Store:   Store{Backend: BackendMemory},
		Redis:   Redis{Prefix: "bigbrain:"},
		Server:  Server{Addr: ":8080"},
		Log:     Log{Level: "info", Console: true},
	}
}

// Load reads YAML config from path on top of Default, then applies a .env
// file and environment overrides. A missing file is only an error when
// required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis store selected but redis.addr is empty")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres store selected but postgres.url is empty")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	return nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
