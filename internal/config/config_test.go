package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://backend:5005
store:
  backend: redis
redis:
  addr: localhost:6379
machine:
  poll_every: 3
`)
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "http://backend:5005" || cfg.Store.Backend != BackendRedis || cfg.Machine.PollEvery != 3 {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.Machine.Tick != "1s" || cfg.Redis.Prefix != "bigbrain:" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://file:5005\n")
	t.Setenv("BIGBRAIN_API_URL", "http://env:5005")
	t.Setenv("BIGBRAIN_POLL_EVERY", "4")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "http://env:5005" || cfg.Machine.PollEvery != 4 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := Load(missing, true); err == nil {
		t.Fatalf("expected error for required missing file")
	}
	if _, err := Load(missing, false); err != nil {
		t.Fatalf("optional missing file should fall back to defaults: %v", err)
	}
}

func TestValidateStoreBackend(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = BackendPostgres
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected postgres without url to fail")
	}
	cfg.Store.Backend = "etcd"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown backend to fail")
	}
}

func TestDuration(t *testing.T) {
	if d := Duration("", time.Second); d != time.Second {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := Duration("250ms", time.Second); d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", d)
	}
	if d := Duration("soon", time.Second); d != time.Second {
		t.Fatalf("expected fallback for garbage, got %v", d)
	}
}
