package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Server.ShutdownTimeout.Std() != 30*time.Second {
		t.Errorf("default shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  read_timeout: 5s
database:
  url: postgres://localhost:5432/payroll?sslmode=disable
logging:
  level: debug
cache:
  ttl: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout.Std() != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	// values the file omits keep their defaults
	if cfg.Server.WriteTimeout.Std() != 15*time.Second {
		t.Errorf("write timeout = %v, want default 15s", cfg.Server.WriteTimeout)
	}
	if cfg.Database.URL != "postgres://localhost:5432/payroll?sslmode=disable" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Cache.TTL.Std() != time.Minute {
		t.Errorf("cache ttl = %v, want 1m", cfg.Cache.TTL)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
logging:
  level: debug
`)
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://env:5432/payroll")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %q, want env override 7070", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://env:5432/payroll" {
		t.Errorf("database url = %q, want env override", cfg.Database.URL)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, want env override warn", cfg.Logging.Level)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() of a missing file should fall back to defaults, got %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want default", cfg.Server.Port)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: loud\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject an unknown log level")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "server:\n  read_timeout: fast\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject a duration without a unit")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject malformed YAML")
	}
}
