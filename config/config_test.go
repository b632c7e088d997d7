package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const validConfig = `
server:
  listen: ":9090"
  read_timeout: 5s
database:
  path: ":memory:"
cache:
  url: redis://localhost:6379
  default_ttl: 10m
auth:
  jwt_secret_env: TEST_JWT_SECRET
triage:
  enabled: true
  model: gemini-1.5-pro
  api_key_env: TEST_TRIAGE_KEY
`

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "surface.yaml", validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("listen = %s, want :9090", cfg.Server.Listen)
	}
	if got := cfg.Server.GetReadTimeout(); got != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", got)
	}
	if got := cfg.Cache.GetDefaultTTL(); got != 10*time.Minute {
		t.Errorf("cache ttl = %v, want 10m", got)
	}
	if cfg.Triage.Model != "gemini-1.5-pro" {
		t.Errorf("triage model = %s", cfg.Triage.Model)
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "surface.yml", validConfig)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("listen = %s, want :9090", cfg.Server.Listen)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "surface.yaml", "database:\n  path: surface.db\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("expected default listen, got %s", cfg.Server.Listen)
	}
	if got := cfg.Server.GetShutdownTimeout(); got != 15*time.Second {
		t.Errorf("shutdown timeout = %v, want 15s", got)
	}
	if len(cfg.License.GateRules()) == 0 {
		t.Error("expected default gate rules")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty listen", "server:\n  listen: \"\"\n"},
		{"empty db path", "database:\n  path: \"\"\n"},
		{"broken gate rule", "license:\n  rules:\n    - module: triage\n      expr: \"plan ==\"\n"},
		{"bad yaml", "server: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "surface.yaml", tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestJWTSecret(t *testing.T) {
	a := AuthConfig{JWTSecretEnv: "TEST_JWT_SECRET"}

	t.Setenv("TEST_JWT_SECRET", "")
	if _, err := a.JWTSecret(); err == nil {
		t.Error("expected error when env var unset")
	}

	t.Setenv("TEST_JWT_SECRET", "s3cret")
	secret, err := a.JWTSecret()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "s3cret" {
		t.Errorf("secret = %s", secret)
	}
}

func TestWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "surface.yaml", validConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloaded := make(chan *Config, 1)
	go func() {
		_ = Watch(ctx, path, slog.Default(), func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher time to arm before rewriting the file.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "surface.yaml", "server:\n  listen: \":7070\"\ndatabase:\n  path: surface.db\n")

	select {
	case cfg := <-reloaded:
		if cfg.Server.Listen != ":7070" {
			t.Errorf("reloaded listen = %s, want :7070", cfg.Server.Listen)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for reload")
	}
}
