package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigRequiresSecret(t *testing.T) {
	cfg := DefaultConfig()

	// Every other default is sane; only the secret blocks startup.
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation to fail without a JWT secret")
	}

	cfg.Auth.JWTSecret = "test-secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config with secret set, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero database timeout", func(c *Config) { c.Database.Timeout = 0 }},
		{"port too low", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Auth.JWTSecret = "test-secret"
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("COURIER_HTTP_HOST", "127.0.0.1")
	t.Setenv("COURIER_HTTP_PORT", "9090")
	t.Setenv("COURIER_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("COURIER_WEBSOCKET_PING_INTERVAL", "5s")
	t.Setenv("COURIER_JWT_SECRET", "env-secret")
	t.Setenv("COURIER_TOKEN_TTL", "1h")

	cfg := LoadFromEnv()

	if cfg.HTTP.Host != "127.0.0.1" {
		t.Errorf("expected host override, got %s", cfg.HTTP.Host)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("expected database path override, got %s", cfg.Database.Path)
	}
	if cfg.WebSocket.PingInterval != 5*time.Second {
		t.Errorf("expected 5s ping interval, got %v", cfg.WebSocket.PingInterval)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected env secret, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("expected 1h token TTL, got %v", cfg.Auth.TokenTTL)
	}
}

func TestLoadFromEnvIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("COURIER_HTTP_PORT", "not-a-number")
	t.Setenv("COURIER_TOKEN_TTL", "soon")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.HTTP.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("expected default TTL, got %v", cfg.Auth.TokenTTL)
	}
}

func TestLoadFromFileTakesPrecedenceOverEnv(t *testing.T) {
	t.Setenv("COURIER_HTTP_PORT", "9090")
	t.Setenv("COURIER_JWT_SECRET", "env-secret")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 3000, "read_timeout": "15s"},
		"auth": {"jwt_secret": "file-secret", "token_ttl": "2h"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.HTTP.Port != 3000 {
		t.Errorf("expected file port to win, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeout != 15*time.Second {
		t.Errorf("expected 15s read timeout, got %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("expected file secret to win, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("expected 2h token TTL, got %v", cfg.Auth.TokenTTL)
	}
	// Values the file does not mention keep their env/default resolution.
	if cfg.HTTP.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %s", cfg.HTTP.Host)
	}
}

func TestLoadFromFileRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestLoadFallsBackWhenFileMissing(t *testing.T) {
	t.Setenv("COURIER_JWT_SECRET", "env-secret")

	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Error("expected fallback to environment configuration")
	}

	cfg = Load("")
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Error("expected environment configuration without a file path")
	}
}
