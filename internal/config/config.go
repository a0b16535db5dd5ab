package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings for the courier server.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Auth      *AuthConfig      `json:"auth"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig configures connection keepalive and write buffering.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// AuthConfig configures token signing and verification. JWTSecret has no
// default; the server refuses to start without one.
type AuthConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// DefaultConfig returns the baseline configuration. The JWT secret must be
// supplied via environment or config file.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./courier.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Auth: &AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Auth == nil || c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (set COURIER_JWT_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

// LoadFromEnv returns the defaults overridden by COURIER_* environment
// variables. Unparseable values fall back to the default silently.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("COURIER_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("COURIER_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if d := os.Getenv("COURIER_HTTP_READ_TIMEOUT"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.HTTP.ReadTimeout = v
		}
	}
	if d := os.Getenv("COURIER_HTTP_WRITE_TIMEOUT"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.HTTP.WriteTimeout = v
		}
	}
	if path := os.Getenv("COURIER_DATABASE_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if d := os.Getenv("COURIER_DATABASE_TIMEOUT"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.Database.Timeout = v
		}
	}
	if d := os.Getenv("COURIER_WEBSOCKET_PING_INTERVAL"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.WebSocket.PingInterval = v
		}
	}
	if d := os.Getenv("COURIER_WEBSOCKET_READ_TIMEOUT"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.WebSocket.ReadTimeout = v
		}
	}
	if d := os.Getenv("COURIER_WEBSOCKET_WRITE_TIMEOUT"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.WebSocket.WriteTimeout = v
		}
	}
	if size := os.Getenv("COURIER_WEBSOCKET_BUFFER_SIZE"); size != "" {
		if v, err := strconv.Atoi(size); err == nil {
			cfg.WebSocket.BufferSize = v
		}
	}
	if secret := os.Getenv("COURIER_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if d := os.Getenv("COURIER_TOKEN_TTL"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.Auth.TokenTTL = v
		}
	}

	return cfg
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	Auth *struct {
		JWTSecret string `json:"jwt_secret"`
		TokenTTL  string `json:"token_ttl"`
	} `json:"auth"`
}

// LoadFromFile loads a JSON config file on top of the environment-derived
// configuration, so file values take precedence over env values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := LoadFromEnv()

	if file.Database != nil {
		if file.Database.Path != "" {
			cfg.Database.Path = file.Database.Path
		}
		applyDuration(&cfg.Database.Timeout, file.Database.Timeout)
	}
	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			cfg.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			cfg.HTTP.Port = file.HTTP.Port
		}
		applyDuration(&cfg.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		applyDuration(&cfg.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}
	if file.WebSocket != nil {
		if file.WebSocket.BufferSize > 0 {
			cfg.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
		applyDuration(&cfg.WebSocket.PingInterval, file.WebSocket.PingInterval)
		applyDuration(&cfg.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		applyDuration(&cfg.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
	}
	if file.Auth != nil {
		if file.Auth.JWTSecret != "" {
			cfg.Auth.JWTSecret = file.Auth.JWTSecret
		}
		applyDuration(&cfg.Auth.TokenTTL, file.Auth.TokenTTL)
	}

	return cfg, nil
}

// Load resolves configuration with precedence: file > environment > defaults.
// A missing or unreadable file falls back to env/defaults.
func Load(path string) *Config {
	if path != "" {
		if cfg, err := LoadFromFile(path); err == nil {
			return cfg
		}
	}
	return LoadFromEnv()
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if v, err := time.ParseDuration(raw); err == nil {
		*dst = v
	}
}
