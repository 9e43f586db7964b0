// Package config provides centralized configuration management for the application.
// Values resolve from environment variables, then an optional config file,
// then struct-tag defaults. Everything is validated on startup to fail fast
// on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Import   ImportConfig    `yaml:"import"`
	Triage   TriageConfig    `yaml:"triage"`
	AI       AIConfig        `yaml:"ai"`
	Rate     RateLimitConfig `yaml:"rate"`
	Security SecurityConfig  `yaml:"security"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown,
	// including the active triage run (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// ImportConfig holds clash report import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted report size in bytes (default: 10MB)
	MaxFileSize int64 `yaml:"max_file_size" env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// PreviewRows is how many parsed rows a preview returns (default: 5)
	PreviewRows int `yaml:"preview_rows" env:"IMPORT_PREVIEW_ROWS" default:"5"`
}

// TriageConfig holds batch orchestration settings.
type TriageConfig struct {
	// BatchSize is the number of clashes per classification call (default: 10)
	BatchSize int `yaml:"batch_size" env:"TRIAGE_BATCH_SIZE" default:"10"`

	// Cooldown is the pause between batches; 0 disables it (default: 500ms)
	Cooldown time.Duration `yaml:"cooldown" env:"TRIAGE_COOLDOWN" default:"500ms"`

	// CallTimeout bounds a single classification call (default: 2m)
	CallTimeout time.Duration `yaml:"call_timeout" env:"TRIAGE_CALL_TIMEOUT" default:"2m"`

	// RunRetention is how long a finished run can still be queried (default: 30m)
	RunRetention time.Duration `yaml:"run_retention" env:"TRIAGE_RUN_RETENTION" default:"30m"`
}

// AIConfig holds classification provider settings.
type AIConfig struct {
	// Provider selects the classifier: gemini, openai or anthropic (default: gemini)
	Provider string `yaml:"provider" env:"AI_PROVIDER" default:"gemini"`

	// APIKey is the provider credential. Without it triage is disabled.
	APIKey string `yaml:"api_key" env:"API_KEY" envAlt:"GEMINI_API_KEY"`

	// Model overrides the provider's default model
	Model string `yaml:"model" env:"AI_MODEL"`

	// BaseURL overrides the provider endpoint
	BaseURL string `yaml:"base_url" env:"AI_BASE_URL"`

	// MaxTokens caps the response length (default: 4096)
	MaxTokens int `yaml:"max_tokens" env:"AI_MAX_TOKENS" default:"4096"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the sustained rate per IP (default: 100)
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// Burst is how many requests an IP may make at once (default: 20)
	Burst int `yaml:"burst" env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `yaml:"enable_csp" env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasAPIKey reports whether a classifier credential is configured.
func (c *AIConfig) HasAPIKey() bool {
	return c.APIKey != ""
}
