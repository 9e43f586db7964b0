package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an optional YAML, TOML or JSON config file.
// Environment variables override the file; the file overrides defaults.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := loadStruct(v, reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields through v. Keys are the
// dotted yaml tags ("server.port"); env and default tags are registered
// with viper before each lookup.
func loadStruct(v *viper.Viper, rv reflect.Value, prefix string) error {
	t := rv.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := rv.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		key := configKey(prefix, field)

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(v, fieldVal, key); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Primary env var wins over the alternate
		bind := []string{key, envName}
		if envAlt != "" {
			bind = append(bind, envAlt)
		}
		if err := v.BindEnv(bind...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
		if defaultVal != "" {
			v.SetDefault(key, defaultVal)
		}

		value := lookup(v, key, field.Type)
		if value == "" {
			if required {
				return fmt.Errorf("required setting %s (%s) is not set", key, envName)
			}
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

func configKey(prefix string, field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// lookup returns the resolved value of key as a string. Lists from a config
// file are joined with commas so setField handles them like env values.
func lookup(v *viper.Viper, key string, typ reflect.Type) string {
	if typ.Kind() == reflect.Slice {
		if list, ok := v.Get(key).([]any); ok {
			parts := make([]string, len(list))
			for i, p := range list {
				parts[i] = fmt.Sprint(p)
			}
			return strings.Join(parts, ",")
		}
	}
	return v.GetString(key)
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
// A missing API key is not a failure; it only disables triage.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Import validation
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.PreviewRows <= 0 {
		errs = append(errs, "IMPORT_PREVIEW_ROWS must be positive")
	}

	// Triage validation
	if c.Triage.BatchSize <= 0 {
		errs = append(errs, "TRIAGE_BATCH_SIZE must be positive")
	}
	if c.Triage.Cooldown < 0 {
		errs = append(errs, "TRIAGE_COOLDOWN must be non-negative")
	}
	if c.Triage.CallTimeout <= 0 {
		errs = append(errs, "TRIAGE_CALL_TIMEOUT must be positive")
	}
	if c.Triage.RunRetention <= 0 {
		errs = append(errs, "TRIAGE_RUN_RETENTION must be positive")
	}

	// AI validation
	validProviders := map[string]bool{"gemini": true, "google": true, "openai": true, "anthropic": true, "claude": true}
	if !validProviders[strings.ToLower(c.AI.Provider)] {
		errs = append(errs, fmt.Sprintf("AI_PROVIDER (%q) must be one of: gemini, openai, anthropic", c.AI.Provider))
	}
	if c.AI.MaxTokens <= 0 {
		errs = append(errs, "AI_MAX_TOKENS must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

const masked = "[MASKED]"

// Masked returns a copy of the config that is safe to print.
func (c *Config) Masked() Config {
	out := *c
	if out.AI.APIKey != "" {
		out.AI.APIKey = masked
	}
	out.Security.TrustedProxies = append([]string(nil), c.Security.TrustedProxies...)
	return out
}

// String returns a safe string representation of the config for logging.
// The API key is masked.
func (c *Config) String() string {
	key := "[UNSET]"
	if c.AI.HasAPIKey() {
		key = masked
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Import: {MaxFileSize: %d, PreviewRows: %d}, ",
		c.Import.MaxFileSize, c.Import.PreviewRows))
	b.WriteString(fmt.Sprintf("Triage: {BatchSize: %d, Cooldown: %s, CallTimeout: %s}, ",
		c.Triage.BatchSize, c.Triage.Cooldown, c.Triage.CallTimeout))
	b.WriteString(fmt.Sprintf("AI: {Provider: %q, APIKey: %s, Model: %q}, ",
		c.AI.Provider, key, c.AI.Model))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d, Burst: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.Burst))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
