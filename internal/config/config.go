// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. ShutdownTimeout bounds how long
// shutdown waits for requests and in-flight sends before the database closes.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	Gemini          GeminiConfig
	Chat            ChatConfig
	Auth            AuthConfig
}

// GeminiConfig selects and configures the completion backend.
type GeminiConfig struct {
	APIKey  string
	Model   string
	UseMock bool
}

// ChatConfig bounds chat input.
type ChatConfig struct {
	MaxImageBytes   int64
	SendRatePerMin  int
	CleanupInterval time.Duration
}

// AuthConfig controls magic-link authentication.
type AuthConfig struct {
	MagicLinkTTL time.Duration
	SessionTTL   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/tonechat.db"),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 2*time.Minute),
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			UseMock: getEnvBool("USE_MOCK_LLM", false),
		},
		Chat: ChatConfig{
			MaxImageBytes:   int64(getEnvInt("MAX_IMAGE_BYTES", 5<<20)),
			SendRatePerMin:  getEnvInt("SEND_RATE_LIMIT", 20),
			CleanupInterval: 5 * time.Minute,
		},
		Auth: AuthConfig{
			MagicLinkTTL: getEnvDuration("MAGIC_LINK_TTL", 15*time.Minute),
			SessionTTL:   getEnvDuration("AUTH_SESSION_TTL", 7*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Gemini.APIKey == "" && !c.Gemini.UseMock {
		return fmt.Errorf("GEMINI_API_KEY is required unless USE_MOCK_LLM is set")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.Chat.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0")
	}
	if c.Chat.SendRatePerMin <= 0 {
		return fmt.Errorf("SEND_RATE_LIMIT must be > 0")
	}
	if c.Auth.MagicLinkTTL <= 0 {
		return fmt.Errorf("MAGIC_LINK_TTL must be > 0")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
