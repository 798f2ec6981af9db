package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithMock(t *testing.T) {
	t.Setenv("USE_MOCK_LLM", "true")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	require.Equal(t, int64(5<<20), cfg.Chat.MaxImageBytes)
	require.Equal(t, 15*time.Minute, cfg.Auth.MagicLinkTTL)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.Equal(t, 2*time.Minute, cfg.ShutdownTimeout)
	require.True(t, cfg.IsDevelopment())
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("USE_MOCK_LLM", "false")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("USE_MOCK_LLM", "no")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MAGIC_LINK_TTL", "30m")
	t.Setenv("AUTH_SESSION_TTL", "bogus")
	t.Setenv("SEND_RATE_LIMIT", "5")
	t.Setenv("FRONTEND_URL", "https://chat.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, 30*time.Minute, cfg.Auth.MagicLinkTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	require.Equal(t, 5, cfg.Chat.SendRatePerMin)
	require.False(t, cfg.IsDevelopment())
}

func TestValidateRejectsBadLimits(t *testing.T) {
	t.Setenv("USE_MOCK_LLM", "1")
	t.Setenv("MAX_IMAGE_BYTES", "0")

	_, err := Load()
	require.ErrorContains(t, err, "MAX_IMAGE_BYTES")
}

func TestShutdownTimeout(t *testing.T) {
	t.Setenv("USE_MOCK_LLM", "1")

	t.Setenv("SHUTDOWN_TIMEOUT", "45s")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, cfg.ShutdownTimeout)

	t.Setenv("SHUTDOWN_TIMEOUT", "0s")
	_, err = Load()
	require.ErrorContains(t, err, "SHUTDOWN_TIMEOUT")
}
