package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("CHAT_REQUEST_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ":5000", cfg.Backend.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Chat.RequestTimeout)
	assert.Equal(t, "ko-KR", cfg.TMDB.Language)
	assert.False(t, cfg.TMDB.Enabled())
	assert.Equal(t, 2, cfg.Backend.MinTurns)
	assert.GreaterOrEqual(t, cfg.Backend.MaxTurns, cfg.Backend.MinTurns)
}

func TestLoadServerAddrVariants(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	t.Setenv("PORT", "80 80")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CHAT_REQUEST_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CHAT_REQUEST_TIMEOUT", "-5s")
	_, err = Load()
	require.Error(t, err)
}

func TestBackendTurnBounds(t *testing.T) {
	t.Setenv("CLASSIFIER_MIN_TURNS", "3")
	t.Setenv("CLASSIFIER_MAX_TURNS", "1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Backend.MinTurns)
	assert.Equal(t, 3, cfg.Backend.MaxTurns)
}

func TestClassifierBaseURL(t *testing.T) {
	c := ClassifierConfig{URL: "http://192.168.100.69:5000/chat"}
	assert.Equal(t, "http://192.168.100.69:5000", c.BaseURL())
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://moodcine.example, ,http://localhost:5173")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://moodcine.example", "http://localhost:5173"}, cfg.Server.AllowedOrigins)
}

func TestEmotionLLMToggle(t *testing.T) {
	t.Setenv("EMOTION_LLM_ENABLED", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AI.EmotionLLMEnabled)
	assert.Equal(t, 6, cfg.AI.EmotionHistoryLimit)

	t.Setenv("EMOTION_LLM_ENABLED", "false")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.AI.EmotionLLMEnabled)

	t.Setenv("EMOTION_LLM_ENABLED", "maybe")
	_, err = Load()
	assert.Error(t, err)
}
