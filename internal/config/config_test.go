package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gk")
	t.Setenv("DATASET_URL", "https://example.test/landmarks.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"gemini", "openai"}, cfg.Engines.Order)
	assert.Equal(t, 0.3, cfg.Pipeline.MinConfidence)
	assert.Equal(t, 6*time.Hour, cfg.Hints.CacheTTL)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxImageBytes)
}

func TestLoadRequiresAnEngineKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATASET_URL", "https://example.test/landmarks.json")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresDatasetURL(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "ok")
	t.Setenv("DATASET_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadEngineOrder(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "ok")
	t.Setenv("DATASET_URL", "https://example.test/landmarks.json")
	t.Setenv("ENGINE_ORDER", "openai, gemini")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "gemini"}, cfg.Engines.Order)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "ok")
	t.Setenv("DATASET_URL", "https://example.test/landmarks.json")
	t.Setenv("MIN_CONFIDENCE", "0.5")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Pipeline.MinConfidence)
	assert.Equal(t, "9090", cfg.Server.Port)
}
