package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Provide a path that definitely doesn't exist
	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)

	assert.Equal(t, "Mylle", config.App.Character)
	assert.Equal(t, "America/Sao_Paulo", config.Persona.Timezone)
	assert.Equal(t, -3, config.Persona.FallbackOffsetHours)
	assert.Equal(t, 0.8, config.ModelSettings.Temperature)
	assert.Equal(t, 0.95, config.ModelSettings.TopP)
	assert.Equal(t, 1024, config.ModelSettings.MaxTokens)
	assert.Equal(t, 30.0, config.Generation.TimeoutSeconds)
	assert.Equal(t, 5, config.Generation.HistoryTurns)
	assert.Equal(t, 50, config.Limits.MaxRequestsPerSession)
	assert.Equal(t, 100, config.Limits.RateLimitMessages)
	assert.Equal(t, 3600, config.Limits.RateLimitWindowSeconds)
	assert.Equal(t, "sqlite", config.Storage.Driver)
	assert.Equal(t, "database/chatbot.db", config.Storage.SQLitePath)
	assert.Len(t, config.Catalog.Packs, 3)
	assert.Len(t, config.Catalog.Previews, 6)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	content := []byte(`
app:
  character: Luna
model_settings:
  temperature: 0.7
  top_p: 0.9
generation:
  timeout_seconds: 10
limits:
  max_requests_per_session: 20
storage:
  driver: surreal
`)
	tmpfile, err := os.CreateTemp("", "config_test_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name()) // clean up

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, "Luna", config.App.Character)
	assert.Equal(t, 0.7, config.ModelSettings.Temperature)
	assert.Equal(t, 0.9, config.ModelSettings.TopP)
	assert.Equal(t, 10.0, config.Generation.TimeoutSeconds)
	assert.Equal(t, 20, config.Limits.MaxRequestsPerSession)
	assert.Equal(t, "surreal", config.Storage.Driver)

	// Untouched sections keep their defaults
	assert.Equal(t, 5, config.Generation.HistoryTurns)
	assert.Equal(t, 1024, config.ModelSettings.MaxTokens)
	assert.Equal(t, "America/Sao_Paulo", config.Persona.Timezone)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	content := []byte(`
model_settings:
  temperature: "not a number"
  broken_yaml: [ unclosed bracket
`)
	tmpfile, err := os.CreateTemp("", "config_invalid_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(tmpfile.Name())

	assert.Error(t, err)
	assert.Nil(t, config)
}
