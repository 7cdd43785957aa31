package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordeim/context7-agent-v2-sub001/internal/ui"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"CONTEXT7_THEME", "CONTEXT7_HISTORY", "CONTEXT7_SYSTEM_PROMPT",
		"CONTEXT7_MAX_HISTORY", "CONTEXT7_LOG_LEVEL", "CONTEXT7_CONFIG",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key-123")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "test-key-123", cfg.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, ui.ThemeCyberpunk, cfg.Theme)
	assert.Equal(t, 100, cfg.MaxHistory)
	assert.NotEmpty(t, cfg.SystemPrompt)
	assert.NotEmpty(t, cfg.FallbackAnswer)
	assert.Equal(t, "npx", cfg.MCPCommand)
	assert.Equal(t, []string{"-y", "@upstash/context7-mcp@latest"}, cfg.MCPArgs)
}

func TestLoadMissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := LoadFrom("")
	require.Error(t, err)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "api_key", cerr.Field)
	assert.Contains(t, cerr.Remediation, "OPENAI_API_KEY")
}

func TestLoadInvalidTheme(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("CONTEXT7_THEME", "vaporwave")

	_, err := LoadFrom("")
	require.Error(t, err)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "theme", cerr.Field)
	assert.Contains(t, cerr.Remediation, "cyberpunk")
	assert.Contains(t, cerr.Remediation, "sunset")
}

func TestLoadAllValidThemes(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")

	for _, name := range ui.ThemeNames() {
		t.Setenv("CONTEXT7_THEME", name)
		cfg, err := LoadFrom("")
		require.NoError(t, err, "theme %s", name)
		assert.Equal(t, ui.Theme(name), cfg.Theme)
	}
}

func TestBlankSystemPromptSubstituted(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("CONTEXT7_SYSTEM_PROMPT", "   ")

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)
}

func TestMaxHistoryMustBePositive(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("CONTEXT7_MAX_HISTORY", "0")

	_, err := LoadFrom("")
	require.Error(t, err)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "max_history", cerr.Field)
}

func TestLoadFromYAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "base_url: https://custom-api.example/v1\nmodel: file-model\ntheme: forest\nmax_history: 7\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "https://custom-api.example/v1", cfg.BaseURL)
	// Environment wins over the file.
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, ui.ThemeForest, cfg.Theme)
	assert.Equal(t, 7, cfg.MaxHistory)
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestLoadFromMalformedFileFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o644))

	_, err := LoadFrom(path)
	require.Error(t, err)
}
