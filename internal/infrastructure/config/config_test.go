package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.Equal(t, 300, cfg.Robot.MinDelayMS)
	assert.Equal(t, "queue", cfg.Robot.ConfirmMode)
	assert.Equal(t, 60.0, cfg.OCR.MinConfidence)
	assert.Equal(t, 3840, cfg.OCR.PreprocessWidth)
	assert.Equal(t, 4096, cfg.OCR.MaxCapture)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.AI.ResolverModel)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ROBOT_MIN_DELAY_MS", "500")
	t.Setenv("OCR_MIN_CONFIDENCE", "75.5")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("BRIDGE_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 500, cfg.Robot.MinDelayMS)
	assert.Equal(t, 75.5, cfg.OCR.MinConfidence)
	assert.Equal(t, "gsk-test", cfg.AI.GroqKey)
	assert.False(t, cfg.Bridge.Enabled)

	// untouched values keep their defaults
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "eng", cfg.OCR.Language)
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comet.yaml")
	content := `
server:
  port: "7100"
robot:
  min_delay_ms: 450
  confirm_mode: terminal
ocr:
  language: deu
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, 450, cfg.Robot.MinDelayMS)
	assert.Equal(t, "terminal", cfg.Robot.ConfirmMode)
	assert.Equal(t, "deu", cfg.OCR.Language)
	assert.Equal(t, 3840, cfg.OCR.PreprocessWidth)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comet.toml")
	content := `
[storage]
dir = "/var/lib/comet"

[shell]
enabled = false
timeout_sec = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/comet", cfg.Storage.Dir)
	assert.False(t, cfg.Shell.Enabled)
	assert.Equal(t, 5, cfg.Shell.TimeoutSec)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comet.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7100\"\n"), 0o644))

	t.Setenv(FileEnv, path)
	t.Setenv("PORT", "7200")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7200", cfg.Server.Port)
}

func TestLoadFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comet.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadOrDefaultFallsBackOnBadFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := LoadOrDefault()
	assert.Equal(t, "8000", cfg.Server.Port)
}
