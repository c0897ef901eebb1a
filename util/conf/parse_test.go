package conf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/faceplate/helperd/util/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	LogLevel string `conf:"log_level"`

	Tracker struct {
		Port int `conf:"port"`
	} `conf:"tracker"`
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		Defaults: conf.DefaultConfig{
			"log_level":    "info",
			"tracker.port": 8765,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8765, cfg.Tracker.Port)
}

func TestParse_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	// nested keys are addressed with __
	t.Setenv("TRACKER__PORT", "9000")

	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		Defaults: conf.DefaultConfig{
			"log_level":    "info",
			"tracker.port": 8765,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9000, cfg.Tracker.Port)
}

func TestParse_EnvPrefix(t *testing.T) {
	// the prefix is separated from the key with __
	t.Setenv("HELPERD__LOG_LEVEL", "warn")

	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		EnvPrefix: "HELPERD",
	})
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParse_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")

	err := os.WriteFile(dotenv, []byte("LOG_LEVEL=debug\nTRACKER__PORT=9000\n"), 0o600)
	require.NoError(t, err)

	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		DotEnvFile: dotenv,
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9000, cfg.Tracker.Port)
}

func TestParse_MissingDotEnvFileIsSkipped(t *testing.T) {
	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		DotEnvFile: filepath.Join(t.TempDir(), ".env"),
		Defaults: conf.DefaultConfig{
			"log_level": "info",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
}
