package utils

import (
	"os"
	"path/filepath"
	"testing"

	logger "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() {
		logger.SetLevel(logger.InfoLevel)
		logger.SetFormatter(&logger.TextFormatter{})
	})

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")
	SetupLogger()
	assert.Equal(t, logger.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logger.JSONFormatter{}, logger.StandardLogger().Formatter)

	t.Setenv("LOG_LEVEL", "nonsense")
	t.Setenv("LOG_FORMAT", "")
	SetupLogger()
	assert.Equal(t, logger.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logger.TextFormatter{}, logger.StandardLogger().Formatter)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PERPTRADER_TEST_FROM_FILE=file\nPERPTRADER_TEST_PRESET=file\n"), 0o600))
	t.Setenv("PERPTRADER_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("PERPTRADER_TEST_FROM_FILE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "file", os.Getenv("PERPTRADER_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("PERPTRADER_TEST_PRESET"))
}
