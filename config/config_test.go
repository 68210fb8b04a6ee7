package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "CORS_ALLOWED_ORIGINS",
		"SHUTDOWN_TIMEOUT", "STRICT_TRANSITIONS", "TIMEZONE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "vacations.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.StrictTransitions)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("PORT=5001\nSTRICT_TRANSITIONS=true\nCORS_ALLOWED_ORIGINS=http://a.test,http://b.test\n"), 0o600))

	// The process environment wins over the file.
	t.Setenv("PORT", "6002")
	t.Setenv("TIMEZONE", "Europe/Paris")
	t.Setenv("STRICT_TRANSITIONS", "")
	os.Unsetenv("STRICT_TRANSITIONS")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	os.Unsetenv("CORS_ALLOWED_ORIGINS")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, 6002, cfg.Port)
	assert.True(t, cfg.StrictTransitions)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Port:            0,
		DBPath:          "",
		LogLevel:        "loud",
		LogFormat:       "xml",
		ShutdownTimeout: 0,
		Timezone:        "Mars/Olympus",
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT", "TIMEZONE"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
