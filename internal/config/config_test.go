package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitwire/fitwire/internal/gatt"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fitwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, gatt.DefaultDialTimeout, cfg.DialTimeout.Std())
	assert.False(t, cfg.AllowDuplicates)
	assert.Empty(t, cfg.StatusAddr)
	assert.Equal(t, uint32(256), cfg.RecentMetrics)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
log_level: debug
dial_timeout: 45s
allow_duplicates: true
status_addr: "127.0.0.1:9090"
recent_metrics: 512
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.DialTimeout.Std())
	assert.True(t, cfg.AllowDuplicates)
	assert.Equal(t, "127.0.0.1:9090", cfg.StatusAddr)
	assert.Equal(t, uint32(512), cfg.RecentMetrics)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, "log_level: info\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, gatt.DefaultDialTimeout, cfg.DialTimeout.Std())
	assert.Equal(t, uint32(256), cfg.RecentMetrics)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "log_level: info\ndial_timeout: 45s\n")

	t.Setenv("FITWIRE_LOG_LEVEL", "error")
	t.Setenv("FITWIRE_DIAL_TIMEOUT", "5s")
	t.Setenv("FITWIRE_STATUS_ADDR", ":8080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout.Std())
	assert.Equal(t, ":8080", cfg.StatusAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "log_level: [unclosed\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("FITWIRE_LOG_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfigFile(t, "dial_timeout: fast\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadRejectsZeroRecentMetrics(t *testing.T) {
	path := writeConfigFile(t, "recent_metrics: 0\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recent metrics capacity")
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{level: "debug", expected: logrus.DebugLevel},
		{level: "info", expected: logrus.InfoLevel},
		{level: "warn", expected: logrus.WarnLevel},
		{level: "error", expected: logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			assert.Equal(t, tt.expected, cfg.NewLogger().GetLevel())
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
