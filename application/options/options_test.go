package options

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/rstudio/rstudio-launcher-plugin-sdk/domain/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	opts := Defaults("myplugin")

	assert.Equal(t, uint(24), opts.JobExpiryHours)
	assert.Equal(t, uint(5), opts.HeartbeatIntervalSeconds)
	assert.Equal(t, "WARN", opts.LogLevel)
	assert.Equal(t, 5242880, opts.MaxMessageSize)
	assert.Equal(t, "myplugin", opts.PluginName)
	assert.Equal(t, "/etc/launcher/myplugin.conf", opts.ConfigFile)
	assert.GreaterOrEqual(t, opts.ThreadPoolSize, 4)
	assert.False(t, opts.Unprivileged)
}

func TestLoad_NoArgsNoConfigFile(t *testing.T) {
	// The default config file will not exist on a test machine; that must
	// not be an error.
	opts, err := Load("myplugin", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults("myplugin").MaxMessageSize, opts.MaxMessageSize)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
log-level: DEBUG
job-expiry-hours: 48
scratch-path: /tmp/myplugin
server-user: svc-user
`)

	opts, err := Load("myplugin", []string{"--config-file", path})
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", opts.LogLevel)
	assert.Equal(t, uint(48), opts.JobExpiryHours)
	assert.Equal(t, "/tmp/myplugin", opts.ScratchPath)
	assert.Equal(t, "svc-user", opts.ServerUser)
	assert.Equal(t, path, opts.ConfigFile)

	// Untouched options keep their defaults.
	assert.Equal(t, uint(5), opts.HeartbeatIntervalSeconds)
}

func TestLoad_CommandLineWinsOverConfigFile(t *testing.T) {
	path := writeConfig(t, `
log-level: DEBUG
max-message-size: 1024
`)

	opts, err := Load("myplugin", []string{
		"--config-file", path,
		"--log-level", "ERROR",
	})
	require.NoError(t, err)

	assert.Equal(t, "ERROR", opts.LogLevel)
	assert.Equal(t, 1024, opts.MaxMessageSize)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load("myplugin", []string{"--config-file", "/nonexistent/plugin.conf"})
	require.Error(t, err)

	var cfgErr *domainerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	_, err := Load("myplugin", []string{"--log-level", "LOUD"})
	require.Error(t, err)

	var cfgErr *domainerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_UnknownFlag(t *testing.T) {
	_, err := Load("myplugin", []string{"--no-such-option"})
	assert.Error(t, err)
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	path := writeConfig(t, "log-level: [not, a, string")

	_, err := Load("myplugin", []string{"--config-file", path})
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want slog.Level
	}{
		{"Debug", Options{LogLevel: "DEBUG"}, slog.LevelDebug},
		{"Info", Options{LogLevel: "INFO"}, slog.LevelInfo},
		{"Warn", Options{LogLevel: "WARN"}, slog.LevelWarn},
		{"Error", Options{LogLevel: "ERROR"}, slog.LevelError},
		{"DebugFlagWins", Options{LogLevel: "ERROR", EnableDebugLogging: true}, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.SlogLevel())
		})
	}
}
