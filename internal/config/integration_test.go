package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkops/internal/logging"
)

func TestGlobalConfig(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	ResetGlobalConfigForTest()
	t.Cleanup(ResetGlobalConfigForTest)

	cfg := GetGlobalConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, logging.DefaultLevel, cfg.Logging.Level)

	// Subsequent calls return the same instance
	assert.Same(t, cfg, GetGlobalConfig())

	ResetGlobalConfigForTest()
	assert.NotSame(t, cfg, GetGlobalConfig())

	replacement := Default(t.TempDir())
	SetGlobalConfig(replacement)
	assert.Same(t, replacement, GetGlobalConfig())
}

func TestConfigGetters(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	ResetGlobalConfigForTest()
	t.Cleanup(ResetGlobalConfigForTest)

	cfg := GetGlobalConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.File = "/tmp/test.log"

	lc := GetLoggingConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "/tmp/test.log", lc.File)
}

func TestGetConfigDir(t *testing.T) {
	t.Run("BULKOPS_HOME", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(EnvHome, home)

		dir, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, home, dir)
	})

	t.Run("user home", func(t *testing.T) {
		tmpHome := t.TempDir()
		t.Setenv(EnvHome, "")
		t.Setenv("HOME", tmpHome)
		t.Setenv("USERPROFILE", tmpHome)

		dir, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpHome, ".bulkops"), dir)
	})
}

func TestEnsureConfigDir(t *testing.T) {
	home := filepath.Join(t.TempDir(), "nested", "bulkops")
	t.Setenv(EnvHome, home)

	require.NoError(t, EnsureConfigDir())

	stat, err := os.Stat(home)
	require.NoError(t, err)
	assert.True(t, stat.IsDir())
}

func TestEnsureLogDir(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	ResetGlobalConfigForTest()
	t.Cleanup(ResetGlobalConfigForTest)

	// No log file configured
	require.NoError(t, EnsureLogDir())

	logFile := filepath.Join(t.TempDir(), "logs", "bulkops.log")
	GetGlobalConfig().Logging.File = logFile
	require.NoError(t, EnsureLogDir())

	stat, err := os.Stat(filepath.Dir(logFile))
	require.NoError(t, err)
	assert.True(t, stat.IsDir())
}

func TestToLoggingConfig(t *testing.T) {
	tests := []struct {
		name       string
		input      LoggingConfig
		wantOutput string
	}{
		{
			name:       "stderr by default",
			input:      LoggingConfig{Level: "info", Format: "json"},
			wantOutput: logging.OutputStderr,
		},
		{
			name:       "file when set",
			input:      LoggingConfig{Level: "debug", Format: "console", File: "/var/log/bulkops.log"},
			wantOutput: logging.OutputFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.input.ToLoggingConfig()
			assert.Equal(t, tt.input.Level, got.Level)
			assert.Equal(t, tt.input.Format, got.Format)
			assert.Equal(t, tt.input.File, got.File)
			assert.Equal(t, tt.wantOutput, got.Output)
		})
	}
}
