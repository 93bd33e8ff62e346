package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"PORT", "UPLOAD_DIR", "ENGINE_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_CreatesDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "docintake.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "uploads"), cfg.GetUploadDir())
	assert.Equal(t, "0.0.0.0:5000", cfg.GetServerAddr())

	max, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(50<<20), max)
	assert.Equal(t, 5*time.Minute, cfg.EngineTimeout())
	assert.Equal(t, 24*time.Hour, cfg.JobRetention())

	// a second load reads the file back unchanged
	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "docintake.yaml")
	content := `
server:
  port: 9090
storage:
  uploadDirectory: /srv/uploads
  maxUploadSize: 10MB
processing:
  engine: command
  command: /usr/local/bin/parse
  args: ["--fast"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.BindAddress)
	assert.Equal(t, "/srv/uploads", cfg.GetUploadDir())
	assert.Equal(t, EngineCommand, cfg.Processing.Engine)
	assert.Equal(t, []string{"--fast"}, cfg.Processing.Args)
	assert.Equal(t, "file", cfg.Storage.NamePrefix)

	max, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), max)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("UPLOAD_DIR", "/data/in")
	t.Setenv("ENGINE_URL", "http://engine:8000/run")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "docintake.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/data/in", cfg.GetUploadDir())
	assert.Equal(t, "http://engine:8000/run", cfg.Processing.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "server: [", "failed to parse config file"},
		{"bad size", "storage:\n  maxUploadSize: lots\n", "maxUploadSize"},
		{"bad duration", "processing:\n  timeout: soon\n", "processing.timeout"},
		{"unknown engine", "processing:\n  engine: carrier-pigeon\n", "unknown processing.engine"},
		{"command without binary", "processing:\n  engine: command\n", "processing.command is required"},
		{"body limit below upload cap", "server:\n  bodyLimit: 10M\n", "server.bodyLimit 10M must be larger than storage.maxUploadSize 50MiB"},
		{"body limit equal to upload cap", "server:\n  bodyLimit: 50M\n", "must be larger than storage.maxUploadSize"},
		{"bad body limit", "server:\n  bodyLimit: huge\n", "invalid server.bodyLimit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "docintake.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.UploadDirectory = filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, cfg.EnsureDirectories())
	info, err := os.Stat(cfg.Storage.UploadDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
