package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{"SERVER_URL", "PASSWORD", "DATA_DIR", "BROADCAST_DIR", "LOG_FILE", "LOG_LEVEL", "HTTP_TIMEOUT", "MARKDOWN_STYLE"} {
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	dataDir := filepath.Join(dir, "data", "todosky")
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "broadcast"), cfg.BroadcastDir)
	assert.Equal(t, filepath.Join(dataDir, "todosky.log"), cfg.LogFile)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config", "todosky", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: https://sky.example.com
data_dir: /tmp/sky
http_timeout: 5s
log_level: debug
`), 0o644))

	t.Setenv("TODOSKY_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://sky.example.com", cfg.ServerURL)
	assert.Equal(t, "/tmp/sky", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/sky", "broadcast"), cfg.BroadcastDir)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "empty url", mutate: func(c *Config) { c.ServerURL = "" }, wantErr: "server_url is required"},
		{name: "bad scheme", mutate: func(c *Config) { c.ServerURL = "ftp://x" }, wantErr: "unsupported scheme"},
		{name: "no host", mutate: func(c *Config) { c.ServerURL = "http://" }, wantErr: "missing host"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "negative timeout", mutate: func(c *Config) { c.HTTPTimeout = -time.Second }, wantErr: "http_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
