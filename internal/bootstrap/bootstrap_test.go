package bootstrap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sitemap/internal/bootstrap"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  port: 9100\nlogging:\n  level: debug\n"), 0o600))

	cfg, err := bootstrap.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Service.Port)

	log, err := bootstrap.CreateLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  state: etcd\n"), 0o600))

	_, err := bootstrap.LoadConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.state")
}
