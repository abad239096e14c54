package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.True(t, c.Server.AuthEnabled)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, "local", c.Storage.Backend)
	assert.Equal(t, "USD", c.Rates.BaseCurrency)
	assert.Equal(t, 30*time.Minute, c.Forms.IdleTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSETDESK_SERVER_ADDR", ":9999")
	t.Setenv("ASSETDESK_DATABASE_DRIVER", "memory")
	t.Setenv("ASSETDESK_LOG_LEVEL", "debug")
	t.Setenv("ASSETDESK_FORMS_MAXAGE", "5m")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.Server.Addr)
	assert.Equal(t, "memory", c.Database.Driver)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 5*time.Minute, c.Forms.MaxAge)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "assetdesk.yaml")
	require.NoError(t, os.WriteFile(file, []byte("storage:\n  backend: s3\n  bucket: pics\nrates:\n  cacheSize: 16\n"), 0o600))

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "s3", c.Storage.Backend)
	assert.Equal(t, "pics", c.Storage.Bucket)
	assert.Equal(t, 16, c.Rates.CacheSize)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	c := base
	c.Database.Driver = "postgres"
	assert.Error(t, c.Validate())

	c = base
	c.Storage.Backend = "s3"
	assert.ErrorContains(t, c.Validate(), "bucket")

	c = base
	c.Rates.Provider = "http"
	assert.ErrorContains(t, c.Validate(), "baseURL")
}
