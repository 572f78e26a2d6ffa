package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPropertiesDefaults(t *testing.T) {
	config, err := ReadProperties(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8088", config.Server.Port)
	assert.Equal(t, "token", config.Auth.CookieName)
	assert.Equal(t, 7*24*time.Hour, config.Auth.TokenTTL)
	assert.Equal(t, StoreSQLite, config.Store.Driver)
	assert.Equal(t, "wad-01", config.Store.Database)
	assert.Equal(t, BlobLocal, config.Blob.Driver)
	assert.Equal(t, []string{"*"}, config.Server.AllowOrigins)
}

func TestReadPropertiesFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HTTP_PORT=9999\nSTORE_DRIVER=memory\n"), 0o600))
	t.Setenv("HTTP_PORT", "7000")
	t.Setenv("STORE_DRIVER", "")
	os.Unsetenv("STORE_DRIVER")

	config, err := ReadProperties(envFile)
	require.NoError(t, err)

	// the process environment wins over the file
	assert.Equal(t, "7000", config.Server.Port)
	assert.Equal(t, StoreMemory, config.Store.Driver)
}

func TestReadPropertiesRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("BLOB_DRIVER", "ftp")

	_, err := ReadProperties(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "unknown blob driver")
}
