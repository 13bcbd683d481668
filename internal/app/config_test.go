package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyward/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesBase(t *testing.T) {
	home := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(home, ConfigFileName), DefaultConfig(home))
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, filepath.Join(home, "db", "keyward.db"), cfg.Database)
	assert.Equal(t, domain.PrimaryDeviceID, cfg.DeviceID)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1<<15, cfg.Scrypt.N)
}

func TestLoadConfig_Overlay(t *testing.T) {
	path := writeConfig(t, `
database: /tmp/elsewhere.db
device_id: 3
log:
  level: debug
  console: true
scrypt:
  n: 1024
`)
	cfg, err := LoadConfig(path, DefaultConfig("/srv/keyward"))
	require.NoError(t, err)

	assert.Equal(t, "/srv/keyward", cfg.Home)
	assert.Equal(t, "/tmp/elsewhere.db", cfg.Database)
	assert.Equal(t, domain.DeviceID(3), cfg.DeviceID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Console)
	assert.Equal(t, 1024, cfg.Scrypt.N)
	// Keys absent from the file keep their base values.
	assert.Equal(t, 8, cfg.Scrypt.R)
	assert.Equal(t, 1, cfg.Scrypt.P)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := LoadConfig(path, DefaultConfig("/srv/keyward"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/keyward", cfg.Home)
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := writeConfig(t, "databse: typo.db\n")
	_, err := LoadConfig(path, DefaultConfig("/srv/keyward"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"scrypt n not a power of two", "scrypt:\n  n: 1000\n"},
		{"scrypt r zero", "scrypt:\n  r: 0\n"},
		{"log level", "log:\n  level: chatty\n"},
		{"home cleared", "home: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body), DefaultConfig("/srv/keyward"))
			assert.Error(t, err)
		})
	}
}
