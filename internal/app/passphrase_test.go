package app

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyward/internal/secrets"
)

func TestResolvePassphrase(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.Keyring = secrets.Config{Enabled: true, Backend: string(keyring.FileBackend), FileDir: t.TempDir()}
	prompt := keyring.FixedStringPrompt("unlock")

	// Nothing stored yet.
	got, err := ResolvePassphrase(cfg, prompt)
	require.NoError(t, err)
	assert.Empty(t, got.Passphrase)

	ring, err := secrets.Open(cfg.Keyring, home, prompt)
	require.NoError(t, err)
	require.NoError(t, ring.Set("Stored-Passphrase-1"))

	got, err = ResolvePassphrase(cfg, prompt)
	require.NoError(t, err)
	assert.Equal(t, "Stored-Passphrase-1", got.Passphrase)

	// An explicit passphrase wins.
	cfg.Passphrase = "Explicit-Passphrase-2"
	got, err = ResolvePassphrase(cfg, prompt)
	require.NoError(t, err)
	assert.Equal(t, "Explicit-Passphrase-2", got.Passphrase)
}

func TestResolvePassphrase_Disabled(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	got, err := ResolvePassphrase(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
