package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyward/internal/domain"
	"keyward/internal/services/account"
	"keyward/internal/store"
)

func testConfig(t *testing.T, passphrase string) Config {
	t.Helper()
	home := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(home, ConfigFileName), DefaultConfig(home))
	require.NoError(t, err)
	cfg.Passphrase = passphrase
	cfg.Scrypt = store.KDFParams{N: 1 << 10, R: 8, P: 1}
	return cfg
}

func TestNewWire_BootstrapAndResolve(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "Correct-Horse-9")

	w, err := NewWire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	aci, pni := uuid.New(), uuid.New()
	e164 := domain.PhoneNumber("+15550001111")
	_, err = w.Account.Bootstrap(ctx, account.Registration{Aci: aci, Pni: pni, E164: e164})
	require.NoError(t, err)

	self, err := w.Account.SelfRecipient(ctx)
	require.NoError(t, err)
	require.NotNil(t, self.Aci)
	assert.Equal(t, aci, *self.Aci)

	// A later sighting of the same ACI resolves to the self row.
	again, _, err := w.Reconciler.Reconcile(ctx, nil, &aci, nil, domain.Uncertain)
	require.NoError(t, err)
	assert.Equal(t, self.ID, again.ID)

	refreshed, err := w.Prekeys.Refresh(ctx, domain.ScopeAccount, 5)
	require.NoError(t, err)
	assert.Len(t, refreshed.PreKeyIDs, 5)
}

func TestNewWire_ReopenWithWrongPassphrase(t *testing.T) {
	cfg := testConfig(t, "Correct-Horse-9")

	w, err := NewWire(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	cfg.Passphrase = "Wrong-Horse-9"
	_, err = NewWire(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, store.ErrWrongPassphrase)
}

func TestNewWire_InvalidConfig(t *testing.T) {
	_, err := NewWire(Config{}, zerolog.Nop())
	assert.Error(t, err)
}
