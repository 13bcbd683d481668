package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyward/internal/crypto"
	"keyward/internal/domain"
	"keyward/internal/store"
)

func TestIdentityFileStore_SaveLoad(t *testing.T) {
	root := t.TempDir()
	var ids domain.LocalIdentityStore = store.NewIdentityFileStore(root, openCipher(t, root))

	aci, err := crypto.GenerateIdentityKeyPair()
	require.NoError(t, err)
	pni, err := crypto.GenerateIdentityKeyPair()
	require.NoError(t, err)

	require.NoError(t, ids.SaveIdentityKeyPair(domain.ScopeAccount, aci))
	require.NoError(t, ids.SaveIdentityKeyPair(domain.ScopePhoneNumber, pni))
	require.NoError(t, ids.SaveRegistrationID(domain.ScopeAccount, 1234))
	require.NoError(t, ids.SaveRegistrationID(domain.ScopePhoneNumber, 4321))

	got, ok, err := ids.LoadIdentityKeyPair(domain.ScopeAccount)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, aci, got)

	got, ok, err = ids.LoadIdentityKeyPair(domain.ScopePhoneNumber)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pni, got)

	reg, ok, err := ids.LoadRegistrationID(domain.ScopePhoneNumber)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(4321), reg)
}

func TestIdentityFileStore_Missing(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir(), nil)

	_, ok, err := ids.LoadIdentityKeyPair(domain.ScopeAccount)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ids.LoadCredentials()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentityFileStore_PlaintextRegistrationID(t *testing.T) {
	root := t.TempDir()
	ids := store.NewIdentityFileStore(root, nil)
	require.NoError(t, ids.SaveRegistrationID(domain.ScopeAccount, 77))

	raw, err := os.ReadFile(filepath.Join(root, "storage", "identity", "regid"))
	require.NoError(t, err)
	assert.Equal(t, "77", string(raw))
}

func TestIdentityFileStore_CorruptKeyPair(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "storage", "identity")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "identity_key"), []byte{0x05, 1, 2}, 0o600))

	_, _, err := store.NewIdentityFileStore(root, nil).LoadIdentityKeyPair(domain.ScopeAccount)
	require.Error(t, err)
	assert.True(t, domain.IsCorrupt(err))
}

func TestIdentityFileStore_Credentials(t *testing.T) {
	root := t.TempDir()
	ids := store.NewIdentityFileStore(root, openCipher(t, root))

	creds, err := crypto.GenerateCredentials()
	require.NoError(t, err)
	require.NoError(t, ids.SaveCredentials(creds))

	got, ok, err := ids.LoadCredentials()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, creds, got)
}

func TestOpenCipher_WrongPassphrase(t *testing.T) {
	root := t.TempDir()
	_, err := store.OpenCipher(root, "correct", testKDF)
	require.NoError(t, err)

	_, err = store.OpenCipher(root, "wrong", testKDF)
	assert.ErrorIs(t, err, store.ErrWrongPassphrase)
}

func TestOpenCipher_EmptyPassphrase(t *testing.T) {
	c, err := store.OpenCipher(t.TempDir(), "", testKDF)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.False(t, c.Encrypted())

	out, err := c.Seal([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), out)
}

func TestCipher_SealOpen(t *testing.T) {
	root := t.TempDir()
	c := openCipher(t, root)
	sealed, err := c.Seal([]byte("secret"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret")

	again := openCipher(t, root)
	pt, err := again.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(pt))

	sealed[len(sealed)-1] ^= 0xff
	_, err = again.Open(sealed)
	assert.Error(t, err)
}

func TestAccountFileStore_SaveLoad(t *testing.T) {
	root := t.TempDir()
	var accounts domain.AccountStore = store.NewAccountFileStore(root, openCipher(t, root))

	_, ok, err := accounts.LoadAccountProfile()
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.AccountProfile{
		Aci:      uuid.New(),
		Pni:      uuid.New(),
		E164:     "+32474000001",
		DeviceID: domain.PrimaryDeviceID,
	}
	require.NoError(t, accounts.SaveAccountProfile(want))

	got, ok, err := accounts.LoadAccountProfile()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}
