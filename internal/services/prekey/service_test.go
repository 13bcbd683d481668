package prekey_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyward/internal/crypto"
	"keyward/internal/domain"
	"keyward/internal/services/prekey"
	"keyward/internal/services/protocol"
	"keyward/internal/store"
)

func newService(t *testing.T) (*prekey.Service, *protocol.Store) {
	t.Helper()
	root := t.TempDir()
	db, err := store.Open(filepath.Join(root, "keyward.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	proto := protocol.New(store.NewIdentityFileStore(root, nil), db)
	for _, scope := range domain.Scopes() {
		pair, err := crypto.GenerateIdentityKeyPair()
		require.NoError(t, err)
		require.NoError(t, proto.SetLocalIdentity(scope, pair, 1))
	}
	return prekey.New(proto), proto
}

func TestRefresh_IDsUniqueAcrossScopes(t *testing.T) {
	ctx := context.Background()
	svc, proto := newService(t)

	aci, err := svc.Refresh(ctx, domain.ScopeAccount, 3)
	require.NoError(t, err)
	pni, err := svc.Refresh(ctx, domain.ScopePhoneNumber, 3)
	require.NoError(t, err)

	assert.Equal(t, []domain.PreKeyID{0, 1, 2}, aci.PreKeyIDs)
	assert.Equal(t, []domain.PreKeyID{3, 4, 5}, pni.PreKeyIDs)
	assert.NotEqual(t, aci.SignedPreKeyID, pni.SignedPreKeyID)
	assert.Equal(t, domain.KyberPreKeyID(3), aci.LastResortID)
	assert.Equal(t, domain.KyberPreKeyID(4), pni.KyberPreKeyIDs[0])

	// Pre-keys stay in their own scope.
	_, err = proto.LoadPreKey(ctx, domain.ScopeAccount, 4)
	assert.True(t, domain.IsNotFound(err))
	_, err = proto.LoadPreKey(ctx, domain.ScopePhoneNumber, 4)
	assert.NoError(t, err)

	err = proto.MarkKyberPreKeyUsed(ctx, domain.ScopeAccount, aci.LastResortID)
	assert.ErrorIs(t, err, domain.ErrLastResortKey)
	assert.NoError(t, proto.MarkKyberPreKeyUsed(ctx, domain.ScopeAccount, aci.KyberPreKeyIDs[0]))
}

func TestSignedPreKey_Verifies(t *testing.T) {
	ctx := context.Background()
	svc, proto := newService(t)

	spk, err := svc.GenerateSignedPreKey(ctx, domain.ScopePhoneNumber)
	require.NoError(t, err)

	identity, err := proto.IdentityKeyPair(domain.ScopePhoneNumber)
	require.NoError(t, err)
	pub := domain.IdentityKey{Public: spk.KeyPair.Public}.Serialize()
	assert.True(t, crypto.VerifyWithIdentity(identity, pub, spk.Signature))

	other, err := proto.IdentityKeyPair(domain.ScopeAccount)
	require.NoError(t, err)
	assert.False(t, crypto.VerifyWithIdentity(other, pub, spk.Signature))
}

func TestLoadBundle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.LoadBundle(ctx, domain.ScopeAccount)
	assert.ErrorIs(t, err, prekey.ErrNoSignedPreKey)

	r, err := svc.Refresh(ctx, domain.ScopeAccount, 1)
	require.NoError(t, err)
	b, err := svc.LoadBundle(ctx, domain.ScopeAccount)
	require.NoError(t, err)
	assert.Equal(t, r.SignedPreKeyID, b.SignedPreKeyID)
	assert.Equal(t, r.LastResortID, b.KyberPreKeyID)
	assert.Len(t, b.IdentityKey, 33)
	assert.NotEmpty(t, b.KyberPreKey)
}

func TestRefresh_ConcurrentScopesNeverShareIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	scopes := domain.Scopes()
	results := make([]prekey.Refreshed, len(scopes))
	errs := make([]error, len(scopes))
	var wg sync.WaitGroup
	for i, scope := range scopes {
		wg.Add(1)
		go func(i int, scope domain.IdentityScope) {
			defer wg.Done()
			results[i], errs[i] = svc.Refresh(ctx, scope, 10)
		}(i, scope)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	preKeys := map[domain.PreKeyID]bool{}
	signed := map[domain.SignedPreKeyID]bool{}
	kyber := map[domain.KyberPreKeyID]bool{}
	for _, r := range results {
		for _, id := range r.PreKeyIDs {
			assert.False(t, preKeys[id], "pre-key id %d reused", id)
			preKeys[id] = true
		}
		assert.False(t, signed[r.SignedPreKeyID], "signed pre-key id %d reused", r.SignedPreKeyID)
		signed[r.SignedPreKeyID] = true
		for _, id := range append(r.KyberPreKeyIDs, r.LastResortID) {
			assert.False(t, kyber[id], "kyber pre-key id %d reused", id)
			kyber[id] = true
		}
	}
	assert.Len(t, preKeys, 20)
	assert.Len(t, kyber, 22)
}
