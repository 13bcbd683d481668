package account_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyward/internal/domain"
	"keyward/internal/reconcile"
	"keyward/internal/services/account"
	"keyward/internal/services/protocol"
	"keyward/internal/store"
)

type fixture struct {
	svc   *account.Service
	proto *protocol.Store
	db    *store.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	db, err := store.Open(filepath.Join(root, "db", "keyward.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	files := store.NewIdentityFileStore(root, nil)
	proto := protocol.New(files, db)
	svc := account.New(proto, files, store.NewAccountFileStore(root, nil), reconcile.New(db), db)
	return fixture{svc: svc, proto: proto, db: db}
}

func registration() account.Registration {
	return account.Registration{Aci: uuid.New(), Pni: uuid.New(), E164: "+32474000001"}
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := registration()

	fp, err := f.svc.Bootstrap(ctx, reg)
	require.NoError(t, err)
	assert.NotEqual(t, fp.Aci, fp.Pni)

	again, err := f.svc.Fingerprints()
	require.NoError(t, err)
	assert.Equal(t, fp, again)

	aci, err := f.proto.IdentityKeyPair(domain.ScopeAccount)
	require.NoError(t, err)
	pni, err := f.proto.IdentityKeyPair(domain.ScopePhoneNumber)
	require.NoError(t, err)
	assert.NotEqual(t, aci, pni)

	for _, scope := range domain.Scopes() {
		id, err := f.proto.LocalRegistrationID(scope)
		require.NoError(t, err)
		assert.True(t, id >= 1 && id <= 16380, "registration id %d", id)
	}

	creds, err := f.svc.Credentials()
	require.NoError(t, err)
	assert.Len(t, creds.SignalingKey, 52)
	assert.Len(t, creds.HTTPPassword, 24)

	acct, err := f.svc.Account()
	require.NoError(t, err)
	assert.Equal(t, domain.PrimaryDeviceID, acct.DeviceID)

	_, err = f.svc.Bootstrap(ctx, registration())
	assert.ErrorIs(t, err, account.ErrAlreadyRegistered)
}

func TestSelfRecipient_Cached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := registration()
	_, err := f.svc.Bootstrap(ctx, reg)
	require.NoError(t, err)

	self, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)
	assert.Equal(t, reg.Aci, *self.Aci)
	assert.Equal(t, reg.Pni, *self.Pni)
	assert.Equal(t, reg.E164, *self.E164)

	// A write behind the service's back is not seen until invalidation.
	require.NoError(t, f.db.UpdateProfile(ctx, self.ID, domain.Profile{GivenName: "Me"}))
	cached, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached.Profile.GivenName)

	f.svc.InvalidateSelfRecipient()
	fresh, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)
	assert.Equal(t, self.ID, fresh.ID)
	assert.Equal(t, "Me", fresh.Profile.GivenName)
}

func TestUpdateSelfProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Bootstrap(ctx, registration())
	require.NoError(t, err)
	_, err = f.svc.SelfRecipient(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateSelfProfile(ctx, domain.Profile{GivenName: "Ada"}))
	self, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", self.Profile.GivenName)
}

func TestReconcile_RefreshesSelfAfterChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := registration()
	_, err := f.svc.Bootstrap(ctx, reg)
	require.NoError(t, err)
	self, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)

	require.NoError(t, f.db.UpdateProfile(ctx, self.ID, domain.Profile{GivenName: "Me"}))
	moved := domain.PhoneNumber("+32474000777")
	r, changed, err := f.svc.Reconcile(ctx, &moved, &reg.Aci, nil, domain.Certain)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, self.ID, r.ID)

	// The account profile still has the old number, so the refreshed self
	// row is reconciled back to it.
	fresh, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)
	assert.Equal(t, self.ID, fresh.ID)
	assert.Equal(t, "Me", fresh.Profile.GivenName)
	assert.Equal(t, reg.E164, *fresh.E164)

	stored, ok, err := f.db.FetchRecipient(ctx, self.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, reg.E164, *stored.E164)
}

func TestReconcile_UnchangedKeepsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := registration()
	_, err := f.svc.Bootstrap(ctx, reg)
	require.NoError(t, err)
	self, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)

	require.NoError(t, f.db.UpdateProfile(ctx, self.ID, domain.Profile{GivenName: "Me"}))
	r, changed, err := f.svc.ReconcileAddress(ctx, domain.AciAddress(reg.Aci), domain.Uncertain)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, self.ID, r.ID)

	cached, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached.Profile.GivenName)
}

func TestSetNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := registration()
	_, err := f.svc.Bootstrap(ctx, reg)
	require.NoError(t, err)
	before, err := f.svc.SelfRecipient(ctx)
	require.NoError(t, err)

	newPni := uuid.New()
	after, err := f.svc.SetNumber(ctx, "+32474000099", newPni)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, domain.PhoneNumber("+32474000099"), *after.E164)
	assert.Equal(t, newPni, *after.Pni)

	acct, err := f.svc.Account()
	require.NoError(t, err)
	assert.Equal(t, newPni, acct.Pni)
}

func TestSelfRecipient_NotRegistered(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SelfRecipient(context.Background())
	assert.True(t, domain.IsNotFound(err))
}

func TestCheckPassphrase(t *testing.T) {
	assert.ErrorIs(t, account.CheckPassphrase("short"), account.ErrWeakPassphrase)
	assert.ErrorIs(t, account.CheckPassphrase("alllowercaseletters"), account.ErrWeakPassphrase)
	assert.NoError(t, account.CheckPassphrase("Str0ng!Passphrase"))
}
