package reconcile_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyward/internal/domain"
	"keyward/internal/reconcile"
	"keyward/internal/store"
)

func newEngine(t *testing.T) (*reconcile.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "keyward.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return reconcile.New(s), s
}

func phone(s string) *domain.PhoneNumber {
	p := domain.PhoneNumber(s)
	return &p
}

func newUUID() *uuid.UUID {
	u := uuid.New()
	return &u
}

func seed(t *testing.T, s *store.Store, aci, pni *uuid.UUID, e164 *domain.PhoneNumber) domain.Recipient {
	t.Helper()
	var r domain.Recipient
	err := s.WithRecipientTx(context.Background(), func(tx domain.RecipientTx) error {
		var err error
		r, err = tx.CreateRecipient(context.Background(), aci, pni, e164)
		return err
	})
	require.NoError(t, err)
	return r
}

func fetch(t *testing.T, s *store.Store, id domain.RecipientID) (domain.Recipient, bool) {
	t.Helper()
	r, ok, err := s.FetchRecipient(context.Background(), id)
	require.NoError(t, err)
	return r, ok
}

func TestReconcile_CreatesOnNoHit(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	aci, pni := newUUID(), newUUID()

	r, changed, err := e.Reconcile(ctx, phone("+32474000001"), aci, pni, domain.Certain)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, aci, r.Aci)
	assert.Equal(t, pni, r.Pni)
	assert.Equal(t, phone("+32474000001"), r.E164)
}

func TestReconcile_UncertainE164NextToAciIsDropped(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	r, _, err := e.Reconcile(ctx, phone("+32474000001"), newUUID(), nil, domain.Uncertain)
	require.NoError(t, err)
	assert.Nil(t, r.E164)

	r, _, err = e.Reconcile(ctx, phone("+32474000002"), nil, nil, domain.Uncertain)
	require.NoError(t, err)
	assert.Equal(t, phone("+32474000002"), r.E164)
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	inputs := []struct {
		name     string
		e164     *domain.PhoneNumber
		aci, pni *uuid.UUID
	}{
		{"aci only", nil, newUUID(), nil},
		{"pni only", nil, nil, newUUID()},
		{"e164 only", phone("+32474000003"), nil, nil},
		{"all three", phone("+32474000004"), newUUID(), newUUID()},
		{"aci and e164", phone("+32474000005"), newUUID(), nil},
	}
	for _, in := range inputs {
		t.Run(in.name, func(t *testing.T) {
			e, _ := newEngine(t)
			first, changed, err := e.Reconcile(ctx, in.e164, in.aci, in.pni, domain.Certain)
			require.NoError(t, err)
			assert.True(t, changed)

			second, changed, err := e.Reconcile(ctx, in.e164, in.aci, in.pni, domain.Certain)
			require.NoError(t, err)
			assert.False(t, changed)
			assert.Equal(t, first.ID, second.ID)
		})
	}
}

func TestReconcile_ScenarioA(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	existing := seed(t, s, nil, nil, phone("+32474000001"))
	u1 := newUUID()

	r, changed, err := e.Reconcile(ctx, phone("+32474000001"), u1, nil, domain.Uncertain)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, existing.ID, r.ID)
	assert.Equal(t, u1, r.Aci)
	assert.Equal(t, phone("+32474000001"), r.E164)
}

func TestReconcile_ScenarioB(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	u1, u2 := newUUID(), newUUID()
	a := seed(t, s, u1, nil, phone("+32474000001"))

	b, changed, err := e.Reconcile(ctx, phone("+32474000001"), u2, nil, domain.Certain)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, u2, b.Aci)
	assert.Equal(t, phone("+32474000001"), b.E164)

	a, ok := fetch(t, s, a.ID)
	require.True(t, ok)
	assert.Equal(t, u1, a.Aci)
	assert.Nil(t, a.E164)
}

func TestReconcile_ScenarioC(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	pn1 := newUUID()
	pniOnly := seed(t, s, nil, pn1, nil)
	phoneOnly := seed(t, s, nil, nil, phone("+32474000001"))

	r, changed, err := e.Reconcile(ctx, phone("+32474000001"), nil, pn1, domain.Uncertain)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, phoneOnly.ID, r.ID)
	assert.Equal(t, pn1, r.Pni)
	assert.Equal(t, phone("+32474000001"), r.E164)

	_, ok := fetch(t, s, pniOnly.ID)
	assert.False(t, ok)

	all, err := s.ListRecipients(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReconcile_AciImmutable(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	u1, u2, pn := newUUID(), newUUID(), newUUID()
	a := seed(t, s, u1, pn, phone("+32474000001"))

	b, _, err := e.Reconcile(ctx, phone("+32474000001"), u2, pn, domain.Certain)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, u2, b.Aci)
	assert.Equal(t, pn, b.Pni)

	a, ok := fetch(t, s, a.ID)
	require.True(t, ok)
	assert.Equal(t, u1, a.Aci)
	assert.Nil(t, a.Pni)
	assert.Nil(t, a.E164)

	// Only the pni shared this time.
	c, _, err := e.Reconcile(ctx, nil, newUUID(), pn, domain.Uncertain)
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, c.ID)
	b, _ = fetch(t, s, b.ID)
	assert.Equal(t, u2, b.Aci)
}

func TestReconcile_UncertainE164AndPniOwnedByOtherAccounts(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	u0, u1, u2, pn := newUUID(), newUUID(), newUUID(), newUUID()
	phoneRow := seed(t, s, u1, nil, phone("+32474000001"))
	pniRow := seed(t, s, u0, pn, nil)

	r, changed, err := e.Reconcile(ctx, phone("+32474000001"), u2, pn, domain.Uncertain)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotEqual(t, phoneRow.ID, r.ID)
	assert.NotEqual(t, pniRow.ID, r.ID)
	assert.Equal(t, u2, r.Aci)
	assert.Equal(t, pn, r.Pni)
	assert.Nil(t, r.E164)

	// The uncertain sighting leaves the number with its owner.
	got, ok := fetch(t, s, phoneRow.ID)
	require.True(t, ok)
	assert.Equal(t, u1, got.Aci)
	assert.Equal(t, phone("+32474000001"), got.E164)

	got, ok = fetch(t, s, pniRow.ID)
	require.True(t, ok)
	assert.Equal(t, u0, got.Aci)
	assert.Nil(t, got.Pni)

	again, changed, err := e.Reconcile(ctx, nil, u2, pn, domain.Uncertain)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, r.ID, again.ID)
}

func TestReconcile_MergeConservesRows(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	aci, pni := newUUID(), newUUID()
	aciRow := seed(t, s, aci, nil, nil)
	pniRow := seed(t, s, nil, pni, nil)

	aciSess, err := s.DMSession(ctx, aciRow.ID)
	require.NoError(t, err)
	pniSess, err := s.DMSession(ctx, pniRow.ID)
	require.NoError(t, err)
	shared, err := s.InsertMessage(ctx, aciSess, aciRow.ID, "one", time.Now())
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, pniSess, pniRow.ID, "two", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.AddGroupMember(ctx, "g", pniRow.ID))
	require.NoError(t, s.AddReaction(ctx, shared, pniRow.ID, "+1"))
	require.NoError(t, s.AddReceipt(ctx, shared, pniRow.ID, true))

	before, err := s.RecipientReferences(ctx, aciRow.ID)
	require.NoError(t, err)
	loser, err := s.RecipientReferences(ctx, pniRow.ID)
	require.NoError(t, err)

	r, changed, err := e.Reconcile(ctx, nil, aci, pni, domain.Certain)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, aciRow.ID, r.ID)
	assert.Equal(t, pni, r.Pni)

	_, ok := fetch(t, s, pniRow.ID)
	assert.False(t, ok)

	after, err := s.RecipientReferences(ctx, aciRow.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Messages+loser.Messages, after.Messages)
	assert.Equal(t, before.Memberships+loser.Memberships, after.Memberships)
	assert.Equal(t, before.Reactions+loser.Reactions, after.Reactions)
	assert.Equal(t, before.Receipts+loser.Receipts, after.Receipts)
	assert.EqualValues(t, 1, after.Sessions)

	n, err := s.SessionMessageCount(ctx, aciSess)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestReconcile_NoIdentifiers(t *testing.T) {
	e, _ := newEngine(t)
	_, _, err := e.Reconcile(context.Background(), nil, nil, nil, domain.Certain)
	require.Error(t, err)
	assert.True(t, domain.IsInvariant(err))
}

func TestReconcileAddress(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	pni := uuid.New()

	r, _, err := e.ReconcileAddress(ctx, domain.PniAddress(pni), domain.Certain)
	require.NoError(t, err)
	require.NotNil(t, r.Pni)
	assert.Equal(t, pni, *r.Pni)
	assert.Nil(t, r.Aci)

	aci := uuid.New()
	r, _, err = e.ReconcileAddress(ctx, domain.AciAddress(aci), domain.Certain)
	require.NoError(t, err)
	require.NotNil(t, r.Aci)
	assert.Equal(t, aci, *r.Aci)

	_, _, err = e.ReconcileAddress(ctx, "not-a-uuid", domain.Certain)
	assert.Error(t, err)
}
