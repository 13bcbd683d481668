package protocol

import (
	"context"

	"github.com/google/uuid"

	"keyward/internal/domain"
)

// Scoped is a Store view fixed to one identity scope.
type Scoped struct {
	s     *Store
	scope domain.IdentityScope
}

// For returns the view of scope.
func (s *Store) For(scope domain.IdentityScope) *Scoped { return &Scoped{s: s, scope: scope} }

// Aci is the account identity view.
func (s *Store) Aci() *Scoped { return s.For(domain.ScopeAccount) }

// Pni is the phone-number identity view.
func (s *Store) Pni() *Scoped { return s.For(domain.ScopePhoneNumber) }

func (v *Scoped) Scope() domain.IdentityScope { return v.scope }

func (v *Scoped) IdentityKeyPair() (domain.IdentityKeyPair, error) {
	return v.s.IdentityKeyPair(v.scope)
}

func (v *Scoped) LocalRegistrationID() (uint32, error) { return v.s.LocalRegistrationID(v.scope) }

func (v *Scoped) IsTrusted(ctx context.Context, address domain.Address, key domain.IdentityKey) (bool, error) {
	return v.s.IsTrusted(ctx, v.scope, address, key)
}

func (v *Scoped) SaveIdentity(ctx context.Context, address domain.Address, key domain.IdentityKey) (bool, error) {
	return v.s.SaveIdentity(ctx, v.scope, address, key)
}

func (v *Scoped) GetIdentity(ctx context.Context, address domain.Address) (domain.IdentityKey, bool, error) {
	return v.s.GetIdentity(ctx, v.scope, address)
}

func (v *Scoped) DeleteIdentity(ctx context.Context, address domain.Address) error {
	return v.s.DeleteIdentity(ctx, v.scope, address)
}

func (v *Scoped) LoadSession(ctx context.Context, address domain.Address, device domain.DeviceID) ([]byte, error) {
	return v.s.LoadSession(ctx, v.scope, address, device)
}

func (v *Scoped) ContainsSession(ctx context.Context, address domain.Address, device domain.DeviceID) (bool, error) {
	return v.s.ContainsSession(ctx, v.scope, address, device)
}

func (v *Scoped) StoreSession(
	ctx context.Context,
	address domain.Address,
	device domain.DeviceID,
	record []byte,
) error {
	return v.s.StoreSession(ctx, v.scope, address, device, record)
}

func (v *Scoped) DeleteSession(ctx context.Context, address domain.Address, device domain.DeviceID) error {
	return v.s.DeleteSession(ctx, v.scope, address, device)
}

func (v *Scoped) DeleteAllSessions(ctx context.Context, address domain.Address) (int64, error) {
	return v.s.DeleteAllSessions(ctx, v.scope, address)
}

func (v *Scoped) SubDeviceSessions(ctx context.Context, address domain.Address) ([]domain.DeviceID, error) {
	return v.s.SubDeviceSessions(ctx, v.scope, address)
}

func (v *Scoped) NextPreKeyID(ctx context.Context) (domain.PreKeyID, error) {
	return v.s.NextPreKeyID(ctx)
}

func (v *Scoped) SavePreKey(ctx context.Context, rec domain.PreKeyRecord) error {
	return v.s.SavePreKey(ctx, v.scope, rec)
}

func (v *Scoped) LoadPreKey(ctx context.Context, id domain.PreKeyID) (domain.PreKeyRecord, error) {
	return v.s.LoadPreKey(ctx, v.scope, id)
}

func (v *Scoped) RemovePreKey(ctx context.Context, id domain.PreKeyID) error {
	return v.s.RemovePreKey(ctx, v.scope, id)
}

func (v *Scoped) NextSignedPreKeyID(ctx context.Context) (domain.SignedPreKeyID, error) {
	return v.s.NextSignedPreKeyID(ctx)
}

func (v *Scoped) SaveSignedPreKey(ctx context.Context, rec domain.SignedPreKeyRecord) error {
	return v.s.SaveSignedPreKey(ctx, v.scope, rec)
}

func (v *Scoped) LoadSignedPreKey(ctx context.Context, id domain.SignedPreKeyID) (domain.SignedPreKeyRecord, error) {
	return v.s.LoadSignedPreKey(ctx, v.scope, id)
}

func (v *Scoped) RemoveSignedPreKey(ctx context.Context, id domain.SignedPreKeyID) error {
	return v.s.RemoveSignedPreKey(ctx, v.scope, id)
}

func (v *Scoped) ListSignedPreKeys(ctx context.Context) ([]domain.SignedPreKeyRecord, error) {
	return v.s.ListSignedPreKeys(ctx, v.scope)
}

func (v *Scoped) NextKyberPreKeyID(ctx context.Context) (domain.KyberPreKeyID, error) {
	return v.s.NextKyberPreKeyID(ctx)
}

func (v *Scoped) SaveKyberPreKey(ctx context.Context, rec domain.KyberPreKeyRecord) error {
	return v.s.SaveKyberPreKey(ctx, v.scope, rec)
}

func (v *Scoped) LoadKyberPreKey(ctx context.Context, id domain.KyberPreKeyID) (domain.KyberPreKeyRecord, error) {
	return v.s.LoadKyberPreKey(ctx, v.scope, id)
}

func (v *Scoped) MarkKyberPreKeyUsed(ctx context.Context, id domain.KyberPreKeyID) error {
	return v.s.MarkKyberPreKeyUsed(ctx, v.scope, id)
}

func (v *Scoped) LoadLastResortKyberPreKeys(ctx context.Context) ([]domain.KyberPreKeyRecord, error) {
	return v.s.LoadLastResortKyberPreKeys(ctx, v.scope)
}

func (v *Scoped) StoreSenderKey(ctx context.Context, rec domain.SenderKeyRecord) error {
	return v.s.StoreSenderKey(ctx, v.scope, rec)
}

func (v *Scoped) LoadSenderKey(
	ctx context.Context,
	address domain.Address,
	device domain.DeviceID,
	distributionID uuid.UUID,
) (domain.SenderKeyRecord, error) {
	return v.s.LoadSenderKey(ctx, v.scope, address, device, distributionID)
}

func (v *Scoped) SaveNewPreKeys(ctx context.Context, recs []domain.PreKeyRecord) ([]domain.PreKeyRecord, error) {
	return v.s.SaveNewPreKeys(ctx, v.scope, recs)
}

func (v *Scoped) SaveNewSignedPreKey(ctx context.Context, rec domain.SignedPreKeyRecord) (domain.SignedPreKeyRecord, error) {
	return v.s.SaveNewSignedPreKey(ctx, v.scope, rec)
}

func (v *Scoped) SaveNewKyberPreKeys(ctx context.Context, recs []domain.KyberPreKeyRecord) ([]domain.KyberPreKeyRecord, error) {
	return v.s.SaveNewKyberPreKeys(ctx, v.scope, recs)
}
