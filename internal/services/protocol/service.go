package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"keyward/internal/domain"
)

// Store serves protocol records for both identity scopes.
type Store struct {
	mu       sync.RWMutex
	identity domain.LocalIdentityStore
	records  domain.ProtocolRecordStore
	log      zerolog.Logger

	// Loaded local identity material, filled on first use.
	pairs  map[domain.IdentityScope]domain.IdentityKeyPair
	regIDs map[domain.IdentityScope]uint32
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

// New returns a protocol store over the given identity files and records.
func New(identity domain.LocalIdentityStore, records domain.ProtocolRecordStore, opts ...Option) *Store {
	s := &Store{
		identity: identity,
		records:  records,
		log:      zerolog.Nop(),
		pairs:    map[domain.IdentityScope]domain.IdentityKeyPair{},
		regIDs:   map[domain.IdentityScope]uint32{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func checkScope(scope domain.IdentityScope) error {
	if !scope.Valid() {
		return domain.Invariant("unknown identity scope", "scope", fmt.Sprint(int(scope)))
	}
	return nil
}

// Local identity.

// SetLocalIdentity writes the identity key pair and registration id of
// scope. Readers never observe one without the other.
func (s *Store) SetLocalIdentity(scope domain.IdentityScope, pair domain.IdentityKeyPair, regID uint32) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.identity.SaveIdentityKeyPair(scope, pair); err != nil {
		return err
	}
	if err := s.identity.SaveRegistrationID(scope, regID); err != nil {
		return err
	}
	s.pairs[scope] = pair
	s.regIDs[scope] = regID
	return nil
}

// IdentityKeyPair returns this device's identity key pair for scope.
func (s *Store) IdentityKeyPair(scope domain.IdentityScope) (domain.IdentityKeyPair, error) {
	if err := checkScope(scope); err != nil {
		return domain.IdentityKeyPair{}, err
	}
	s.mu.RLock()
	pair, ok := s.pairs[scope]
	s.mu.RUnlock()
	if ok {
		return pair, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pair, ok := s.pairs[scope]; ok {
		return pair, nil
	}
	pair, ok, err := s.identity.LoadIdentityKeyPair(scope)
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	if !ok {
		return domain.IdentityKeyPair{}, domain.NotFound(domain.KindLocalIdentity, scope)
	}
	s.pairs[scope] = pair
	return pair, nil
}

// LocalRegistrationID returns this device's registration id for scope.
func (s *Store) LocalRegistrationID(scope domain.IdentityScope) (uint32, error) {
	if err := checkScope(scope); err != nil {
		return 0, err
	}
	s.mu.RLock()
	id, ok := s.regIDs[scope]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.regIDs[scope]; ok {
		return id, nil
	}
	id, ok, err := s.identity.LoadRegistrationID(scope)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.NotFound(domain.KindRegistrationID, scope)
	}
	s.regIDs[scope] = id
	return id, nil
}

// Peer identities.

// IsTrusted trusts a key on first use: true when nothing is stored for
// address, otherwise true only for the stored key.
func (s *Store) IsTrusted(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	key domain.IdentityKey,
) (bool, error) {
	if err := checkScope(scope); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok, err := s.records.LoadIdentityRecord(ctx, scope, address)
	if err != nil {
		return false, err
	}
	return !ok || stored.Equal(key), nil
}

// SaveIdentity stores key for address and reports whether a different key
// was replaced.
func (s *Store) SaveIdentity(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	key domain.IdentityKey,
) (bool, error) {
	if err := checkScope(scope); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	replaced, err := s.records.SaveIdentityRecord(ctx, scope, address, key)
	if err != nil {
		return false, err
	}
	if replaced {
		s.log.Debug().Stringer("scope", scope).Stringer("address", address).Msg("identity key replaced")
	}
	return replaced, nil
}

// GetIdentity returns the stored key of address.
func (s *Store) GetIdentity(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
) (domain.IdentityKey, bool, error) {
	if err := checkScope(scope); err != nil {
		return domain.IdentityKey{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.LoadIdentityRecord(ctx, scope, address)
}

// DeleteIdentity forgets the stored key of address.
func (s *Store) DeleteIdentity(ctx context.Context, scope domain.IdentityScope, address domain.Address) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.DeleteIdentityRecord(ctx, scope, address)
}

// Sessions.

// LoadSession returns the session of (address, device). A missing session
// is a NotFoundError.
func (s *Store) LoadSession(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
) ([]byte, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.LoadSessionRecord(ctx, scope, address, device)
}

// ContainsSession reports whether (address, device) has a session.
func (s *Store) ContainsSession(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
) (bool, error) {
	_, err := s.LoadSession(ctx, scope, address, device)
	switch {
	case err == nil:
		return true, nil
	case domain.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) StoreSession(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
	record []byte,
) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.StoreSessionRecord(ctx, scope, address, device, record)
}

// DeleteSession removes one session; a missing one is a NotFoundError.
func (s *Store) DeleteSession(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.DeleteSessionRecord(ctx, scope, address, device)
}

// DeleteAllSessions removes the sessions of every device of address within
// scope only.
func (s *Store) DeleteAllSessions(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
) (int64, error) {
	if err := checkScope(scope); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.DeleteAllSessionRecords(ctx, scope, address)
}

// SubDeviceSessions lists the non-primary devices of address with a session.
func (s *Store) SubDeviceSessions(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
) ([]domain.DeviceID, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.SessionDevices(ctx, scope, address)
}

// Pre-keys. Ids are allocated across both scopes; the SaveNew* methods hold
// the exclusive lock from allocation until the records are stored.

func (s *Store) NextPreKeyID(ctx context.Context) (domain.PreKeyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.NextPreKeyID(ctx)
}

func (s *Store) SavePreKey(ctx context.Context, scope domain.IdentityScope, rec domain.PreKeyRecord) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.SavePreKeyRecord(ctx, scope, rec)
}

func (s *Store) LoadPreKey(
	ctx context.Context,
	scope domain.IdentityScope,
	id domain.PreKeyID,
) (domain.PreKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return domain.PreKeyRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.LoadPreKeyRecord(ctx, scope, id)
}

func (s *Store) RemovePreKey(ctx context.Context, scope domain.IdentityScope, id domain.PreKeyID) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.RemovePreKeyRecord(ctx, scope, id)
}

func (s *Store) NextSignedPreKeyID(ctx context.Context) (domain.SignedPreKeyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.NextSignedPreKeyID(ctx)
}

func (s *Store) SaveSignedPreKey(ctx context.Context, scope domain.IdentityScope, rec domain.SignedPreKeyRecord) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.SaveSignedPreKeyRecord(ctx, scope, rec)
}

func (s *Store) LoadSignedPreKey(
	ctx context.Context,
	scope domain.IdentityScope,
	id domain.SignedPreKeyID,
) (domain.SignedPreKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return domain.SignedPreKeyRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.LoadSignedPreKeyRecord(ctx, scope, id)
}

func (s *Store) RemoveSignedPreKey(ctx context.Context, scope domain.IdentityScope, id domain.SignedPreKeyID) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.RemoveSignedPreKeyRecord(ctx, scope, id)
}

func (s *Store) ListSignedPreKeys(ctx context.Context, scope domain.IdentityScope) ([]domain.SignedPreKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.ListSignedPreKeyRecords(ctx, scope)
}

func (s *Store) NextKyberPreKeyID(ctx context.Context) (domain.KyberPreKeyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.NextKyberPreKeyID(ctx)
}

func (s *Store) SaveKyberPreKey(ctx context.Context, scope domain.IdentityScope, rec domain.KyberPreKeyRecord) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.SaveKyberPreKeyRecord(ctx, scope, rec)
}

func (s *Store) LoadKyberPreKey(
	ctx context.Context,
	scope domain.IdentityScope,
	id domain.KyberPreKeyID,
) (domain.KyberPreKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return domain.KyberPreKeyRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.LoadKyberPreKeyRecord(ctx, scope, id)
}

// MarkKyberPreKeyUsed consumes a one-time kyber pre-key. Calling it on a
// last-resort key returns ErrLastResortKey and leaves the key in place.
func (s *Store) MarkKyberPreKeyUsed(ctx context.Context, scope domain.IdentityScope, id domain.KyberPreKeyID) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.RemoveKyberPreKeyRecord(ctx, scope, id)
}

func (s *Store) LoadLastResortKyberPreKeys(
	ctx context.Context,
	scope domain.IdentityScope,
) ([]domain.KyberPreKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.ListLastResortKyberPreKeyRecords(ctx, scope)
}

// Sender keys.

func (s *Store) StoreSenderKey(ctx context.Context, scope domain.IdentityScope, rec domain.SenderKeyRecord) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.StoreSenderKeyRecord(ctx, scope, rec)
}

func (s *Store) LoadSenderKey(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
	distributionID uuid.UUID,
) (domain.SenderKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return domain.SenderKeyRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.LoadSenderKeyRecord(ctx, scope, address, device, distributionID)
}

// SaveNewPreKeys numbers recs with consecutive ids following every pre-key
// of either scope and stores them under scope.
func (s *Store) SaveNewPreKeys(
	ctx context.Context,
	scope domain.IdentityScope,
	recs []domain.PreKeyRecord,
) ([]domain.PreKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.records.NextPreKeyID(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PreKeyRecord, 0, len(recs))
	for i, rec := range recs {
		rec.ID = first + domain.PreKeyID(i)
		if err := s.records.SavePreKeyRecord(ctx, scope, rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveNewSignedPreKey gives rec the next signed pre-key id and stores it.
func (s *Store) SaveNewSignedPreKey(
	ctx context.Context,
	scope domain.IdentityScope,
	rec domain.SignedPreKeyRecord,
) (domain.SignedPreKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return domain.SignedPreKeyRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.records.NextSignedPreKeyID(ctx)
	if err != nil {
		return domain.SignedPreKeyRecord{}, err
	}
	rec.ID = id
	if err := s.records.SaveSignedPreKeyRecord(ctx, scope, rec); err != nil {
		return domain.SignedPreKeyRecord{}, err
	}
	return rec, nil
}

// SaveNewKyberPreKeys numbers recs with consecutive kyber ids and stores
// them under scope.
func (s *Store) SaveNewKyberPreKeys(
	ctx context.Context,
	scope domain.IdentityScope,
	recs []domain.KyberPreKeyRecord,
) ([]domain.KyberPreKeyRecord, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.records.NextKyberPreKeyID(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.KyberPreKeyRecord, 0, len(recs))
	for i, rec := range recs {
		rec.ID = first + domain.KyberPreKeyID(i)
		if err := s.records.SaveKyberPreKeyRecord(ctx, scope, rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
