package prekey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"keyward/internal/crypto"
	"keyward/internal/domain"
)

// DefaultBatchSize is the number of one-time and kyber pre-keys generated per
// refresh.
const DefaultBatchSize = 100

// ErrNoSignedPreKey is returned when a bundle is requested before any signed
// pre-key exists.
var ErrNoSignedPreKey = errors.New("no signed pre-key available")

// KeyStore is the subset of the protocol store the service writes to. The
// SaveNew* methods assign ids and store the records as one step, so
// concurrent refreshes of different scopes never share an id.
type KeyStore interface {
	IdentityKeyPair(scope domain.IdentityScope) (domain.IdentityKeyPair, error)

	SaveNewPreKeys(ctx context.Context, scope domain.IdentityScope, recs []domain.PreKeyRecord) ([]domain.PreKeyRecord, error)

	SaveNewSignedPreKey(
		ctx context.Context,
		scope domain.IdentityScope,
		rec domain.SignedPreKeyRecord,
	) (domain.SignedPreKeyRecord, error)
	ListSignedPreKeys(ctx context.Context, scope domain.IdentityScope) ([]domain.SignedPreKeyRecord, error)

	SaveNewKyberPreKeys(
		ctx context.Context,
		scope domain.IdentityScope,
		recs []domain.KyberPreKeyRecord,
	) ([]domain.KyberPreKeyRecord, error)
	LoadLastResortKyberPreKeys(ctx context.Context, scope domain.IdentityScope) ([]domain.KyberPreKeyRecord, error)
}

// Service manages pre-key generation.
type Service struct {
	keys KeyStore
	log  zerolog.Logger
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

func New(keys KeyStore, opts ...Option) *Service {
	s := &Service{keys: keys, log: zerolog.Nop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Refreshed summarizes one refresh.
type Refreshed struct {
	Scope          domain.IdentityScope   `json:"scope"`
	PreKeyIDs      []domain.PreKeyID      `json:"pre_key_ids"`
	SignedPreKeyID domain.SignedPreKeyID  `json:"signed_pre_key_id"`
	KyberPreKeyIDs []domain.KyberPreKeyID `json:"kyber_pre_key_ids"`
	LastResortID   domain.KyberPreKeyID   `json:"last_resort_id"`
}

// Refresh generates n one-time pre-keys, n one-time kyber pre-keys, a new
// signed pre-key and a new last-resort kyber pre-key for scope.
func (s *Service) Refresh(ctx context.Context, scope domain.IdentityScope, n int) (Refreshed, error) {
	out := Refreshed{Scope: scope}

	pks, err := s.GeneratePreKeys(ctx, scope, n)
	if err != nil {
		return out, err
	}
	for _, pk := range pks {
		out.PreKeyIDs = append(out.PreKeyIDs, pk.ID)
	}

	spk, err := s.GenerateSignedPreKey(ctx, scope)
	if err != nil {
		return out, err
	}
	out.SignedPreKeyID = spk.ID

	kks, err := s.GenerateKyberPreKeys(ctx, scope, n, false)
	if err != nil {
		return out, err
	}
	for _, k := range kks {
		out.KyberPreKeyIDs = append(out.KyberPreKeyIDs, k.ID)
	}

	lr, err := s.GenerateKyberPreKeys(ctx, scope, 1, true)
	if err != nil {
		return out, err
	}
	out.LastResortID = lr[0].ID

	s.log.Info().
		Stringer("scope", scope).
		Int("pre_keys", len(out.PreKeyIDs)).
		Uint32("signed_pre_key", uint32(out.SignedPreKeyID)).
		Int("kyber_pre_keys", len(out.KyberPreKeyIDs)).
		Msg("pre-keys refreshed")
	return out, nil
}

// GeneratePreKeys creates and stores n one-time pre-keys with consecutive ids.
func (s *Service) GeneratePreKeys(ctx context.Context, scope domain.IdentityScope, n int) ([]domain.PreKeyRecord, error) {
	recs := make([]domain.PreKeyRecord, 0, n)
	for i := 0; i < n; i++ {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		recs = append(recs, domain.PreKeyRecord{KeyPair: kp})
	}
	return s.keys.SaveNewPreKeys(ctx, scope, recs)
}

// GenerateSignedPreKey creates and stores a signed pre-key, signed by the
// identity key of scope.
func (s *Service) GenerateSignedPreKey(ctx context.Context, scope domain.IdentityScope) (domain.SignedPreKeyRecord, error) {
	identity, err := s.keys.IdentityKeyPair(scope)
	if err != nil {
		return domain.SignedPreKeyRecord{}, err
	}
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.SignedPreKeyRecord{}, err
	}
	return s.keys.SaveNewSignedPreKey(ctx, scope, domain.SignedPreKeyRecord{
		KeyPair:   kp,
		Signature: crypto.SignWithIdentity(identity, serializePublic(kp.Public)),
		Timestamp: s.now().UnixMilli(),
	})
}

// GenerateKyberPreKeys creates and stores n signed kyber pre-keys.
func (s *Service) GenerateKyberPreKeys(
	ctx context.Context,
	scope domain.IdentityScope,
	n int,
	lastResort bool,
) ([]domain.KyberPreKeyRecord, error) {
	identity, err := s.keys.IdentityKeyPair(scope)
	if err != nil {
		return nil, err
	}
	recs := make([]domain.KyberPreKeyRecord, 0, n)
	for i := 0; i < n; i++ {
		pair, err := crypto.GenerateKyberKeyPair()
		if err != nil {
			return nil, err
		}
		recs = append(recs, domain.KyberPreKeyRecord{
			KeyPair:    pair,
			Signature:  crypto.SignWithIdentity(identity, crypto.KyberPublic(pair)),
			Timestamp:  s.now().UnixMilli(),
			LastResort: lastResort,
		})
	}
	return s.keys.SaveNewKyberPreKeys(ctx, scope, recs)
}

// Bundle is the public half of the pre-keys published for one scope.
type Bundle struct {
	IdentityKey           []byte                `json:"identity_key"`
	SignedPreKeyID        domain.SignedPreKeyID `json:"signed_pre_key_id"`
	SignedPreKey          []byte                `json:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature"`
	KyberPreKeyID         domain.KyberPreKeyID  `json:"kyber_pre_key_id,omitempty"`
	KyberPreKey           []byte                `json:"kyber_pre_key,omitempty"`
	KyberPreKeySignature  []byte                `json:"kyber_pre_key_signature,omitempty"`
}

// LoadBundle builds the public bundle of scope from its newest signed pre-key
// and newest last-resort kyber pre-key.
func (s *Service) LoadBundle(ctx context.Context, scope domain.IdentityScope) (Bundle, error) {
	identity, err := s.keys.IdentityKeyPair(scope)
	if err != nil {
		return Bundle{}, err
	}
	spks, err := s.keys.ListSignedPreKeys(ctx, scope)
	if err != nil {
		return Bundle{}, err
	}
	if len(spks) == 0 {
		return Bundle{}, fmt.Errorf("%s: %w", scope, ErrNoSignedPreKey)
	}
	spk := spks[len(spks)-1]

	b := Bundle{
		IdentityKey:           identity.IdentityKey().Serialize(),
		SignedPreKeyID:        spk.ID,
		SignedPreKey:          serializePublic(spk.KeyPair.Public),
		SignedPreKeySignature: spk.Signature,
	}
	kyber, err := s.keys.LoadLastResortKyberPreKeys(ctx, scope)
	if err != nil {
		return Bundle{}, err
	}
	if len(kyber) > 0 {
		k := kyber[len(kyber)-1]
		b.KyberPreKeyID = k.ID
		b.KyberPreKey = crypto.KyberPublic(k.KeyPair)
		b.KyberPreKeySignature = k.Signature
	}
	return b, nil
}

func serializePublic(pub domain.X25519Public) []byte {
	return domain.IdentityKey{Public: pub}.Serialize()
}
