package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"keyward/internal/crypto"
	"keyward/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)

	// ErrAlreadyRegistered is returned by Bootstrap when an account exists.
	ErrAlreadyRegistered = errors.New("account already registered on this device")
)

// LocalIdentity is the part of the protocol store holding this device's
// identity key pairs.
type LocalIdentity interface {
	SetLocalIdentity(scope domain.IdentityScope, pair domain.IdentityKeyPair, regID uint32) error
	IdentityKeyPair(scope domain.IdentityScope) (domain.IdentityKeyPair, error)
}

// Service manages the local account.
type Service struct {
	identity   LocalIdentity
	files      domain.LocalIdentityStore
	accounts   domain.AccountStore
	reconciler domain.Reconciler
	recipients domain.RecipientStore
	log        zerolog.Logger

	mu   sync.Mutex
	self *domain.Recipient
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// New returns an account service.
func New(
	identity LocalIdentity,
	files domain.LocalIdentityStore,
	accounts domain.AccountStore,
	reconciler domain.Reconciler,
	recipients domain.RecipientStore,
	opts ...Option,
) *Service {
	s := &Service{
		identity:   identity,
		files:      files,
		accounts:   accounts,
		reconciler: reconciler,
		recipients: recipients,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Registration is what the service told us when this device registered or
// was linked.
type Registration struct {
	Aci      uuid.UUID
	Pni      uuid.UUID
	E164     domain.PhoneNumber
	DeviceID domain.DeviceID
}

// Fingerprints are short fingerprints of both identity keys.
type Fingerprints struct {
	Aci domain.Fingerprint
	Pni domain.Fingerprint
}

// Bootstrap generates and persists the local identity for a new
// registration and returns the fingerprints of both identity keys.
func (s *Service) Bootstrap(ctx context.Context, reg Registration) (Fingerprints, error) {
	if _, ok, err := s.accounts.LoadAccountProfile(); err != nil {
		return Fingerprints{}, err
	} else if ok {
		return Fingerprints{}, ErrAlreadyRegistered
	}
	if reg.Aci == uuid.Nil || reg.Pni == uuid.Nil {
		return Fingerprints{}, errors.New("registration needs both an aci and a pni")
	}
	if reg.DeviceID == 0 {
		reg.DeviceID = domain.PrimaryDeviceID
	}

	var fp Fingerprints
	for _, scope := range domain.Scopes() {
		pair, err := crypto.GenerateIdentityKeyPair()
		if err != nil {
			return Fingerprints{}, err
		}
		regID, err := crypto.GenerateRegistrationID()
		if err != nil {
			return Fingerprints{}, err
		}
		if err := s.identity.SetLocalIdentity(scope, pair, regID); err != nil {
			return Fingerprints{}, fmt.Errorf("store %s identity: %w", scope, err)
		}
		if scope == domain.ScopeAccount {
			fp.Aci = crypto.IdentityFingerprint(pair.IdentityKey())
		} else {
			fp.Pni = crypto.IdentityFingerprint(pair.IdentityKey())
		}
	}

	creds, err := crypto.GenerateCredentials()
	if err != nil {
		return Fingerprints{}, err
	}
	if err := s.files.SaveCredentials(creds); err != nil {
		return Fingerprints{}, fmt.Errorf("store credentials: %w", err)
	}

	profile := domain.AccountProfile{Aci: reg.Aci, Pni: reg.Pni, E164: reg.E164, DeviceID: reg.DeviceID}
	if err := s.accounts.SaveAccountProfile(profile); err != nil {
		return Fingerprints{}, fmt.Errorf("store account profile: %w", err)
	}
	s.InvalidateSelfRecipient()

	s.log.Info().
		Str("aci", reg.Aci.String()).
		Str("pni", reg.Pni.String()).
		Uint32("device", uint32(reg.DeviceID)).
		Msg("account bootstrapped")
	return fp, nil
}

// Account returns the registered identifiers.
func (s *Service) Account() (domain.AccountProfile, error) {
	p, ok, err := s.accounts.LoadAccountProfile()
	if err != nil {
		return domain.AccountProfile{}, err
	}
	if !ok {
		return domain.AccountProfile{}, domain.NotFound(domain.KindAccount, "self")
	}
	return p, nil
}

// Credentials returns the service credentials generated at bootstrap.
func (s *Service) Credentials() (domain.Credentials, error) {
	c, ok, err := s.files.LoadCredentials()
	if err != nil {
		return domain.Credentials{}, err
	}
	if !ok {
		return domain.Credentials{}, domain.NotFound(domain.KindCredentials, "self")
	}
	return c, nil
}

// Fingerprints returns short fingerprints of both local identity keys.
func (s *Service) Fingerprints() (Fingerprints, error) {
	aci, err := s.identity.IdentityKeyPair(domain.ScopeAccount)
	if err != nil {
		return Fingerprints{}, err
	}
	pni, err := s.identity.IdentityKeyPair(domain.ScopePhoneNumber)
	if err != nil {
		return Fingerprints{}, err
	}
	return Fingerprints{
		Aci: crypto.IdentityFingerprint(aci.IdentityKey()),
		Pni: crypto.IdentityFingerprint(pni.IdentityKey()),
	}, nil
}

// SelfRecipient returns the recipient standing for this account, resolving
// it on first use.
func (s *Service) SelfRecipient(ctx context.Context) (domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.self != nil {
		return *s.self, nil
	}

	p, err := s.Account()
	if err != nil {
		return domain.Recipient{}, err
	}
	var e164 *domain.PhoneNumber
	if p.E164 != "" {
		e164 = &p.E164
	}
	r, _, err := s.reconciler.Reconcile(ctx, e164, &p.Aci, &p.Pni, domain.Certain)
	if err != nil {
		return domain.Recipient{}, err
	}
	s.self = &r
	return r, nil
}

// InvalidateSelfRecipient drops the cached self recipient.
func (s *Service) InvalidateSelfRecipient() {
	s.mu.Lock()
	s.self = nil
	s.mu.Unlock()
}

// Reconcile resolves identifiers to one recipient through the shared
// reconciler. Any change may have rewritten the self row, so a change drops
// the cached self recipient.
func (s *Service) Reconcile(
	ctx context.Context,
	e164 *domain.PhoneNumber,
	aci, pni *uuid.UUID,
	trust domain.TrustLevel,
) (domain.Recipient, bool, error) {
	r, changed, err := s.reconciler.Reconcile(ctx, e164, aci, pni, trust)
	if err != nil {
		return domain.Recipient{}, false, err
	}
	if changed {
		s.InvalidateSelfRecipient()
	}
	return r, changed, nil
}

// ReconcileAddress resolves a protocol address, either a bare ACI or
// "PNI:<uuid>".
func (s *Service) ReconcileAddress(
	ctx context.Context,
	addr domain.Address,
	trust domain.TrustLevel,
) (domain.Recipient, bool, error) {
	id, scope, err := domain.ParseAddress(string(addr))
	if err != nil {
		return domain.Recipient{}, false, err
	}
	if scope == domain.ScopePhoneNumber {
		return s.Reconcile(ctx, nil, nil, &id, trust)
	}
	return s.Reconcile(ctx, nil, &id, nil, trust)
}

// SetNumber records a phone number change for this account. The new pni
// comes with the number.
func (s *Service) SetNumber(ctx context.Context, e164 domain.PhoneNumber, pni uuid.UUID) (domain.Recipient, error) {
	p, err := s.Account()
	if err != nil {
		return domain.Recipient{}, err
	}
	old := p.E164
	p.E164 = e164
	p.Pni = pni
	if err := s.accounts.SaveAccountProfile(p); err != nil {
		return domain.Recipient{}, err
	}
	s.InvalidateSelfRecipient()

	s.log.Info().
		Str("old_e164", string(old)).
		Str("e164", string(e164)).
		Str("pni", pni.String()).
		Msg("self phone number changed")
	return s.SelfRecipient(ctx)
}

// UpdateSelfProfile replaces the profile fields of the self recipient.
func (s *Service) UpdateSelfProfile(ctx context.Context, profile domain.Profile) error {
	self, err := s.SelfRecipient(ctx)
	if err != nil {
		return err
	}
	if err := s.recipients.UpdateProfile(ctx, self.ID, profile); err != nil {
		return err
	}
	s.InvalidateSelfRecipient()
	return nil
}

// CheckPassphrase enforces a basic strength policy on the storage
// passphrase.
func CheckPassphrase(passphrase string) error {
	if !isSecurePassphrase(passphrase) {
		return ErrWeakPassphrase
	}
	return nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertions that Service implements domain.SelfRecipientProvider
// and domain.Reconciler.
var (
	_ domain.SelfRecipientProvider = (*Service)(nil)
	_ domain.Reconciler            = (*Service)(nil)
)
