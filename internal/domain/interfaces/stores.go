package interfaces

import (
	"context"

	"github.com/google/uuid"

	domaintypes "keyward/internal/domain/types"
)

// RecipientTx is the recipients table as seen from inside one transaction.
type RecipientTx interface {
	FetchRecipient(ctx context.Context, id domaintypes.RecipientID) (domaintypes.Recipient, bool, error)
	FetchByAci(ctx context.Context, aci uuid.UUID) (domaintypes.Recipient, bool, error)
	FetchByPni(ctx context.Context, pni uuid.UUID) (domaintypes.Recipient, bool, error)
	FetchByE164(ctx context.Context, e164 domaintypes.PhoneNumber) (domaintypes.Recipient, bool, error)

	CreateRecipient(
		ctx context.Context,
		aci, pni *uuid.UUID,
		e164 *domaintypes.PhoneNumber,
	) (domaintypes.Recipient, error)
	SetAci(ctx context.Context, id domaintypes.RecipientID, aci *uuid.UUID) error
	SetPni(ctx context.Context, id domaintypes.RecipientID, pni *uuid.UUID) error
	SetE164(ctx context.Context, id domaintypes.RecipientID, e164 *domaintypes.PhoneNumber) error

	// MergeRecipients folds from into into and deletes from when it carries
	// no identifiers afterwards.
	MergeRecipients(
		ctx context.Context,
		from, into domaintypes.RecipientID,
	) (domaintypes.MergeReport, error)
}

// RecipientStore persists recipients.
type RecipientStore interface {
	// WithRecipientTx runs fn in one transaction, committing when fn
	// returns nil.
	WithRecipientTx(ctx context.Context, fn func(RecipientTx) error) error
	FetchRecipient(ctx context.Context, id domaintypes.RecipientID) (domaintypes.Recipient, bool, error)
	UpdateProfile(ctx context.Context, id domaintypes.RecipientID, profile domaintypes.Profile) error
}

// LocalIdentityStore persists this device's identity key pairs, registration
// ids and service credentials as whole files.
type LocalIdentityStore interface {
	LoadIdentityKeyPair(scope domaintypes.IdentityScope) (domaintypes.IdentityKeyPair, bool, error)
	SaveIdentityKeyPair(scope domaintypes.IdentityScope, pair domaintypes.IdentityKeyPair) error
	LoadRegistrationID(scope domaintypes.IdentityScope) (uint32, bool, error)
	SaveRegistrationID(scope domaintypes.IdentityScope, id uint32) error
	LoadCredentials() (domaintypes.Credentials, bool, error)
	SaveCredentials(creds domaintypes.Credentials) error
}

// AccountStore persists the identifiers this device registered with.
type AccountStore interface {
	SaveAccountProfile(profile domaintypes.AccountProfile) error
	LoadAccountProfile() (domaintypes.AccountProfile, bool, error)
}

// IdentityRecordStore keeps the peer identity keys seen per scope.
type IdentityRecordStore interface {
	LoadIdentityRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		address domaintypes.Address,
	) (domaintypes.IdentityKey, bool, error)
	// SaveIdentityRecord reports whether an existing, different key was
	// replaced.
	SaveIdentityRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		address domaintypes.Address,
		key domaintypes.IdentityKey,
	) (bool, error)
	DeleteIdentityRecord(ctx context.Context, scope domaintypes.IdentityScope, address domaintypes.Address) error
}

// SessionRecordStore keeps per-device ratchet sessions per scope.
type SessionRecordStore interface {
	LoadSessionRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		address domaintypes.Address,
		device domaintypes.DeviceID,
	) ([]byte, error)
	StoreSessionRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		address domaintypes.Address,
		device domaintypes.DeviceID,
		record []byte,
	) error
	DeleteSessionRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		address domaintypes.Address,
		device domaintypes.DeviceID,
	) error
	DeleteAllSessionRecords(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		address domaintypes.Address,
	) (int64, error)
	SessionDevices(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		address domaintypes.Address,
	) ([]domaintypes.DeviceID, error)
}

// PreKeyRecordStore keeps one-time, signed and kyber pre-keys per scope.
// The Next* allocators look across both scopes.
type PreKeyRecordStore interface {
	NextPreKeyID(ctx context.Context) (domaintypes.PreKeyID, error)
	SavePreKeyRecord(ctx context.Context, scope domaintypes.IdentityScope, rec domaintypes.PreKeyRecord) error
	LoadPreKeyRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		id domaintypes.PreKeyID,
	) (domaintypes.PreKeyRecord, error)
	RemovePreKeyRecord(ctx context.Context, scope domaintypes.IdentityScope, id domaintypes.PreKeyID) error

	NextSignedPreKeyID(ctx context.Context) (domaintypes.SignedPreKeyID, error)
	SaveSignedPreKeyRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		rec domaintypes.SignedPreKeyRecord,
	) error
	LoadSignedPreKeyRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		id domaintypes.SignedPreKeyID,
	) (domaintypes.SignedPreKeyRecord, error)
	RemoveSignedPreKeyRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		id domaintypes.SignedPreKeyID,
	) error
	ListSignedPreKeyRecords(
		ctx context.Context,
		scope domaintypes.IdentityScope,
	) ([]domaintypes.SignedPreKeyRecord, error)

	NextKyberPreKeyID(ctx context.Context) (domaintypes.KyberPreKeyID, error)
	SaveKyberPreKeyRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		rec domaintypes.KyberPreKeyRecord,
	) error
	LoadKyberPreKeyRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		id domaintypes.KyberPreKeyID,
	) (domaintypes.KyberPreKeyRecord, error)
	RemoveKyberPreKeyRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		id domaintypes.KyberPreKeyID,
	) error
	ListLastResortKyberPreKeyRecords(
		ctx context.Context,
		scope domaintypes.IdentityScope,
	) ([]domaintypes.KyberPreKeyRecord, error)
}

// SenderKeyRecordStore keeps group sender-key state per scope.
type SenderKeyRecordStore interface {
	StoreSenderKeyRecord(ctx context.Context, scope domaintypes.IdentityScope, rec domaintypes.SenderKeyRecord) error
	LoadSenderKeyRecord(
		ctx context.Context,
		scope domaintypes.IdentityScope,
		address domaintypes.Address,
		device domaintypes.DeviceID,
		distributionID uuid.UUID,
	) (domaintypes.SenderKeyRecord, error)
}

// ProtocolRecordStore is the relational half of the protocol store.
type ProtocolRecordStore interface {
	IdentityRecordStore
	SessionRecordStore
	PreKeyRecordStore
	SenderKeyRecordStore
}
