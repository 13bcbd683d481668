package domain

import (
	interfaces "keyward/internal/domain/interfaces"
	types "keyward/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	IdentityScope          = types.IdentityScope
	Address                = types.Address
	DeviceID               = types.DeviceID
	PhoneNumber            = types.PhoneNumber
	TrustLevel             = types.TrustLevel
	Fingerprint            = types.Fingerprint
	RecipientID            = types.RecipientID
	Recipient              = types.Recipient
	Profile                = types.Profile
	UnidentifiedAccessMode = types.UnidentifiedAccessMode
	MergeReport            = types.MergeReport
	X25519Public           = types.X25519Public
	X25519Private          = types.X25519Private
	KeyPair                = types.KeyPair
	IdentityKey            = types.IdentityKey
	IdentityKeyPair        = types.IdentityKeyPair
	PreKeyID               = types.PreKeyID
	SignedPreKeyID         = types.SignedPreKeyID
	KyberPreKeyID          = types.KyberPreKeyID
	PreKeyRecord           = types.PreKeyRecord
	SignedPreKeyRecord     = types.SignedPreKeyRecord
	KyberPreKeyRecord      = types.KyberPreKeyRecord
	SenderKeyRecord        = types.SenderKeyRecord
	AccountProfile         = types.AccountProfile
	Credentials            = types.Credentials
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	RecipientTx           = interfaces.RecipientTx
	RecipientStore        = interfaces.RecipientStore
	LocalIdentityStore    = interfaces.LocalIdentityStore
	AccountStore          = interfaces.AccountStore
	IdentityRecordStore   = interfaces.IdentityRecordStore
	SessionRecordStore    = interfaces.SessionRecordStore
	PreKeyRecordStore     = interfaces.PreKeyRecordStore
	SenderKeyRecordStore  = interfaces.SenderKeyRecordStore
	ProtocolRecordStore   = interfaces.ProtocolRecordStore
	Reconciler            = interfaces.Reconciler
	SelfRecipientProvider = interfaces.SelfRecipientProvider
)

// Constants re-exported from the types subpackage.
const (
	ScopeAccount     = types.ScopeAccount
	ScopePhoneNumber = types.ScopePhoneNumber
	PrimaryDeviceID  = types.PrimaryDeviceID
	Certain          = types.Certain
	Uncertain        = types.Uncertain
	KeyTypeDJB       = types.KeyTypeDJB
)

// Functions re-exported from the types subpackage.
var (
	Scopes               = types.Scopes
	ParseIdentityScope   = types.ParseIdentityScope
	AciAddress           = types.AciAddress
	PniAddress           = types.PniAddress
	ParseAddress         = types.ParseAddress
	ParsePhoneNumber     = types.ParsePhoneNumber
	ParseIdentityKey     = types.ParseIdentityKey
	ParseIdentityKeyPair = types.ParseIdentityKeyPair
	EqualUUID            = types.EqualUUID
	EqualPhone           = types.EqualPhone
	ErrInvalidKey        = types.ErrInvalidKey
)
