package types

import "github.com/google/uuid"

// RecipientID is the local surrogate key of a recipient.
type RecipientID int64

// UnidentifiedAccessMode records whether sealed-sender delivery is possible.
type UnidentifiedAccessMode int

const (
	UnidentifiedAccessUnknown UnidentifiedAccessMode = iota
	UnidentifiedAccessDisabled
	UnidentifiedAccessEnabled
	UnidentifiedAccessUnrestricted
)

// Profile holds the decrypted profile fields of a recipient.
type Profile struct {
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Key        []byte `json:"key,omitempty"`
}

// Recipient is the local record standing in for one peer.
type Recipient struct {
	ID                     RecipientID            `json:"id"`
	Aci                    *uuid.UUID             `json:"aci,omitempty"`
	Pni                    *uuid.UUID             `json:"pni,omitempty"`
	E164                   *PhoneNumber           `json:"e164,omitempty"`
	Profile                Profile                `json:"profile"`
	IsRegistered           bool                   `json:"is_registered"`
	UnidentifiedAccessMode UnidentifiedAccessMode `json:"unidentified_access_mode"`
	NeedsPniSignature      bool                   `json:"needs_pni_signature"`
}

// IsHusk reports whether the recipient carries none of the three identifiers.
func (r Recipient) IsHusk() bool { return r.Aci == nil && r.Pni == nil && r.E164 == nil }

// Matches reports whether every supplied (non-nil) identifier is set on r.
func (r Recipient) Matches(e164 *PhoneNumber, aci, pni *uuid.UUID) bool {
	if aci != nil && !EqualUUID(r.Aci, aci) {
		return false
	}
	if pni != nil && !EqualUUID(r.Pni, pni) {
		return false
	}
	if e164 != nil && !EqualPhone(r.E164, e164) {
		return false
	}
	return true
}

// EqualUUID compares two optional UUIDs.
func EqualUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EqualPhone compares two optional phone numbers.
func EqualPhone(a, b *PhoneNumber) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MergeReport summarizes the rows moved when one recipient is folded into
// another.
type MergeReport struct {
	From              RecipientID `json:"from"`
	Into              RecipientID `json:"into"`
	Messages          int64       `json:"messages"`
	SessionsMoved     int64       `json:"sessions_moved"`
	SessionsDropped   int64       `json:"sessions_dropped"`
	Memberships       int64       `json:"memberships"`
	Reactions         int64       `json:"reactions"`
	Receipts          int64       `json:"receipts"`
	DroppedDuplicates int64       `json:"dropped_duplicates"`
	Deleted           bool        `json:"deleted"`
}
