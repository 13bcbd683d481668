package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// IdentityScope selects one of the two parallel identity spaces a device
// holds key material for.
type IdentityScope int

const (
	// ScopeAccount is the stable account identity (ACI).
	ScopeAccount IdentityScope = 1
	// ScopePhoneNumber is the rotatable phone-number identity (PNI).
	ScopePhoneNumber IdentityScope = 2
)

// Scopes lists every identity scope in storage order.
func Scopes() []IdentityScope { return []IdentityScope{ScopeAccount, ScopePhoneNumber} }

// String returns the short name of the scope.
func (s IdentityScope) String() string {
	switch s {
	case ScopeAccount:
		return "aci"
	case ScopePhoneNumber:
		return "pni"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Valid reports whether s is one of the known scopes.
func (s IdentityScope) Valid() bool { return s == ScopeAccount || s == ScopePhoneNumber }

// ParseIdentityScope accepts "aci"/"account" and "pni"/"phone-number".
func ParseIdentityScope(s string) (IdentityScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aci", "account":
		return ScopeAccount, nil
	case "pni", "phone-number", "phonenumber":
		return ScopePhoneNumber, nil
	}
	return 0, fmt.Errorf("unknown identity scope %q", s)
}

// Address is the stable protocol address string of a peer. ACI addresses are
// the bare UUID, PNI addresses carry a "PNI:" prefix.
type Address string

const pniAddressPrefix = "PNI:"

// AciAddress returns the protocol address of an account identity.
func AciAddress(aci uuid.UUID) Address { return Address(aci.String()) }

// PniAddress returns the protocol address of a phone-number identity.
func PniAddress(pni uuid.UUID) Address { return Address(pniAddressPrefix + pni.String()) }

// String returns the string form of the address.
func (a Address) String() string { return string(a) }

// ParseAddress splits an address into its UUID and the scope it names.
func ParseAddress(s string) (uuid.UUID, IdentityScope, error) {
	scope := ScopeAccount
	if strings.HasPrefix(s, pniAddressPrefix) {
		scope = ScopePhoneNumber
		s = strings.TrimPrefix(s, pniAddressPrefix)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("parse address: %w", err)
	}
	return id, scope, nil
}

// DeviceID identifies one of a peer's linked devices.
type DeviceID uint32

// PrimaryDeviceID is the device id of an account's primary device.
const PrimaryDeviceID DeviceID = 1

// PhoneNumber is an E.164 formatted phone number.
type PhoneNumber string

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{5,14}$`)

// ParsePhoneNumber validates s as E.164. Spaces, dashes and parentheses are
// stripped first.
func ParsePhoneNumber(s string) (PhoneNumber, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
	if !e164Pattern.MatchString(cleaned) {
		return "", fmt.Errorf("invalid E.164 phone number %q", s)
	}
	return PhoneNumber(cleaned), nil
}

// String returns the string form of the phone number.
func (p PhoneNumber) String() string { return string(p) }

// TrustLevel is the caller's confidence that an identifier pairing is
// authoritative.
type TrustLevel int

const (
	// Uncertain marks a pairing that was observed or inferred.
	Uncertain TrustLevel = iota
	// Certain marks a pairing that came from an authoritative source.
	Certain
)

// String returns the name of the trust level.
func (t TrustLevel) String() string {
	if t == Certain {
		return "certain"
	}
	return "uncertain"
}

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
