package types

import (
	"errors"
	"fmt"
)

// KeyTypeDJB tags a serialized Curve25519 key.
const KeyTypeDJB byte = 0x05

const (
	identityKeyLen     = 1 + 32
	identityKeyPairLen = 1 + 32 + 32
)

// ErrInvalidKey is returned when serialized key material has the wrong length
// or type tag.
var ErrInvalidKey = errors.New("invalid key encoding")

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// KeyPair is a Curve25519 key pair.
type KeyPair struct {
	Public  X25519Public  `json:"public"`
	Private X25519Private `json:"private"`
}

// IdentityKey is a peer's public identity key.
type IdentityKey struct {
	Public X25519Public
}

// Serialize encodes the key as type tag followed by the public point.
func (k IdentityKey) Serialize() []byte {
	out := make([]byte, 0, identityKeyLen)
	out = append(out, KeyTypeDJB)
	return append(out, k.Public[:]...)
}

// Equal reports whether two identity keys are the same.
func (k IdentityKey) Equal(o IdentityKey) bool { return k.Public == o.Public }

// ParseIdentityKey decodes the output of IdentityKey.Serialize.
func ParseIdentityKey(b []byte) (IdentityKey, error) {
	if len(b) != identityKeyLen {
		return IdentityKey{}, fmt.Errorf("%w: identity key length %d", ErrInvalidKey, len(b))
	}
	if b[0] != KeyTypeDJB {
		return IdentityKey{}, fmt.Errorf("%w: key type 0x%02x", ErrInvalidKey, b[0])
	}
	var k IdentityKey
	copy(k.Public[:], b[1:])
	return k, nil
}

// IdentityKeyPair is one of the device's two long-term identity key pairs.
type IdentityKeyPair struct {
	Public  X25519Public
	Private X25519Private
}

// IdentityKey returns the public half.
func (p IdentityKeyPair) IdentityKey() IdentityKey { return IdentityKey{Public: p.Public} }

// Serialize encodes the pair as type tag, public point, private scalar.
func (p IdentityKeyPair) Serialize() []byte {
	out := make([]byte, 0, identityKeyPairLen)
	out = append(out, KeyTypeDJB)
	out = append(out, p.Public[:]...)
	return append(out, p.Private[:]...)
}

// ParseIdentityKeyPair decodes the output of IdentityKeyPair.Serialize.
func ParseIdentityKeyPair(b []byte) (IdentityKeyPair, error) {
	if len(b) != identityKeyPairLen {
		return IdentityKeyPair{}, fmt.Errorf("%w: identity key pair length %d", ErrInvalidKey, len(b))
	}
	if b[0] != KeyTypeDJB {
		return IdentityKeyPair{}, fmt.Errorf("%w: key type 0x%02x", ErrInvalidKey, b[0])
	}
	var p IdentityKeyPair
	copy(p.Public[:], b[1:33])
	copy(p.Private[:], b[33:])
	return p, nil
}
