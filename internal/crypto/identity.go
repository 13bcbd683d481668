package crypto

import (
	"crypto/rand"
	"encoding/binary"

	"keyward/internal/domain"
)

const (
	// registrationIDMax bounds registration ids to 14 bits, excluding 0.
	registrationIDMax = 16380

	httpPasswordBytes = 18
	signalingKeyBytes = 52
)

// GenerateIdentityKeyPair returns a new long-term identity key pair.
func GenerateIdentityKeyPair() (domain.IdentityKeyPair, error) {
	priv, pub, err := GenerateX25519()
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	return domain.IdentityKeyPair{Public: pub, Private: priv}, nil
}

// GenerateRegistrationID returns a random registration id in [1, 16380].
func GenerateRegistrationID() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:])%registrationIDMax + 1, nil
}

// GenerateCredentials returns a fresh HTTP password and signaling key.
func GenerateCredentials() (domain.Credentials, error) {
	pw := make([]byte, httpPasswordBytes)
	if _, err := rand.Read(pw); err != nil {
		return domain.Credentials{}, err
	}
	key := make([]byte, signalingKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return domain.Credentials{}, err
	}
	return domain.Credentials{HTTPPassword: B64(pw), SignalingKey: key}, nil
}
