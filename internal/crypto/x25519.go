package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"keyward/internal/domain"
)

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], pb)
	return
}

// GenerateKeyPair returns a fresh Curve25519 key pair as a domain.KeyPair.
func GenerateKeyPair() (domain.KeyPair, error) {
	priv, pub, err := GenerateX25519()
	if err != nil {
		return domain.KeyPair{}, err
	}
	return domain.KeyPair{Public: pub, Private: priv}, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
