package crypto

import (
	"crypto/ed25519"

	"keyward/internal/domain"
)

// SignWithIdentity signs msg with a signing key derived from the identity
// private scalar.
func SignWithIdentity(pair domain.IdentityKeyPair, msg []byte) []byte {
	sk := ed25519.NewKeyFromSeed(pair.Private[:])
	return ed25519.Sign(sk, msg)
}

// VerifyWithIdentity checks a signature produced by SignWithIdentity.
func VerifyWithIdentity(pair domain.IdentityKeyPair, msg, sig []byte) bool {
	sk := ed25519.NewKeyFromSeed(pair.Private[:])
	return ed25519.Verify(sk.Public().(ed25519.PublicKey), msg, sig)
}
