package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"keyward/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// IdentityFingerprint fingerprints the serialized public identity key.
func IdentityFingerprint(key domain.IdentityKey) domain.Fingerprint {
	return domain.Fingerprint(Fingerprint(key.Serialize()))
}
