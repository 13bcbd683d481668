// Package crypto exposes the minimal primitives keyward needs around the
// protocol store.
//
// Contents
//
//   - Curve25519 key generation and clamping (GenerateX25519,
//     GenerateIdentityKeyPair)
//   - ML-KEM key generation for post-quantum pre-keys (GenerateKyberKeyPair)
//   - Registration id and service credential generation
//   - Signed pre-key signatures bound to an identity key pair
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// The ratchet and key-agreement algorithms themselves live outside this
// module; everything here only produces key material to be stored.
package crypto
