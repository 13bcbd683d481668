package types

// PreKeyID identifies a one-time pre-key.
type PreKeyID uint32

// SignedPreKeyID identifies a signed pre-key.
type SignedPreKeyID uint32

// KyberPreKeyID identifies a post-quantum pre-key.
type KyberPreKeyID uint32

// PreKeyRecord is a stored one-time pre-key.
type PreKeyRecord struct {
	ID      PreKeyID `json:"id"`
	KeyPair KeyPair  `json:"key_pair"`
}

// SignedPreKeyRecord is a stored signed pre-key.
type SignedPreKeyRecord struct {
	ID        SignedPreKeyID `json:"id"`
	KeyPair   KeyPair        `json:"key_pair"`
	Signature []byte         `json:"signature"`
	Timestamp int64          `json:"timestamp"`
}

// KyberPreKeyRecord is a stored post-quantum pre-key. KeyPair is the opaque
// KEM key pair encoding.
type KyberPreKeyRecord struct {
	ID         KyberPreKeyID `json:"id"`
	KeyPair    []byte        `json:"key_pair"`
	Signature  []byte        `json:"signature"`
	Timestamp  int64         `json:"timestamp"`
	LastResort bool          `json:"-"`
}
