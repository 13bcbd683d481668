package crypto

import "crypto/mlkem"

// KeyTypeKyber1024 tags a serialized ML-KEM-1024 key pair.
const KeyTypeKyber1024 byte = 0x08

// GenerateKyberKeyPair returns a serialized ML-KEM-1024 key pair: type tag,
// encapsulation key, decapsulation seed.
func GenerateKyberKeyPair() ([]byte, error) {
	dk, err := mlkem.GenerateKey1024()
	if err != nil {
		return nil, err
	}
	ek := dk.EncapsulationKey().Bytes()
	seed := dk.Bytes()
	out := make([]byte, 0, 1+len(ek)+len(seed))
	out = append(out, KeyTypeKyber1024)
	out = append(out, ek...)
	return append(out, seed...), nil
}

// KyberPublic extracts the encapsulation key from a serialized key pair.
func KyberPublic(pair []byte) []byte {
	if len(pair) < 1+mlkem.EncapsulationKeySize1024 || pair[0] != KeyTypeKyber1024 {
		return nil
	}
	return pair[1 : 1+mlkem.EncapsulationKeySize1024]
}
