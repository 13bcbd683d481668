package crypto

import (
	"crypto/mlkem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	"keyward/internal/domain"
)

func TestGenerateX25519_ClampedAndConsistent(t *testing.T) {
	priv, pub, err := GenerateX25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if priv[0]&7 != 0 || priv[31]&128 != 0 || priv[31]&64 == 0 {
		t.Fatalf("private key not clamped: %x", priv)
	}
	want, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	require.NoError(t, err)
	assert.Equal(t, want, pub[:])
}

func TestGenerateIdentityKeyPair_RoundTrip(t *testing.T) {
	pair, err := GenerateIdentityKeyPair()
	require.NoError(t, err)

	raw := pair.Serialize()
	require.Len(t, raw, 65)
	assert.Equal(t, domain.KeyTypeDJB, raw[0])

	back, err := domain.ParseIdentityKeyPair(raw)
	require.NoError(t, err)
	assert.Equal(t, pair, back)
}

func TestGenerateRegistrationID_Range(t *testing.T) {
	for range 500 {
		id, err := GenerateRegistrationID()
		require.NoError(t, err)
		if id < 1 || id > 16380 {
			t.Fatalf("registration id %d out of range", id)
		}
	}
}

func TestGenerateCredentials(t *testing.T) {
	a, err := GenerateCredentials()
	require.NoError(t, err)
	b, err := GenerateCredentials()
	require.NoError(t, err)

	assert.Len(t, a.HTTPPassword, 24)
	assert.Len(t, a.SignalingKey, 52)
	assert.NotEqual(t, a.HTTPPassword, b.HTTPPassword)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea4141", fp)

	pair, err := GenerateIdentityKeyPair()
	require.NoError(t, err)
	assert.Equal(t, domain.Fingerprint(Fingerprint(pair.IdentityKey().Serialize())),
		IdentityFingerprint(pair.IdentityKey()))
}

func TestSignWithIdentity(t *testing.T) {
	pair, err := GenerateIdentityKeyPair()
	require.NoError(t, err)
	other, err := GenerateIdentityKeyPair()
	require.NoError(t, err)

	msg := []byte("signed pre-key public")
	sig := SignWithIdentity(pair, msg)
	assert.True(t, VerifyWithIdentity(pair, msg, sig))
	assert.False(t, VerifyWithIdentity(other, msg, sig))
	assert.False(t, VerifyWithIdentity(pair, []byte("tampered"), sig))
}

func TestKyberKeyPair(t *testing.T) {
	pair, err := GenerateKyberKeyPair()
	require.NoError(t, err)
	assert.Equal(t, KeyTypeKyber1024, pair[0])
	assert.Len(t, pair, 1+mlkem.EncapsulationKeySize1024+mlkem.SeedSize)

	pub := KyberPublic(pair)
	require.Len(t, pub, mlkem.EncapsulationKeySize1024)
	_, err = mlkem.NewEncapsulationKey1024(pub)
	assert.NoError(t, err)

	assert.Nil(t, KyberPublic([]byte{0x05, 1, 2}))
}
