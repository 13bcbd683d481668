package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"keyward/internal/util/memzero"
)

const (
	// The current supported version of the key file and sealed blob format.
	keystoreFormatVersion = 1

	keyFileName = "keyfile.json"
	saltBytes   = 16
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// key file has been modified / corrupted.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

	errShortBlob   = errors.New("sealed blob too short")
	errBlobVersion = errors.New("unsupported sealed blob version")

	keyCheckPlaintext = []byte("keyward-key-check")
)

// KDFParams are the scrypt tunables used to derive the storage key.
type KDFParams struct {
	N int `yaml:"n" json:"scrypt_N"`
	R int `yaml:"r" json:"scrypt_r"`
	P int `yaml:"p" json:"scrypt_p"`
}

// DefaultKDFParams returns the production scrypt parameters.
func DefaultKDFParams() KDFParams { return KDFParams{N: 1 << 15, R: 8, P: 1} }

// keyFile is the on-disk JSON structure holding the KDF parameters and a
// sealed check value.
type keyFile struct {
	V     int    `json:"v"`
	Salt  []byte `json:"salt"`
	N     int    `json:"scrypt_N"`
	R     int    `json:"scrypt_r"`
	P     int    `json:"scrypt_p"`
	Check []byte `json:"check"`
}

// Cipher seals blobs with a key derived from the account passphrase. A nil
// *Cipher passes data through unchanged, which is how an unencrypted
// storage root is represented.
type Cipher struct {
	aead cipher.AEAD
}

// OpenCipher derives the storage key for root. The first call creates the
// key file with a fresh salt; later calls verify the passphrase against it.
func OpenCipher(root, passphrase string, params KDFParams) (*Cipher, error) {
	if passphrase == "" {
		return nil, nil
	}
	path := filepath.Join(root, keyFileName)
	raw, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if raw == nil {
		return createKeyFile(path, passphrase, params)
	}

	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	if kf.V > keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", kf.V)
	}
	c, err := deriveCipher(passphrase, kf.Salt, KDFParams{N: kf.N, R: kf.R, P: kf.P})
	if err != nil {
		return nil, err
	}
	pt, err := c.Open(kf.Check)
	if err != nil || string(pt) != string(keyCheckPlaintext) {
		return nil, ErrWrongPassphrase
	}
	return c, nil
}

func createKeyFile(path, passphrase string, params KDFParams) (*Cipher, error) {
	var salt [saltBytes]byte
	if _, err := rand.Read(salt[:] /* #nosec G404 */); err != nil {
		return nil, err
	}
	c, err := deriveCipher(passphrase, salt[:], params)
	if err != nil {
		return nil, err
	}
	check, err := c.Seal(keyCheckPlaintext)
	if err != nil {
		return nil, err
	}
	kf := keyFile{V: keystoreFormatVersion, Salt: salt[:], N: params.N, R: params.R, P: params.P, Check: check}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := writeJSON(path, kf, 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return c, nil
}

func deriveCipher(passphrase string, salt []byte, params KDFParams) (*Cipher, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, params.N, params.R, params.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts raw as version byte, random nonce, ciphertext.
func (c *Cipher) Seal(raw []byte) ([]byte, error) {
	if c == nil {
		return raw, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(nonce)+len(raw)+c.aead.Overhead())
	out = append(out, keystoreFormatVersion)
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, raw, []byte{keystoreFormatVersion}), nil
}

// Open reverses Seal.
func (c *Cipher) Open(b []byte) ([]byte, error) {
	if c == nil {
		return b, nil
	}
	ns := c.aead.NonceSize()
	if len(b) < 1+ns+c.aead.Overhead() {
		return nil, errShortBlob
	}
	if b[0] != keystoreFormatVersion {
		return nil, fmt.Errorf("%w %d", errBlobVersion, b[0])
	}
	return c.aead.Open(nil, b[1:1+ns], b[1+ns:], []byte{keystoreFormatVersion})
}

// Encrypted reports whether c actually encrypts.
func (c *Cipher) Encrypted() bool { return c != nil }
