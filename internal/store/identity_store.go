package store

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"keyward/internal/domain"
)

const (
	identityDir = "storage/identity"

	regIDFile            = "regid"
	pniRegIDFile         = "pni_regid"
	identityKeyFile      = "identity_key"
	pniIdentityKeyFile   = "pni_identity_key"
	httpPasswordFile     = "http_password"
	httpSignalingKeyFile = "http_signaling_key"
)

// IdentityFileStore persists the local identity key pairs, registration ids
// and service credentials as whole files under the storage root, each
// sealed by the store's cipher.
type IdentityFileStore struct {
	dir    string
	cipher *Cipher
	mu     sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at root. A nil
// cipher writes plaintext files.
func NewIdentityFileStore(root string, cipher *Cipher) *IdentityFileStore {
	return &IdentityFileStore{dir: filepath.Join(root, identityDir), cipher: cipher}
}

func identityKeyFileFor(scope domain.IdentityScope) string {
	if scope == domain.ScopePhoneNumber {
		return pniIdentityKeyFile
	}
	return identityKeyFile
}

func regIDFileFor(scope domain.IdentityScope) string {
	if scope == domain.ScopePhoneNumber {
		return pniRegIDFile
	}
	return regIDFile
}

// SaveIdentityKeyPair writes the serialized key pair for scope.
func (s *IdentityFileStore) SaveIdentityKeyPair(scope domain.IdentityScope, pair domain.IdentityKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(identityKeyFileFor(scope), pair.Serialize())
}

// LoadIdentityKeyPair reads the key pair for scope.
func (s *IdentityFileStore) LoadIdentityKeyPair(scope domain.IdentityScope) (domain.IdentityKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := identityKeyFileFor(scope)
	raw, ok, err := s.read(name)
	if err != nil || !ok {
		return domain.IdentityKeyPair{}, false, err
	}
	pair, err := domain.ParseIdentityKeyPair(raw)
	if err != nil {
		return domain.IdentityKeyPair{}, false, domain.Corrupt(domain.KindLocalIdentity, name, err)
	}
	return pair, true, nil
}

// SaveRegistrationID writes id as decimal text.
func (s *IdentityFileStore) SaveRegistrationID(scope domain.IdentityScope, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(regIDFileFor(scope), []byte(strconv.FormatUint(uint64(id), 10)))
}

// LoadRegistrationID reads the registration id for scope.
func (s *IdentityFileStore) LoadRegistrationID(scope domain.IdentityScope) (uint32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := regIDFileFor(scope)
	raw, ok, err := s.read(name)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 32)
	if err != nil {
		return 0, false, domain.Corrupt(domain.KindRegistrationID, name, err)
	}
	return uint32(id), true, nil
}

// SaveCredentials writes the HTTP password and signaling key.
func (s *IdentityFileStore) SaveCredentials(creds domain.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(httpPasswordFile, []byte(creds.HTTPPassword)); err != nil {
		return err
	}
	return s.write(httpSignalingKeyFile, creds.SignalingKey)
}

// LoadCredentials reads the HTTP password and signaling key.
func (s *IdentityFileStore) LoadCredentials() (domain.Credentials, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pw, ok, err := s.read(httpPasswordFile)
	if err != nil || !ok {
		return domain.Credentials{}, false, err
	}
	key, ok, err := s.read(httpSignalingKeyFile)
	if err != nil {
		return domain.Credentials{}, false, err
	}
	if !ok {
		return domain.Credentials{}, false, domain.Corrupt(domain.KindCredentials, httpSignalingKeyFile,
			fmt.Errorf("password present without signaling key"))
	}
	return domain.Credentials{HTTPPassword: string(pw), SignalingKey: key}, true, nil
}

func (s *IdentityFileStore) write(name string, raw []byte) error {
	sealed, err := s.cipher.Seal(raw)
	if err != nil {
		return domain.Storage("seal "+name, err)
	}
	return domain.Storage("write "+name, writeFile(filepath.Join(s.dir, name), sealed, 0o600))
}

func (s *IdentityFileStore) read(name string) ([]byte, bool, error) {
	b, err := readFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, false, domain.Storage("read "+name, err)
	}
	if b == nil {
		return nil, false, nil
	}
	raw, err := s.cipher.Open(b)
	if err != nil {
		return nil, false, domain.Corrupt(domain.KindLocalIdentity, name, err)
	}
	return raw, true, nil
}

// Compile-time assertion that IdentityFileStore implements domain.LocalIdentityStore.
var _ domain.LocalIdentityStore = (*IdentityFileStore)(nil)
