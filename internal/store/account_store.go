package store

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"keyward/internal/domain"
)

const accountsFile = "storage/account.json"

// AccountFileStore persists the identifiers this device registered with.
type AccountFileStore struct {
	path   string
	cipher *Cipher
	mu     sync.Mutex
}

// NewAccountFileStore returns an AccountFileStore rooted at root.
func NewAccountFileStore(root string, cipher *Cipher) *AccountFileStore {
	return &AccountFileStore{path: filepath.Join(root, accountsFile), cipher: cipher}
}

// SaveAccountProfile stores or replaces the profile.
func (s *AccountFileStore) SaveAccountProfile(profile domain.AccountProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	sealed, err := s.cipher.Seal(raw)
	if err != nil {
		return domain.Storage("seal account profile", err)
	}
	return domain.Storage("write account profile", writeFile(s.path, sealed, 0o600))
}

// LoadAccountProfile retrieves the stored profile.
func (s *AccountFileStore) LoadAccountProfile() (domain.AccountProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path)
	if err != nil {
		return domain.AccountProfile{}, false, domain.Storage("read account profile", err)
	}
	if b == nil {
		return domain.AccountProfile{}, false, nil
	}
	raw, err := s.cipher.Open(b)
	if err != nil {
		return domain.AccountProfile{}, false, domain.Corrupt(domain.KindAccount, s.path, err)
	}
	var profile domain.AccountProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.AccountProfile{}, false, domain.Corrupt(domain.KindAccount, s.path, err)
	}
	return profile, true, nil
}

// Compile-time assertion that AccountFileStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountFileStore)(nil)
