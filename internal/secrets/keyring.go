// Package secrets keeps the storage passphrase in the platform keyring so
// the CLI can unlock a storage root without -p.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "keyward"

// Config selects the keyring backend.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"`  // empty picks the platform default
	FileDir string `yaml:"file_dir"` // used by the "file" backend
}

// Passphrases stores one passphrase per storage root.
type Passphrases struct {
	ring keyring.Keyring
	key  string
}

// Open opens the keyring for the storage root at home. prompt unlocks the
// encrypted file backend and may be nil for the others.
func Open(cfg Config, home string, prompt keyring.PromptFunc) (*Passphrases, error) {
	abs, err := filepath.Abs(home)
	if err != nil {
		return nil, err
	}

	kc := keyring.Config{
		ServiceName:      serviceName,
		FileDir:          cfg.FileDir,
		FilePasswordFunc: prompt,
	}
	if cfg.Backend != "" {
		kc.AllowedBackends = []keyring.BackendType{keyring.BackendType(cfg.Backend)}
	}
	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &Passphrases{ring: ring, key: "passphrase:" + abs}, nil
}

// Get returns the stored passphrase, or ok=false when none is stored.
func (p *Passphrases) Get() (string, bool, error) {
	item, err := p.ring.Get(p.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read passphrase from keyring: %w", err)
	}
	return string(item.Data), true, nil
}

// Set stores or replaces the passphrase.
func (p *Passphrases) Set(passphrase string) error {
	if passphrase == "" {
		return errors.New("refusing to store an empty passphrase")
	}
	err := p.ring.Set(keyring.Item{
		Key:         p.key,
		Data:        []byte(passphrase),
		Label:       "keyward storage passphrase",
		Description: p.key,
	})
	if err != nil {
		return fmt.Errorf("failed to store passphrase in keyring: %w", err)
	}
	return nil
}

// Delete forgets the passphrase. Deleting a missing entry is not an error.
func (p *Passphrases) Delete() error {
	err := p.ring.Remove(p.key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove passphrase from keyring: %w", err)
	}
	return nil
}
