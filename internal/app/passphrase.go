package app

import (
	"github.com/99designs/keyring"

	"keyward/internal/secrets"
)

// ResolvePassphrase fills in cfg.Passphrase from the keyring when none was
// given explicitly and the keyring is enabled.
func ResolvePassphrase(cfg Config, prompt keyring.PromptFunc) (Config, error) {
	if cfg.Passphrase != "" || !cfg.Keyring.Enabled {
		return cfg, nil
	}
	ring, err := secrets.Open(cfg.Keyring, cfg.Home, prompt)
	if err != nil {
		return Config{}, err
	}
	pw, ok, err := ring.Get()
	if err != nil {
		return Config{}, err
	}
	if ok {
		cfg.Passphrase = pw
	}
	return cfg, nil
}
