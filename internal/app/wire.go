package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"keyward/internal/reconcile"
	"keyward/internal/services/account"
	"keyward/internal/services/prekey"
	"keyward/internal/services/protocol"
	"keyward/internal/store"
)

// Wire bundles all stores and services for the CLI.
type Wire struct {
	Config     Config
	Log        zerolog.Logger
	DB         *store.Store
	Identity   *store.IdentityFileStore
	Accounts   *store.AccountFileStore
	Reconciler *reconcile.Engine
	Protocol   *protocol.Store
	Account    *account.Service
	Prekeys    *prekey.Service
}

// NewWire constructs the dependency graph from cfg. The caller owns the
// returned Wire and must Close it.
func NewWire(cfg Config, log zerolog.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("create home: %w", err)
	}

	// Everything sealed on disk shares one passphrase-derived key.
	cipher, err := store.OpenCipher(cfg.Home, cfg.Passphrase, cfg.Scrypt)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Database,
		store.WithCipher(cipher),
		store.WithLogger(log.With().Str("component", "store").Logger()),
	)
	if err != nil {
		return nil, err
	}

	// File-based stores
	identityStore := store.NewIdentityFileStore(cfg.Home, cipher)
	accountStore := store.NewAccountFileStore(cfg.Home, cipher)

	engine := reconcile.New(db, reconcile.WithLogger(log.With().Str("component", "reconcile").Logger()))
	protocolStore := protocol.New(identityStore, db,
		protocol.WithLogger(log.With().Str("component", "protocol").Logger()))

	// High-level services
	accountSvc := account.New(protocolStore, identityStore, accountStore, engine, db,
		account.WithLogger(log.With().Str("component", "account").Logger()))
	prekeySvc := prekey.New(protocolStore,
		prekey.WithLogger(log.With().Str("component", "prekey").Logger()))

	return &Wire{
		Config:     cfg,
		Log:        log,
		DB:         db,
		Identity:   identityStore,
		Accounts:   accountStore,
		Reconciler: engine,
		Protocol:   protocolStore,
		Account:    accountSvc,
		Prekeys:    prekeySvc,
	}, nil
}

// Close releases the database connection.
func (w *Wire) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}
