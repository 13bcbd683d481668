package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"keyward/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store is the relational substrate: one SQLite connection guarded by one
// mutex. Every read and write is serialized through mu.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	cipher *Cipher
	log    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCipher seals every stored key/session blob with c.
func WithCipher(c *Cipher) Option { return func(s *Store) { s.cipher = c } }

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

// Open creates or opens the SQLite database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One shared connection; the mutex below sequences all access to it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withConn runs fn against the shared connection while holding the mutex.
func (s *Store) withConn(fn func(q querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.db)
}

// withTx runs fn in a transaction while holding the mutex. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Storage(op+": begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return domain.Storage(op, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Storage(op+": commit", err)
	}
	return nil
}

func (s *Store) seal(kind domain.RecordKind, key any, raw []byte) ([]byte, error) {
	b, err := s.cipher.Seal(raw)
	if err != nil {
		return nil, fmt.Errorf("seal %s %v: %w", kind, key, err)
	}
	return b, nil
}

func (s *Store) open(kind domain.RecordKind, key any, b []byte) ([]byte, error) {
	raw, err := s.cipher.Open(b)
	if err != nil {
		return nil, domain.Corrupt(kind, key, err)
	}
	return raw, nil
}
