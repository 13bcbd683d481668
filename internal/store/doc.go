// Package store provides keyward's persistence.
//
// The relational half lives in one SQLite database (Store): recipients and
// the conversation rows that reference them, plus the protocol records kept
// per identity scope. Every access goes through a single connection guarded
// by one mutex, so callers never see interleaved transactions.
//
// The file half holds what the protocol needs before the database is
// trusted:
//   - Local identity key pairs, registration ids and credentials (IdentityFileStore)
//   - The registered account identifiers (AccountFileStore)
//
// When a passphrase is configured every key and session blob, in either
// half, is sealed with XChaCha20-Poly1305 under a scrypt-derived key
// (Cipher).
package store
