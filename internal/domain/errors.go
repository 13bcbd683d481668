package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrCorruptRecord matches every CorruptRecordError.
	ErrCorruptRecord = errors.New("corrupt record")
	// ErrInvariant matches every InvariantError.
	ErrInvariant = errors.New("invariant violation")
	// ErrStorage matches every StorageError.
	ErrStorage = errors.New("storage error")
	// ErrLastResortKey is returned when a consume path is invoked on a
	// last-resort kyber pre-key.
	ErrLastResortKey = errors.New("last-resort kyber pre-key cannot be consumed")
)

// RecordKind names the kind of stored record an error refers to.
type RecordKind string

const (
	KindPreKey         RecordKind = "pre-key"
	KindSignedPreKey   RecordKind = "signed pre-key"
	KindKyberPreKey    RecordKind = "kyber pre-key"
	KindSession        RecordKind = "session"
	KindSenderKey      RecordKind = "sender key"
	KindIdentity       RecordKind = "identity"
	KindRecipient      RecordKind = "recipient"
	KindLocalIdentity  RecordKind = "local identity key pair"
	KindRegistrationID RecordKind = "registration id"
	KindCredentials    RecordKind = "credentials"
	KindAccount        RecordKind = "account profile"
)

// NotFoundError is an expected miss: a probed id or address has no record.
type NotFoundError struct {
	Kind RecordKind
	Key  string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.Key) }

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind RecordKind, key any) error {
	return &NotFoundError{Kind: kind, Key: fmt.Sprint(key)}
}

// CorruptRecordError reports stored bytes that failed to deserialize.
type CorruptRecordError struct {
	Kind RecordKind
	Key  string
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt %s record %s: %v", e.Kind, e.Key, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCorruptRecord) match.
func (e *CorruptRecordError) Is(target error) bool { return target == ErrCorruptRecord }

// Corrupt builds a CorruptRecordError.
func Corrupt(kind RecordKind, key any, err error) error {
	return &CorruptRecordError{Kind: kind, Key: fmt.Sprint(key), Err: err}
}

// InvariantError is a programmer or data-integrity error. Callers must not
// attribute anything to a peer after receiving one.
type InvariantError struct {
	Msg    string
	Fields map[string]string
}

func (e *InvariantError) Error() string {
	if len(e.Fields) == 0 {
		return "invariant violation: " + e.Msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return fmt.Sprintf("invariant violation: %s (%s)", e.Msg, strings.Join(parts, ", "))
}

// Is lets errors.Is(err, ErrInvariant) match.
func (e *InvariantError) Is(target error) bool { return target == ErrInvariant }

// Invariant builds an InvariantError. kv is a flat key/value list.
func Invariant(msg string, kv ...string) error {
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return &InvariantError{Msg: msg, Fields: fields}
}

// StorageError wraps a failure of the relational or file substrate.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError. A nil err stays nil and typed errors
// from this package pass through unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		nf  *NotFoundError
		cr  *CorruptRecordError
		inv *InvariantError
		se  *StorageError
	)
	if errors.As(err, &nf) || errors.As(err, &cr) || errors.As(err, &inv) || errors.As(err, &se) ||
		errors.Is(err, ErrLastResortKey) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsCorrupt reports whether err is, or wraps, a CorruptRecordError.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorruptRecord) }

// IsInvariant reports whether err is, or wraps, an InvariantError.
func IsInvariant(err error) bool { return errors.Is(err, ErrInvariant) }
