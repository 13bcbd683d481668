package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"keyward/internal/domain"
)

// Peer identity keys.

// LoadIdentityRecord returns the identity key stored for address.
func (s *Store) LoadIdentityRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
) (domain.IdentityKey, bool, error) {
	blob, ok, err := s.loadBlob(ctx, "load identity",
		`SELECT record FROM identity_records WHERE address = ? AND identity = ?`, string(address), int(scope))
	if err != nil || !ok {
		return domain.IdentityKey{}, false, err
	}
	raw, err := s.open(domain.KindIdentity, address, blob)
	if err != nil {
		return domain.IdentityKey{}, false, err
	}
	key, err := domain.ParseIdentityKey(raw)
	if err != nil {
		return domain.IdentityKey{}, false, domain.Corrupt(domain.KindIdentity, address, err)
	}
	return key, true, nil
}

// SaveIdentityRecord inserts or replaces the identity key for address and
// reports whether a different key was replaced.
func (s *Store) SaveIdentityRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	key domain.IdentityKey,
) (bool, error) {
	sealed, err := s.seal(domain.KindIdentity, address, key.Serialize())
	if err != nil {
		return false, err
	}
	var replaced bool
	err = s.withTx(ctx, "save identity", func(tx *sql.Tx) error {
		var blob []byte
		err := tx.QueryRowContext(ctx,
			`SELECT record FROM identity_records WHERE address = ? AND identity = ?`,
			string(address), int(scope)).Scan(&blob)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			raw, oerr := s.open(domain.KindIdentity, address, blob)
			if oerr != nil {
				replaced = true
				break
			}
			prev, perr := domain.ParseIdentityKey(raw)
			replaced = perr != nil || !prev.Equal(key)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO identity_records (address, identity, record) VALUES (?, ?, ?)
			ON CONFLICT (address, identity) DO UPDATE SET record = excluded.record`,
			string(address), int(scope), sealed)
		return err
	})
	return replaced, err
}

// DeleteIdentityRecord forgets the identity key of address.
func (s *Store) DeleteIdentityRecord(ctx context.Context, scope domain.IdentityScope, address domain.Address) error {
	_, err := s.execCount(ctx, "delete identity",
		`DELETE FROM identity_records WHERE address = ? AND identity = ?`, string(address), int(scope))
	return err
}

// Sessions.

// LoadSessionRecord returns the serialized session for (address, device).
func (s *Store) LoadSessionRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
) ([]byte, error) {
	key := sessionKey(address, device)
	blob, ok, err := s.loadBlob(ctx, "load session",
		`SELECT record FROM session_records WHERE address = ? AND device_id = ? AND identity = ?`,
		string(address), uint32(device), int(scope))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFound(domain.KindSession, key)
	}
	return s.open(domain.KindSession, key, blob)
}

// StoreSessionRecord inserts or replaces the session for (address, device).
func (s *Store) StoreSessionRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
	record []byte,
) error {
	sealed, err := s.seal(domain.KindSession, sessionKey(address, device), record)
	if err != nil {
		return err
	}
	_, err = s.execCount(ctx, "store session", `
		INSERT INTO session_records (address, device_id, identity, record) VALUES (?, ?, ?, ?)
		ON CONFLICT (address, device_id, identity) DO UPDATE SET record = excluded.record`,
		string(address), uint32(device), int(scope), sealed)
	return err
}

// DeleteSessionRecord removes one session. Deleting a session that does not
// exist returns a NotFoundError.
func (s *Store) DeleteSessionRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
) error {
	n, err := s.execCount(ctx, "delete session",
		`DELETE FROM session_records WHERE address = ? AND device_id = ? AND identity = ?`,
		string(address), uint32(device), int(scope))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(domain.KindSession, sessionKey(address, device))
	}
	return nil
}

// DeleteAllSessionRecords removes every session of address and returns how
// many were removed.
func (s *Store) DeleteAllSessionRecords(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
) (int64, error) {
	return s.execCount(ctx, "delete all sessions",
		`DELETE FROM session_records WHERE address = ? AND identity = ?`, string(address), int(scope))
}

// SessionDevices lists the devices of address holding a session, excluding
// the primary device.
func (s *Store) SessionDevices(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
) ([]domain.DeviceID, error) {
	var out []domain.DeviceID
	err := s.withConn(func(q querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT device_id FROM session_records
			WHERE address = ? AND identity = ? AND device_id != ?
			ORDER BY device_id`,
			string(address), int(scope), uint32(domain.PrimaryDeviceID))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var d uint32
			if err := rows.Scan(&d); err != nil {
				return err
			}
			out = append(out, domain.DeviceID(d))
		}
		return rows.Err()
	})
	return out, domain.Storage("session devices", err)
}

func sessionKey(address domain.Address, device domain.DeviceID) string {
	return fmt.Sprintf("%s.%d", address, device)
}

// Pre-keys.

// NextPreKeyID is one past the highest one-time pre-key id of either scope.
func (s *Store) NextPreKeyID(ctx context.Context) (domain.PreKeyID, error) {
	id, err := s.nextID(ctx, "prekeys")
	return domain.PreKeyID(id), err
}

func (s *Store) SavePreKeyRecord(ctx context.Context, scope domain.IdentityScope, rec domain.PreKeyRecord) error {
	return s.saveRecord(ctx, "prekeys", domain.KindPreKey, scope, uint32(rec.ID), rec)
}

func (s *Store) LoadPreKeyRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	id domain.PreKeyID,
) (domain.PreKeyRecord, error) {
	var rec domain.PreKeyRecord
	err := s.loadRecord(ctx, "prekeys", domain.KindPreKey, scope, uint32(id), &rec)
	return rec, err
}

func (s *Store) RemovePreKeyRecord(ctx context.Context, scope domain.IdentityScope, id domain.PreKeyID) error {
	return s.removeRecord(ctx, "prekeys", domain.KindPreKey, scope, uint32(id))
}

// NextSignedPreKeyID is one past the highest signed pre-key id of either scope.
func (s *Store) NextSignedPreKeyID(ctx context.Context) (domain.SignedPreKeyID, error) {
	id, err := s.nextID(ctx, "signed_prekeys")
	return domain.SignedPreKeyID(id), err
}

func (s *Store) SaveSignedPreKeyRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	rec domain.SignedPreKeyRecord,
) error {
	return s.saveRecord(ctx, "signed_prekeys", domain.KindSignedPreKey, scope, uint32(rec.ID), rec)
}

func (s *Store) LoadSignedPreKeyRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	id domain.SignedPreKeyID,
) (domain.SignedPreKeyRecord, error) {
	var rec domain.SignedPreKeyRecord
	err := s.loadRecord(ctx, "signed_prekeys", domain.KindSignedPreKey, scope, uint32(id), &rec)
	return rec, err
}

func (s *Store) RemoveSignedPreKeyRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	id domain.SignedPreKeyID,
) error {
	return s.removeRecord(ctx, "signed_prekeys", domain.KindSignedPreKey, scope, uint32(id))
}

// ListSignedPreKeyRecords returns every signed pre-key of scope ordered by id.
func (s *Store) ListSignedPreKeyRecords(
	ctx context.Context,
	scope domain.IdentityScope,
) ([]domain.SignedPreKeyRecord, error) {
	var out []domain.SignedPreKeyRecord
	err := s.scanRecords(ctx, "list signed pre-keys", domain.KindSignedPreKey,
		`SELECT id, record FROM signed_prekeys WHERE identity = ? ORDER BY id`, int(scope),
		func(raw []byte, id uint32) error {
			var rec domain.SignedPreKeyRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return domain.Corrupt(domain.KindSignedPreKey, id, err)
			}
			out = append(out, rec)
			return nil
		})
	return out, err
}

// NextKyberPreKeyID is one past the highest kyber pre-key id of either scope,
// last-resort keys included.
func (s *Store) NextKyberPreKeyID(ctx context.Context) (domain.KyberPreKeyID, error) {
	id, err := s.nextID(ctx, "kyber_prekeys")
	return domain.KyberPreKeyID(id), err
}

func (s *Store) SaveKyberPreKeyRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	rec domain.KyberPreKeyRecord,
) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", domain.KindKyberPreKey, rec.ID, err)
	}
	sealed, err := s.seal(domain.KindKyberPreKey, rec.ID, raw)
	if err != nil {
		return err
	}
	_, err = s.execCount(ctx, "save kyber pre-key", `
		INSERT INTO kyber_prekeys (id, identity, record, is_last_resort) VALUES (?, ?, ?, ?)
		ON CONFLICT (id, identity) DO UPDATE SET record = excluded.record, is_last_resort = excluded.is_last_resort`,
		uint32(rec.ID), int(scope), sealed, rec.LastResort)
	return err
}

func (s *Store) LoadKyberPreKeyRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	id domain.KyberPreKeyID,
) (domain.KyberPreKeyRecord, error) {
	var (
		blob       []byte
		lastResort bool
		rec        domain.KyberPreKeyRecord
	)
	err := s.withConn(func(q querier) error {
		return q.QueryRowContext(ctx,
			`SELECT record, is_last_resort FROM kyber_prekeys WHERE id = ? AND identity = ?`,
			uint32(id), int(scope)).Scan(&blob, &lastResort)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return rec, domain.NotFound(domain.KindKyberPreKey, id)
	}
	if err != nil {
		return rec, domain.Storage("load kyber pre-key", err)
	}
	if err := s.decodeRecord(domain.KindKyberPreKey, id, blob, &rec); err != nil {
		return rec, err
	}
	rec.LastResort = lastResort
	return rec, nil
}

// RemoveKyberPreKeyRecord consumes a one-time kyber pre-key. Last-resort keys
// are reusable and return ErrLastResortKey.
func (s *Store) RemoveKyberPreKeyRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	id domain.KyberPreKeyID,
) error {
	err := s.withTx(ctx, "remove kyber pre-key", func(tx *sql.Tx) error {
		var lastResort bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_last_resort FROM kyber_prekeys WHERE id = ? AND identity = ?`,
			uint32(id), int(scope)).Scan(&lastResort)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(domain.KindKyberPreKey, id)
		}
		if err != nil {
			return err
		}
		if lastResort {
			return fmt.Errorf("remove %s %d: %w", domain.KindKyberPreKey, id, domain.ErrLastResortKey)
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM kyber_prekeys WHERE id = ? AND identity = ?`, uint32(id), int(scope))
		return err
	})
	return err
}

// ListLastResortKyberPreKeyRecords returns the last-resort kyber pre-keys of
// scope ordered by id.
func (s *Store) ListLastResortKyberPreKeyRecords(
	ctx context.Context,
	scope domain.IdentityScope,
) ([]domain.KyberPreKeyRecord, error) {
	var out []domain.KyberPreKeyRecord
	err := s.scanRecords(ctx, "list last-resort kyber pre-keys", domain.KindKyberPreKey,
		`SELECT id, record FROM kyber_prekeys WHERE identity = ? AND is_last_resort = 1 ORDER BY id`, int(scope),
		func(raw []byte, id uint32) error {
			var rec domain.KyberPreKeyRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return domain.Corrupt(domain.KindKyberPreKey, id, err)
			}
			rec.LastResort = true
			out = append(out, rec)
			return nil
		})
	return out, err
}

// Sender keys.

func (s *Store) StoreSenderKeyRecord(ctx context.Context, scope domain.IdentityScope, rec domain.SenderKeyRecord) error {
	key := senderKeyKey(rec.Address, rec.Device, rec.DistributionID)
	sealed, err := s.seal(domain.KindSenderKey, key, rec.Record)
	if err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.execCount(ctx, "store sender key", `
		INSERT INTO sender_key_records (address, device, distribution_id, identity, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (address, device, distribution_id, identity) DO UPDATE SET record = excluded.record`,
		string(rec.Address), uint32(rec.Device), rec.DistributionID.String(), int(scope), sealed, created.UnixMilli())
	return err
}

func (s *Store) LoadSenderKeyRecord(
	ctx context.Context,
	scope domain.IdentityScope,
	address domain.Address,
	device domain.DeviceID,
	distributionID uuid.UUID,
) (domain.SenderKeyRecord, error) {
	key := senderKeyKey(address, device, distributionID)
	var (
		blob    []byte
		created int64
	)
	err := s.withConn(func(q querier) error {
		return q.QueryRowContext(ctx, `
			SELECT record, created_at FROM sender_key_records
			WHERE address = ? AND device = ? AND distribution_id = ? AND identity = ?`,
			string(address), uint32(device), distributionID.String(), int(scope)).Scan(&blob, &created)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SenderKeyRecord{}, domain.NotFound(domain.KindSenderKey, key)
	}
	if err != nil {
		return domain.SenderKeyRecord{}, domain.Storage("load sender key", err)
	}
	raw, err := s.open(domain.KindSenderKey, key, blob)
	if err != nil {
		return domain.SenderKeyRecord{}, err
	}
	return domain.SenderKeyRecord{
		Address:        address,
		Device:         device,
		DistributionID: distributionID,
		Record:         raw,
		CreatedAt:      time.UnixMilli(created),
	}, nil
}

func senderKeyKey(address domain.Address, device domain.DeviceID, dist uuid.UUID) string {
	return fmt.Sprintf("%s.%d/%s", address, device, dist)
}

// Shared helpers. Table names below are package constants, never input.

func (s *Store) nextID(ctx context.Context, table string) (uint32, error) {
	var highest sql.NullInt64
	err := s.withConn(func(q querier) error {
		return q.QueryRowContext(ctx, `SELECT MAX(id) FROM `+table).Scan(&highest)
	})
	if err != nil {
		return 0, domain.Storage("next id in "+table, err)
	}
	if !highest.Valid {
		return 0, nil
	}
	return uint32(highest.Int64) + 1, nil
}

func (s *Store) saveRecord(
	ctx context.Context,
	table string,
	kind domain.RecordKind,
	scope domain.IdentityScope,
	id uint32,
	rec any,
) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", kind, id, err)
	}
	sealed, err := s.seal(kind, id, raw)
	if err != nil {
		return err
	}
	_, err = s.execCount(ctx, "save "+string(kind), `
		INSERT INTO `+table+` (id, identity, record) VALUES (?, ?, ?)
		ON CONFLICT (id, identity) DO UPDATE SET record = excluded.record`,
		id, int(scope), sealed)
	return err
}

func (s *Store) loadRecord(
	ctx context.Context,
	table string,
	kind domain.RecordKind,
	scope domain.IdentityScope,
	id uint32,
	out any,
) error {
	blob, ok, err := s.loadBlob(ctx, "load "+string(kind),
		`SELECT record FROM `+table+` WHERE id = ? AND identity = ?`, id, int(scope))
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(kind, id)
	}
	return s.decodeRecord(kind, id, blob, out)
}

func (s *Store) removeRecord(
	ctx context.Context,
	table string,
	kind domain.RecordKind,
	scope domain.IdentityScope,
	id uint32,
) error {
	n, err := s.execCount(ctx, "remove "+string(kind),
		`DELETE FROM `+table+` WHERE id = ? AND identity = ?`, id, int(scope))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(kind, id)
	}
	return nil
}

func (s *Store) decodeRecord(kind domain.RecordKind, id any, blob []byte, out any) error {
	raw, err := s.open(kind, id, blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Corrupt(kind, id, err)
	}
	return nil
}

func (s *Store) scanRecords(
	ctx context.Context,
	op string,
	kind domain.RecordKind,
	query string,
	arg any,
	fn func(raw []byte, id uint32) error,
) error {
	type row struct {
		id   uint32
		blob []byte
	}
	var rows []row
	err := s.withConn(func(q querier) error {
		rs, err := q.QueryContext(ctx, query, arg)
		if err != nil {
			return err
		}
		defer rs.Close()
		for rs.Next() {
			var r row
			if err := rs.Scan(&r.id, &r.blob); err != nil {
				return err
			}
			rows = append(rows, r)
		}
		return rs.Err()
	})
	if err != nil {
		return domain.Storage(op, err)
	}
	for _, r := range rows {
		raw, err := s.open(kind, r.id, r.blob)
		if err != nil {
			return err
		}
		if err := fn(raw, r.id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadBlob(ctx context.Context, op, query string, args ...any) ([]byte, bool, error) {
	var blob []byte
	err := s.withConn(func(q querier) error {
		return q.QueryRowContext(ctx, query, args...).Scan(&blob)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.Storage(op, err)
	}
	return blob, true, nil
}

func (s *Store) execCount(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	err := s.withConn(func(q querier) error {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, domain.Storage(op, err)
}

var _ domain.ProtocolRecordStore = (*Store)(nil)
