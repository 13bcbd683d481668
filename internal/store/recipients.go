package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"keyward/internal/domain"
)

const recipientColumns = `id, aci, pni, e164, profile_given_name, profile_family_name, profile_key,
	is_registered, unidentified_access_mode, needs_pni_signature`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipient(row rowScanner) (domain.Recipient, error) {
	var (
		r          domain.Recipient
		aci, pni   uuid.NullUUID
		e164       sql.NullString
		given, fam sql.NullString
		mode       int
	)
	err := row.Scan(&r.ID, &aci, &pni, &e164, &given, &fam, &r.Profile.Key,
		&r.IsRegistered, &mode, &r.NeedsPniSignature)
	if err != nil {
		return domain.Recipient{}, err
	}
	if aci.Valid {
		r.Aci = &aci.UUID
	}
	if pni.Valid {
		r.Pni = &pni.UUID
	}
	if e164.Valid {
		p := domain.PhoneNumber(e164.String)
		r.E164 = &p
	}
	r.Profile.GivenName = given.String
	r.Profile.FamilyName = fam.String
	r.UnidentifiedAccessMode = domain.UnidentifiedAccessMode(mode)
	return r, nil
}

func uuidArg(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return u.String()
}

func phoneArg(p *domain.PhoneNumber) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func fetchRecipientWhere(ctx context.Context, q querier, where string, arg any) (domain.Recipient, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE `+where, arg)
	r, err := scanRecipient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recipient{}, false, nil
	}
	if err != nil {
		return domain.Recipient{}, false, fmt.Errorf("fetch recipient: %w", err)
	}
	return r, true, nil
}

// recipientTx implements domain.RecipientTx on one open transaction.
type recipientTx struct {
	tx  *sql.Tx
	log zerolog.Logger
}

func (t *recipientTx) FetchRecipient(ctx context.Context, id domain.RecipientID) (domain.Recipient, bool, error) {
	return fetchRecipientWhere(ctx, t.tx, "id = ?", int64(id))
}

func (t *recipientTx) FetchByAci(ctx context.Context, aci uuid.UUID) (domain.Recipient, bool, error) {
	return fetchRecipientWhere(ctx, t.tx, "aci = ?", aci.String())
}

func (t *recipientTx) FetchByPni(ctx context.Context, pni uuid.UUID) (domain.Recipient, bool, error) {
	return fetchRecipientWhere(ctx, t.tx, "pni = ?", pni.String())
}

func (t *recipientTx) FetchByE164(ctx context.Context, e164 domain.PhoneNumber) (domain.Recipient, bool, error) {
	return fetchRecipientWhere(ctx, t.tx, "e164 = ?", string(e164))
}

func (t *recipientTx) CreateRecipient(
	ctx context.Context,
	aci, pni *uuid.UUID,
	e164 *domain.PhoneNumber,
) (domain.Recipient, error) {
	if aci == nil && pni == nil && e164 == nil {
		return domain.Recipient{}, domain.Invariant("create recipient without identifiers")
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO recipients (aci, pni, e164) VALUES (?, ?, ?)`,
		uuidArg(aci), uuidArg(pni), phoneArg(e164))
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("create recipient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("create recipient: last insert id: %w", err)
	}
	r, ok, err := t.FetchRecipient(ctx, domain.RecipientID(id))
	if err != nil {
		return domain.Recipient{}, err
	}
	if !ok {
		return domain.Recipient{}, domain.Invariant("created recipient vanished", "id", fmt.Sprint(id))
	}
	return r, nil
}

// SetAci attaches aci. Replacing a different non-null aci is refused.
func (t *recipientTx) SetAci(ctx context.Context, id domain.RecipientID, aci *uuid.UUID) error {
	cur, ok, err := t.FetchRecipient(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(domain.KindRecipient, id)
	}
	if cur.Aci != nil && (aci == nil || *cur.Aci != *aci) {
		return domain.Invariant("aci is immutable once set",
			"recipient", fmt.Sprint(id), "current", cur.Aci.String())
	}
	return t.setColumn(ctx, id, "aci", uuidArg(aci))
}

func (t *recipientTx) SetPni(ctx context.Context, id domain.RecipientID, pni *uuid.UUID) error {
	return t.setColumn(ctx, id, "pni", uuidArg(pni))
}

func (t *recipientTx) SetE164(ctx context.Context, id domain.RecipientID, e164 *domain.PhoneNumber) error {
	return t.setColumn(ctx, id, "e164", phoneArg(e164))
}

func (t *recipientTx) setColumn(ctx context.Context, id domain.RecipientID, column string, v any) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE recipients SET `+column+` = ? WHERE id = ?`, v, int64(id))
	if err != nil {
		return fmt.Errorf("set %s on recipient %d: %w", column, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s on recipient %d: rows affected: %w", column, id, err)
	}
	if n == 0 {
		return domain.NotFound(domain.KindRecipient, id)
	}
	return nil
}

// MergeRecipients moves every row referencing from over to into:
// authored messages, the direct-message session, group memberships,
// reactions and receipts. Duplicate reactions and receipts are dropped and
// logged. from is deleted only if it no longer carries any identifier.
func (t *recipientTx) MergeRecipients(
	ctx context.Context,
	from, into domain.RecipientID,
) (domain.MergeReport, error) {
	rep := domain.MergeReport{From: from, Into: into}
	if from == into {
		return rep, domain.Invariant("merge recipient into itself", "recipient", fmt.Sprint(from))
	}

	n, err := t.exec(ctx, `UPDATE messages SET sender_recipient_id = ? WHERE sender_recipient_id = ?`, into, from)
	if err != nil {
		return rep, fmt.Errorf("merge messages: %w", err)
	}
	rep.Messages = n

	if err := t.mergeSessions(ctx, &rep); err != nil {
		return rep, err
	}

	if _, err := t.exec(ctx, `
		DELETE FROM group_v1_members
		WHERE recipient_id = ?
		  AND group_id IN (SELECT group_id FROM group_v1_members WHERE recipient_id = ?)`, from, into); err != nil {
		return rep, fmt.Errorf("merge group memberships: %w", err)
	}
	if rep.Memberships, err = t.exec(ctx,
		`UPDATE group_v1_members SET recipient_id = ? WHERE recipient_id = ?`, into, from); err != nil {
		return rep, fmt.Errorf("merge group memberships: %w", err)
	}

	dropped, err := t.dropDuplicates(ctx, "reaction", `
		SELECT a.id, a.message_id FROM reactions a
		WHERE a.author_recipient_id = ?
		  AND EXISTS (SELECT 1 FROM reactions b
		              WHERE b.author_recipient_id = ? AND b.message_id = a.message_id)`,
		`DELETE FROM reactions WHERE id = ?`, from, into)
	if err != nil {
		return rep, fmt.Errorf("merge reactions: %w", err)
	}
	rep.DroppedDuplicates += dropped
	if rep.Reactions, err = t.exec(ctx,
		`UPDATE reactions SET author_recipient_id = ? WHERE author_recipient_id = ?`, into, from); err != nil {
		return rep, fmt.Errorf("merge reactions: %w", err)
	}

	dropped, err = t.dropDuplicates(ctx, "receipt", `
		SELECT a.rowid, a.message_id FROM receipts a
		WHERE a.recipient_id = ?
		  AND EXISTS (SELECT 1 FROM receipts b
		              WHERE b.recipient_id = ? AND b.message_id = a.message_id)`,
		`DELETE FROM receipts WHERE rowid = ?`, from, into)
	if err != nil {
		return rep, fmt.Errorf("merge receipts: %w", err)
	}
	rep.DroppedDuplicates += dropped
	if rep.Receipts, err = t.exec(ctx,
		`UPDATE receipts SET recipient_id = ? WHERE recipient_id = ?`, into, from); err != nil {
		return rep, fmt.Errorf("merge receipts: %w", err)
	}

	src, ok, err := t.FetchRecipient(ctx, from)
	if err != nil {
		return rep, err
	}
	if ok && src.IsHusk() {
		if _, err := t.exec(ctx, `DELETE FROM recipients WHERE id = ?`, from); err != nil {
			return rep, fmt.Errorf("delete merged recipient: %w", err)
		}
		rep.Deleted = true
	}
	return rep, nil
}

// mergeSessions keeps into's direct-message session when both exist and
// re-points from's messages at it; otherwise from's session moves over.
func (t *recipientTx) mergeSessions(ctx context.Context, rep *domain.MergeReport) error {
	fromSess, fromOK, err := t.sessionOf(ctx, rep.From)
	if err != nil {
		return err
	}
	if !fromOK {
		return nil
	}
	intoSess, intoOK, err := t.sessionOf(ctx, rep.Into)
	if err != nil {
		return err
	}
	if !intoOK {
		if _, err := t.exec(ctx, `UPDATE dm_sessions SET recipient_id = ? WHERE id = ?`, rep.Into, fromSess); err != nil {
			return fmt.Errorf("move session: %w", err)
		}
		rep.SessionsMoved = 1
		return nil
	}
	if _, err := t.exec(ctx, `UPDATE messages SET session_id = ? WHERE session_id = ?`, intoSess, fromSess); err != nil {
		return fmt.Errorf("re-point session messages: %w", err)
	}
	if _, err := t.exec(ctx, `DELETE FROM dm_sessions WHERE id = ?`, fromSess); err != nil {
		return fmt.Errorf("drop session: %w", err)
	}
	rep.SessionsDropped = 1
	return nil
}

func (t *recipientTx) sessionOf(ctx context.Context, id domain.RecipientID) (int64, bool, error) {
	var sid int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM dm_sessions WHERE recipient_id = ?`, id).Scan(&sid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup session of recipient %d: %w", id, err)
	}
	return sid, true, nil
}

func (t *recipientTx) dropDuplicates(
	ctx context.Context,
	what, selectQuery, deleteQuery string,
	from, into domain.RecipientID,
) (int64, error) {
	rows, err := t.tx.QueryContext(ctx, selectQuery, from, into)
	if err != nil {
		return 0, err
	}
	type dup struct{ id, messageID int64 }
	var dups []dup
	for rows.Next() {
		var d dup
		if err := rows.Scan(&d.id, &d.messageID); err != nil {
			rows.Close()
			return 0, err
		}
		dups = append(dups, d)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	for _, d := range dups {
		t.log.Warn().
			Str("kind", what).
			Int64("message_id", d.messageID).
			Int64("from", int64(from)).
			Int64("into", int64(into)).
			Msg("dropping duplicate row during recipient merge")
		if _, err := t.exec(ctx, deleteQuery, d.id); err != nil {
			return 0, err
		}
	}
	return int64(len(dups)), nil
}

func (t *recipientTx) exec(ctx context.Context, query string, args ...any) (int64, error) {
	for i, a := range args {
		if id, ok := a.(domain.RecipientID); ok {
			args[i] = int64(id)
		}
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// WithRecipientTx runs fn inside one serialized transaction.
func (s *Store) WithRecipientTx(ctx context.Context, fn func(domain.RecipientTx) error) error {
	return s.withTx(ctx, "recipient tx", func(tx *sql.Tx) error {
		return fn(&recipientTx{tx: tx, log: s.log})
	})
}

// FetchRecipient loads one recipient by id.
func (s *Store) FetchRecipient(ctx context.Context, id domain.RecipientID) (domain.Recipient, bool, error) {
	var (
		r  domain.Recipient
		ok bool
	)
	err := s.withConn(func(q querier) error {
		var err error
		r, ok, err = fetchRecipientWhere(ctx, q, "id = ?", int64(id))
		return err
	})
	return r, ok, domain.Storage("fetch recipient", err)
}

// ListRecipients returns every recipient ordered by id.
func (s *Store) ListRecipients(ctx context.Context) ([]domain.Recipient, error) {
	var out []domain.Recipient
	err := s.withConn(func(q querier) error {
		rows, err := q.QueryContext(ctx, `SELECT `+recipientColumns+` FROM recipients ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanRecipient(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, domain.Storage("list recipients", err)
}

// UpdateProfile replaces the profile fields of a recipient.
func (s *Store) UpdateProfile(ctx context.Context, id domain.RecipientID, p domain.Profile) error {
	return s.updateRecipient(ctx, "update profile", id,
		`UPDATE recipients SET profile_given_name = ?, profile_family_name = ?, profile_key = ? WHERE id = ?`,
		p.GivenName, p.FamilyName, p.Key, int64(id))
}

// SetRegistered records whether the recipient is registered with the service.
func (s *Store) SetRegistered(ctx context.Context, id domain.RecipientID, registered bool) error {
	return s.updateRecipient(ctx, "set registered", id,
		`UPDATE recipients SET is_registered = ? WHERE id = ?`, registered, int64(id))
}

// SetUnidentifiedAccess records the sealed-sender mode and whether a PNI
// signature is still owed to the recipient.
func (s *Store) SetUnidentifiedAccess(
	ctx context.Context,
	id domain.RecipientID,
	mode domain.UnidentifiedAccessMode,
	needsPniSignature bool,
) error {
	return s.updateRecipient(ctx, "set unidentified access", id,
		`UPDATE recipients SET unidentified_access_mode = ?, needs_pni_signature = ? WHERE id = ?`,
		int(mode), needsPniSignature, int64(id))
}

func (s *Store) updateRecipient(ctx context.Context, op string, id domain.RecipientID, query string, args ...any) error {
	return s.withConn(func(q querier) error {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return domain.Storage(op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return domain.Storage(op, err)
		}
		if n == 0 {
			return domain.NotFound(domain.KindRecipient, id)
		}
		return nil
	})
}

// Compile-time assertions.
var (
	_ domain.RecipientTx    = (*recipientTx)(nil)
	_ domain.RecipientStore = (*Store)(nil)
)
