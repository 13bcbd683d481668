package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"keyward/internal/domain"
)

// References counts the rows that point at one recipient.
type References struct {
	Messages    int64 `json:"messages"`
	Sessions    int64 `json:"sessions"`
	Memberships int64 `json:"memberships"`
	Reactions   int64 `json:"reactions"`
	Receipts    int64 `json:"receipts"`
}

// Total is the sum of all counts.
func (r References) Total() int64 {
	return r.Messages + r.Sessions + r.Memberships + r.Reactions + r.Receipts
}

// DMSession returns the direct-message session of recipient, creating it on
// first use.
func (s *Store) DMSession(ctx context.Context, recipient domain.RecipientID) (int64, error) {
	var id int64
	err := s.withConn(func(q querier) error {
		err := q.QueryRowContext(ctx,
			`SELECT id FROM dm_sessions WHERE recipient_id = ?`, int64(recipient)).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		res, err := q.ExecContext(ctx, `INSERT INTO dm_sessions (recipient_id) VALUES (?)`, int64(recipient))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, domain.Storage("dm session", err)
}

// InsertMessage appends a message to a session. A zero sender marks an
// outgoing message.
func (s *Store) InsertMessage(
	ctx context.Context,
	session int64,
	sender domain.RecipientID,
	body string,
	sentAt time.Time,
) (int64, error) {
	var senderArg any
	if sender != 0 {
		senderArg = int64(sender)
	}
	var id int64
	err := s.withConn(func(q querier) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO messages (session_id, sender_recipient_id, body, sent_at) VALUES (?, ?, ?, ?)`,
			session, senderArg, body, sentAt.UnixMilli())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, domain.Storage("insert message", err)
}

// AddGroupMember records membership of recipient in a legacy group.
func (s *Store) AddGroupMember(ctx context.Context, groupID string, recipient domain.RecipientID) error {
	err := s.withConn(func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO group_v1_members (group_id, recipient_id, member_since) VALUES (?, ?, ?)`,
			groupID, int64(recipient), time.Now().UnixMilli())
		return err
	})
	return domain.Storage("add group member", err)
}

// GroupMembers lists the recipients of a legacy group.
func (s *Store) GroupMembers(ctx context.Context, groupID string) ([]domain.RecipientID, error) {
	var out []domain.RecipientID
	err := s.withConn(func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT recipient_id FROM group_v1_members WHERE group_id = ? ORDER BY recipient_id`, groupID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, domain.RecipientID(id))
		}
		return rows.Err()
	})
	return out, domain.Storage("group members", err)
}

// AddReaction sets author's reaction on a message, replacing any earlier one.
func (s *Store) AddReaction(ctx context.Context, message int64, author domain.RecipientID, emoji string) error {
	err := s.withConn(func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO reactions (message_id, author_recipient_id, emoji, sent_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (message_id, author_recipient_id) DO UPDATE SET emoji = excluded.emoji, sent_at = excluded.sent_at`,
			message, int64(author), emoji, time.Now().UnixMilli())
		return err
	})
	return domain.Storage("add reaction", err)
}

// AddReceipt records a delivery (and optionally read) receipt.
func (s *Store) AddReceipt(ctx context.Context, message int64, recipient domain.RecipientID, read bool) error {
	now := time.Now().UnixMilli()
	var readAt any
	if read {
		readAt = now
	}
	err := s.withConn(func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO receipts (message_id, recipient_id, delivered_at, read_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (message_id, recipient_id) DO UPDATE SET read_at = COALESCE(excluded.read_at, read_at)`,
			message, int64(recipient), now, readAt)
		return err
	})
	return domain.Storage("add receipt", err)
}

// RecipientReferences counts every row referencing id.
func (s *Store) RecipientReferences(ctx context.Context, id domain.RecipientID) (References, error) {
	var refs References
	err := s.withConn(func(q querier) error {
		return q.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM messages WHERE sender_recipient_id = ?1),
				(SELECT COUNT(*) FROM dm_sessions WHERE recipient_id = ?1),
				(SELECT COUNT(*) FROM group_v1_members WHERE recipient_id = ?1),
				(SELECT COUNT(*) FROM reactions WHERE author_recipient_id = ?1),
				(SELECT COUNT(*) FROM receipts WHERE recipient_id = ?1)`, int64(id),
		).Scan(&refs.Messages, &refs.Sessions, &refs.Memberships, &refs.Reactions, &refs.Receipts)
	})
	return refs, domain.Storage("recipient references", err)
}

// SessionMessageCount counts the messages in a session.
func (s *Store) SessionMessageCount(ctx context.Context, session int64) (int64, error) {
	var n int64
	err := s.withConn(func(q querier) error {
		return q.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, session).Scan(&n)
	})
	return n, domain.Storage("session message count", err)
}
