package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"keyward/internal/domain"
)

// Engine applies reconciliation plans against a recipient store.
type Engine struct {
	store domain.RecipientStore
	log   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// New returns an Engine writing through store.
func New(store domain.RecipientStore, opts ...Option) *Engine {
	e := &Engine{store: store, log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reconcile resolves the supplied identifiers to one persisted recipient and
// reports whether anything was written. All reads and writes happen in one
// transaction.
func (e *Engine) Reconcile(
	ctx context.Context,
	e164 *domain.PhoneNumber,
	aci, pni *uuid.UUID,
	trust domain.TrustLevel,
) (domain.Recipient, bool, error) {
	q := Query{E164: e164, Aci: aci, Pni: pni, Trust: trust}
	var (
		winner  domain.Recipient
		changed bool
	)
	err := e.store.WithRecipientTx(ctx, func(tx domain.RecipientTx) error {
		hits, err := lookup(ctx, tx, q)
		if err != nil {
			return err
		}
		ops, err := Plan(q, hits)
		if err != nil {
			return err
		}
		for _, op := range ops {
			e.log.Debug().Stringer("op", op).Msg("reconcile op")
			if err := e.apply(ctx, tx, op); err != nil {
				return fmt.Errorf("apply %s: %w", op, err)
			}
			changed = true
		}

		if changed {
			if hits, err = lookup(ctx, tx, q); err != nil {
				return err
			}
		}
		w, ok := hits.Winner(q.Aci)
		if !ok {
			return domain.Invariant("no recipient matches after reconcile")
		}
		attached, err := e.attach(ctx, tx, q, w)
		if err != nil {
			return err
		}
		if attached {
			changed = true
			var found bool
			if w, found, err = tx.FetchRecipient(ctx, w.ID); err != nil {
				return err
			} else if !found {
				return domain.Invariant("reconciled recipient vanished", "recipient", fmt.Sprint(w.ID))
			}
		}
		if w.IsHusk() {
			return domain.Invariant("reconcile resolved to a husk", "recipient", fmt.Sprint(w.ID))
		}
		winner = w
		return nil
	})
	if err != nil {
		if domain.IsInvariant(err) {
			e.log.Error().Err(err).
				Str("e164", fmtPhone(e164)).
				Str("aci", fmtUUID(aci)).
				Str("pni", fmtUUID(pni)).
				Stringer("trust", trust).
				Msg("recipient reconciliation refused")
		}
		return domain.Recipient{}, false, err
	}
	return winner, changed, nil
}

// ReconcileAddress resolves a protocol address. ACI addresses are bare
// UUIDs; PNI addresses carry the "PNI:" prefix.
func (e *Engine) ReconcileAddress(
	ctx context.Context,
	addr domain.Address,
	trust domain.TrustLevel,
) (domain.Recipient, bool, error) {
	id, scope, err := domain.ParseAddress(string(addr))
	if err != nil {
		return domain.Recipient{}, false, err
	}
	if scope == domain.ScopePhoneNumber {
		return e.Reconcile(ctx, nil, nil, &id, trust)
	}
	return e.Reconcile(ctx, nil, &id, nil, trust)
}

func lookup(ctx context.Context, tx domain.RecipientTx, q Query) (Hits, error) {
	var h Hits
	if q.Aci != nil {
		r, ok, err := tx.FetchByAci(ctx, *q.Aci)
		if err != nil {
			return h, err
		}
		if ok {
			h.ByAci = &r
		}
	}
	if q.Pni != nil {
		r, ok, err := tx.FetchByPni(ctx, *q.Pni)
		if err != nil {
			return h, err
		}
		if ok {
			h.ByPni = &r
		}
	}
	if q.E164 != nil {
		r, ok, err := tx.FetchByE164(ctx, *q.E164)
		if err != nil {
			return h, err
		}
		if ok {
			h.ByE164 = &r
		}
	}
	return h, nil
}

func (e *Engine) apply(ctx context.Context, tx domain.RecipientTx, op Op) error {
	switch op.Kind {
	case OpCreate:
		r, err := tx.CreateRecipient(ctx, op.Aci, op.Pni, op.E164)
		if err != nil {
			return err
		}
		e.log.Debug().Int64("recipient", int64(r.ID)).Msg("recipient created")
		return nil
	case OpSetAci:
		return tx.SetAci(ctx, op.Target, op.Aci)
	case OpSetPni:
		return tx.SetPni(ctx, op.Target, op.Pni)
	case OpSetE164:
		return tx.SetE164(ctx, op.Target, op.E164)
	case OpMerge:
		return e.merge(ctx, tx, op.Target, op.Into)
	default:
		return domain.Invariant("unknown reconcile op", "kind", op.Kind.String())
	}
}

func (e *Engine) merge(ctx context.Context, tx domain.RecipientTx, from, into domain.RecipientID) error {
	rep, err := tx.MergeRecipients(ctx, from, into)
	if err != nil {
		return err
	}
	// TODO: emit phone-number-change and session-switchover events once a
	// consumer for them exists.
	e.log.Info().
		Int64("from", int64(rep.From)).
		Int64("into", int64(rep.Into)).
		Int64("messages", rep.Messages).
		Int64("sessions_moved", rep.SessionsMoved).
		Int64("sessions_dropped", rep.SessionsDropped).
		Int64("memberships", rep.Memberships).
		Int64("reactions", rep.Reactions).
		Int64("receipts", rep.Receipts).
		Int64("dropped_duplicates", rep.DroppedDuplicates).
		Bool("deleted", rep.Deleted).
		Msg("recipients merged")
	return nil
}

// attach writes any supplied identifier the winner still lacks. An e164 is
// only attached under certain trust. A holder left bare by giving up its
// identifier is merged into the winner.
func (e *Engine) attach(ctx context.Context, tx domain.RecipientTx, q Query, w domain.Recipient) (bool, error) {
	changed := false
	if q.Aci != nil {
		switch {
		case w.Aci == nil:
			if err := tx.SetAci(ctx, w.ID, q.Aci); err != nil {
				return changed, err
			}
			changed = true
		case *w.Aci != *q.Aci:
			return changed, domain.Invariant("resolved recipient carries a different aci",
				"recipient", fmt.Sprint(w.ID), "aci", w.Aci.String(), "wanted", q.Aci.String())
		}
	}

	if q.Pni != nil && !domain.EqualUUID(w.Pni, q.Pni) {
		holder, ok, err := tx.FetchByPni(ctx, *q.Pni)
		if err != nil {
			return changed, err
		}
		if ok && holder.ID != w.ID {
			if err := tx.SetPni(ctx, holder.ID, nil); err != nil {
				return changed, err
			}
			if holder.Aci == nil && holder.E164 == nil {
				if err := e.merge(ctx, tx, holder.ID, w.ID); err != nil {
					return changed, err
				}
			}
		}
		if err := tx.SetPni(ctx, w.ID, q.Pni); err != nil {
			return changed, err
		}
		changed = true
	}

	if q.E164 != nil && q.Trust == domain.Certain && !domain.EqualPhone(w.E164, q.E164) {
		holder, ok, err := tx.FetchByE164(ctx, *q.E164)
		if err != nil {
			return changed, err
		}
		if ok && holder.ID != w.ID {
			if err := tx.SetE164(ctx, holder.ID, nil); err != nil {
				return changed, err
			}
			if holder.Aci == nil && holder.Pni == nil {
				if err := e.merge(ctx, tx, holder.ID, w.ID); err != nil {
					return changed, err
				}
			}
		}
		if err := tx.SetE164(ctx, w.ID, q.E164); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

var _ domain.Reconciler = (*Engine)(nil)
