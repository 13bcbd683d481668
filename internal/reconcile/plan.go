package reconcile

import (
	"github.com/google/uuid"

	"keyward/internal/domain"
)

// Query is one reconciliation request. At least one identifier must be set.
type Query struct {
	E164  *domain.PhoneNumber
	Aci   *uuid.UUID
	Pni   *uuid.UUID
	Trust domain.TrustLevel
}

// Empty reports whether no identifier was supplied.
func (q Query) Empty() bool { return q.E164 == nil && q.Aci == nil && q.Pni == nil }

// Hits are the recipients found by the three point queries.
type Hits struct {
	ByAci  *domain.Recipient
	ByPni  *domain.Recipient
	ByE164 *domain.Recipient
}

// Distinct returns the hits deduplicated by id, in aci, e164, pni order.
func (h Hits) Distinct() []domain.Recipient {
	var out []domain.Recipient
	seen := map[domain.RecipientID]bool{}
	for _, r := range []*domain.Recipient{h.ByAci, h.ByE164, h.ByPni} {
		if r == nil || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, *r)
	}
	return out
}

// Winner picks the recipient the identifiers resolve to: the aci match, else
// the e164 match, else the pni match. When aci is supplied, an e164 or pni
// match owned by a different aci is passed over.
func (h Hits) Winner(aci *uuid.UUID) (domain.Recipient, bool) {
	for _, r := range []*domain.Recipient{h.ByAci, h.ByE164, h.ByPni} {
		if r == nil {
			continue
		}
		if aci != nil && r.Aci != nil && *r.Aci != *aci {
			continue
		}
		return *r, true
	}
	return domain.Recipient{}, false
}

// Plan decides the writes needed to bring the matched recipients in line with
// q. A nil result with a nil error means the single matched recipient already
// carries every supplied identifier.
func Plan(q Query, h Hits) ([]Op, error) {
	if q.Empty() {
		return nil, domain.Invariant("reconcile called without identifiers")
	}
	distinct := h.Distinct()
	if len(distinct) == 1 && distinct[0].Matches(q.E164, q.Aci, q.Pni) {
		return nil, nil
	}
	if len(distinct) == 0 {
		e164 := q.E164
		if q.Trust != domain.Certain && q.Aci != nil {
			e164 = nil
		}
		return []Op{create(q.Aci, q.Pni, e164)}, nil
	}

	p := newPlanner(q, h)
	if p.releaseConflicts() && p.remaining() == 0 {
		// The matched rows belong to another account. The aci attaches to
		// the new row once it exists. An e164 left on its old row is not
		// free to carry over.
		e164 := q.E164
		if p.keptE164 {
			e164 = nil
		}
		if e164 == nil && q.Pni == nil {
			p.emit(create(q.Aci, nil, nil))
		} else {
			p.emit(create(nil, q.Pni, e164))
		}
		return p.ops, nil
	}

	switch p.remaining() {
	case 1:
		p.update(p.only())
	default:
		p.resolveConflicts()
	}
	return p.ops, nil
}

// planner tracks the matched recipients as the queued ops would leave them.
type planner struct {
	q    Query
	recs map[domain.RecipientID]*domain.Recipient
	ops  []Op

	// Current holder of each supplied identifier, 0 when none.
	aciID, pniID, e164ID domain.RecipientID

	// Set when an uncertain e164 was left on a row owned by another aci.
	keptE164 bool
}

func newPlanner(q Query, h Hits) *planner {
	p := &planner{q: q, recs: map[domain.RecipientID]*domain.Recipient{}}
	track := func(r *domain.Recipient) domain.RecipientID {
		if r == nil {
			return 0
		}
		if _, ok := p.recs[r.ID]; !ok {
			cp := *r
			p.recs[r.ID] = &cp
		}
		return r.ID
	}
	p.aciID = track(h.ByAci)
	p.pniID = track(h.ByPni)
	p.e164ID = track(h.ByE164)
	return p
}

func (p *planner) remaining() int {
	seen := map[domain.RecipientID]bool{}
	for _, id := range []domain.RecipientID{p.aciID, p.e164ID, p.pniID} {
		if id != 0 {
			seen[id] = true
		}
	}
	return len(seen)
}

func (p *planner) only() domain.RecipientID {
	for _, id := range []domain.RecipientID{p.aciID, p.e164ID, p.pniID} {
		if id != 0 {
			return id
		}
	}
	return 0
}

// releaseConflicts handles rows matched by e164 or pni that already belong
// to a different account identity. Such a row keeps its aci but gives up the
// matched identifiers: e164 and pni when the e164 matched, pni alone when
// only the pni matched. An uncertain e164 stays put while another matched
// row remains to receive the other identifiers. It reports whether any row
// was dropped from the match.
func (p *planner) releaseConflicts() bool {
	if p.q.Aci == nil {
		return false
	}
	released := false
	if id := p.e164ID; id != 0 && id != p.aciID && p.conflicts(id) {
		r := p.recs[id]
		switch {
		case p.q.Trust != domain.Certain && p.hasOtherMatch(id):
			if p.pniID == id {
				p.emit(setPni(id, nil))
			}
			p.keptE164 = true
		default:
			p.emit(setE164(id, nil))
			if r.Pni != nil {
				p.emit(setPni(id, nil))
			}
		}
		p.e164ID = 0
		if p.pniID == id {
			p.pniID = 0
		}
		released = true
	}
	if id := p.pniID; id != 0 && id != p.aciID && p.conflicts(id) {
		p.emit(setPni(id, nil))
		p.pniID = 0
		released = true
	}
	return released
}

func (p *planner) hasOtherMatch(id domain.RecipientID) bool {
	return (p.aciID != 0 && p.aciID != id) || (p.pniID != 0 && p.pniID != id)
}

func (p *planner) conflicts(id domain.RecipientID) bool {
	r := p.recs[id]
	return r.Aci != nil && *r.Aci != *p.q.Aci
}

// update fills in the supplied identifiers on the only matched recipient.
func (p *planner) update(id domain.RecipientID) {
	r := p.recs[id]
	if p.q.E164 != nil && !domain.EqualPhone(r.E164, p.q.E164) && p.q.Trust == domain.Certain {
		p.emit(setE164(id, p.q.E164))
	}
	if p.q.Pni != nil && !domain.EqualUUID(r.Pni, p.q.Pni) {
		p.emit(setPni(id, p.q.Pni))
	}
	if p.q.Aci != nil && r.Aci == nil {
		p.emit(setAci(id, p.q.Aci))
	}
}

// resolveConflicts folds the matched recipients together pairwise: pni onto
// the e164 match, pni onto the aci match, then e164 onto the aci match. The
// aci match is always the destination and never loses its aci.
func (p *planner) resolveConflicts() {
	if p.pniID != 0 && p.e164ID != 0 && p.pniID != p.e164ID && p.pniID != p.aciID {
		p.foldPni(p.pniID, p.e164ID)
	}
	if p.pniID != 0 && p.aciID != 0 && p.pniID != p.aciID {
		p.foldPni(p.pniID, p.aciID)
	}
	if p.e164ID != 0 && p.aciID != 0 && p.e164ID != p.aciID && p.q.Trust == domain.Certain {
		p.foldE164(p.e164ID, p.aciID)
	}
}

// foldPni moves the pni from one recipient onto another, merging the source
// away when the pni was all it had.
func (p *planner) foldPni(from, into domain.RecipientID) {
	f, t := p.recs[from], p.recs[into]
	p.emit(setPni(from, nil))
	if f.Aci == nil && f.E164 == nil {
		if t.Pni != nil {
			p.emit(setPni(into, nil))
		}
		p.emit(merge(from, into))
	}
	p.emit(setPni(into, p.q.Pni))
	p.pniID = into
}

// foldE164 moves the e164 from one recipient onto another, merging the
// source away when the e164 was all it had.
func (p *planner) foldE164(from, into domain.RecipientID) {
	f, t := p.recs[from], p.recs[into]
	p.emit(setE164(from, nil))
	if f.Aci == nil && f.Pni == nil {
		if t.E164 != nil {
			p.emit(setE164(into, nil))
		}
		p.emit(merge(from, into))
	}
	p.emit(setE164(into, p.q.E164))
	p.e164ID = into
}

// emit queues op and applies it to the snapshot.
func (p *planner) emit(op Op) {
	p.ops = append(p.ops, op)
	r := p.recs[op.Target]
	switch op.Kind {
	case OpSetAci:
		r.Aci = op.Aci
	case OpSetPni:
		r.Pni = op.Pni
	case OpSetE164:
		r.E164 = op.E164
	case OpMerge:
		if r.IsHusk() {
			delete(p.recs, op.Target)
		}
	}
}
