package reconcile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"keyward/internal/domain"
)

// OpKind tags an Op.
type OpKind int

const (
	OpCreate OpKind = iota + 1
	OpSetAci
	OpSetPni
	OpSetE164
	OpMerge
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpSetAci:
		return "set-aci"
	case OpSetPni:
		return "set-pni"
	case OpSetE164:
		return "set-e164"
	case OpMerge:
		return "merge"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// Op is one queued write. Target is the recipient written to (the merge
// source for OpMerge); Into is the merge destination. Set ops with a nil
// value clear the column.
type Op struct {
	Kind   OpKind
	Target domain.RecipientID
	Into   domain.RecipientID
	Aci    *uuid.UUID
	Pni    *uuid.UUID
	E164   *domain.PhoneNumber
}

func create(aci, pni *uuid.UUID, e164 *domain.PhoneNumber) Op {
	return Op{Kind: OpCreate, Aci: aci, Pni: pni, E164: e164}
}

func setAci(id domain.RecipientID, aci *uuid.UUID) Op { return Op{Kind: OpSetAci, Target: id, Aci: aci} }

func setPni(id domain.RecipientID, pni *uuid.UUID) Op { return Op{Kind: OpSetPni, Target: id, Pni: pni} }

func setE164(id domain.RecipientID, e164 *domain.PhoneNumber) Op {
	return Op{Kind: OpSetE164, Target: id, E164: e164}
}

func merge(from, into domain.RecipientID) Op { return Op{Kind: OpMerge, Target: from, Into: into} }

func (o Op) String() string {
	var b strings.Builder
	b.WriteString(o.Kind.String())
	switch o.Kind {
	case OpCreate:
		fmt.Fprintf(&b, " aci=%s pni=%s e164=%s", fmtUUID(o.Aci), fmtUUID(o.Pni), fmtPhone(o.E164))
	case OpSetAci:
		fmt.Fprintf(&b, " #%d aci=%s", o.Target, fmtUUID(o.Aci))
	case OpSetPni:
		fmt.Fprintf(&b, " #%d pni=%s", o.Target, fmtUUID(o.Pni))
	case OpSetE164:
		fmt.Fprintf(&b, " #%d e164=%s", o.Target, fmtPhone(o.E164))
	case OpMerge:
		fmt.Fprintf(&b, " #%d into #%d", o.Target, o.Into)
	}
	return b.String()
}

func fmtUUID(u *uuid.UUID) string {
	if u == nil {
		return "-"
	}
	return u.String()
}

func fmtPhone(p *domain.PhoneNumber) string {
	if p == nil {
		return "-"
	}
	return string(*p)
}
