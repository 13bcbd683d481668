package interfaces

import (
	"context"

	"github.com/google/uuid"

	domaintypes "keyward/internal/domain/types"
)

// Reconciler resolves an identifier triple to one local recipient.
type Reconciler interface {
	Reconcile(
		ctx context.Context,
		e164 *domaintypes.PhoneNumber,
		aci, pni *uuid.UUID,
		trust domaintypes.TrustLevel,
	) (domaintypes.Recipient, bool, error)
}

// SelfRecipientProvider returns this device's own recipient record.
type SelfRecipientProvider interface {
	SelfRecipient(ctx context.Context) (domaintypes.Recipient, error)
	InvalidateSelfRecipient()
}
