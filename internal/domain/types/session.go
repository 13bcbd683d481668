package types

import (
	"time"

	"github.com/google/uuid"
)

// SenderKeyRecord is the group ratchet state a peer device distributed for one
// distribution id.
type SenderKeyRecord struct {
	Address        Address   `json:"address"`
	Device         DeviceID  `json:"device"`
	DistributionID uuid.UUID `json:"distribution_id"`
	Record         []byte    `json:"record"`
	CreatedAt      time.Time `json:"created_at"`
}
