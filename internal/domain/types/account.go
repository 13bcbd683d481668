package types

import "github.com/google/uuid"

// AccountProfile holds the identifiers this device registered or linked with.
type AccountProfile struct {
	Aci      uuid.UUID   `json:"aci"`
	Pni      uuid.UUID   `json:"pni"`
	E164     PhoneNumber `json:"e164,omitempty"`
	DeviceID DeviceID    `json:"device_id"`
}

// Credentials are the account's service credentials. They are stored here and
// read by the transport layer.
type Credentials struct {
	HTTPPassword string `json:"http_password"`
	SignalingKey []byte `json:"signaling_key"`
}
