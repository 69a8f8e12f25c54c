package message

// Authorize signals that an agent consents to proceed with the
// transaction, optionally pinning a settlement address and expiry.
type Authorize struct {
	SettlementAddress string `json:"settlement_address,omitempty"`
	Expiry            *int64 `json:"expiry,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

func (a Authorize) MessageType() TypeURI { return TypeAuthorize }

func (a Authorize) Validate() error {
	return validateStruct(a)
}
