package message

// Revert requests that a settled transfer be reversed, naming the
// on-chain reference to revert against.
type Revert struct {
	SettlementAddress string `json:"settlement_address" validate:"required"`
	Reason            string `json:"reason,omitempty"`
}

func (r Revert) MessageType() TypeURI { return TypeRevert }

func (r Revert) Validate() error {
	return validateStruct(r)
}
