package message

// Settle reports that an on-chain transfer settling the transaction has
// been broadcast. Amount, when present, must not exceed the
// amount of the Transfer it settles; tap-go leaves that cross-message
// check to the caller since Settle alone does not carry its parent's
// amount.
type Settle struct {
	TransactionID    string `json:"transaction_id" validate:"required"`
	SettlementID     string `json:"settlement_id,omitempty"`
	Amount           string `json:"amount,omitempty" validate:"omitempty,decimalamount"`
}

func (s Settle) MessageType() TypeURI { return TypeSettle }

func (s Settle) Validate() error {
	if err := validateStruct(s); err != nil {
		return err
	}
	if s.Amount != "" {
		return ValidateAmount("amount", s.Amount)
	}
	return nil
}
