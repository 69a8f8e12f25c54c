package message

// Complete closes out a PaymentRequest, reporting the amount actually
// paid. Amount must not exceed the parent PaymentRequest's amount; as
// with Settle, that cross-message comparison is left to the caller.
type Complete struct {
	Amount       string `json:"amount" validate:"required,decimalamount"`
	SettlementID string `json:"settlement_id,omitempty"`
}

func (c Complete) MessageType() TypeURI { return TypeComplete }

func (c Complete) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	return ValidateAmount("amount", c.Amount)
}
