package message

// Cancel withdraws a transaction that has not yet settled.
type Cancel struct {
	Reason string `json:"reason,omitempty"`
}

func (c Cancel) MessageType() TypeURI { return TypeCancel }

func (c Cancel) Validate() error {
	return validateStruct(c)
}
