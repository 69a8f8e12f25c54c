package message

// Reject signals that an agent refuses to proceed with the transaction.
// A Reject from any agent wins over a concurrent Authorize.
type Reject struct {
	Code   string `json:"code" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

func (r Reject) MessageType() TypeURI { return TypeReject }

func (r Reject) Validate() error {
	return validateStruct(r)
}
