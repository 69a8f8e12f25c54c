package message

// ErrorBody reports a protocol-level failure in response to a message
// tap-go could not process, distinct from a domain-level Reject.
type ErrorBody struct {
	Code    string `json:"code" validate:"required"`
	Comment string `json:"comment,omitempty"`
}

func (e ErrorBody) MessageType() TypeURI { return TypeError }

func (e ErrorBody) Validate() error {
	return validateStruct(e)
}
