package message

// RequestPresentation asks a counterparty agent to produce travel-rule
// or other compliance data, naming the attachment formats it will
// accept.
type RequestPresentation struct {
	Formats []string `json:"formats" validate:"required,min=1"`
	Reason  string   `json:"reason,omitempty"`
}

func (r RequestPresentation) MessageType() TypeURI { return TypeRequestPresentation }

func (r RequestPresentation) Validate() error {
	return validateStruct(r)
}

// Presentation carries the compliance data requested by a
// RequestPresentation, as one or more envelope attachments.
type Presentation struct {
	Formats []string `json:"formats" validate:"required,min=1"`
}

func (p Presentation) MessageType() TypeURI { return TypePresentation }

func (p Presentation) Validate() error {
	return validateStruct(p)
}
