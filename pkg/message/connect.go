package message

import "encoding/json"

// Connect proposes an out-of-band relationship between two agents,
// independent of any particular transaction.
type Connect struct {
	Agent       Agent           `json:"agent" validate:"required"`
	Principal   *Party          `json:"principal,omitempty"`
	Constraints json.RawMessage `json:"constraints,omitempty"`
}

func (c Connect) MessageType() TypeURI { return TypeConnect }

func (c Connect) Validate() error {
	return validateStruct(c)
}
