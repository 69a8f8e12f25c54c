package message

import "encoding/json"

// UpdatePolicies replaces the policy set an agent advertises for a
// transaction.
type UpdatePolicies struct {
	Agent    string          `json:"agent" validate:"required"`
	Policies json.RawMessage `json:"policies" validate:"required"`
}

func (u UpdatePolicies) MessageType() TypeURI { return TypeUpdatePolicies }

func (u UpdatePolicies) Validate() error {
	return validateStruct(u)
}

// UpdateParty amends the details of a previously declared party, e.g.
// after a travel-rule data exchange fills in fields the originator left
// blank.
type UpdateParty struct {
	Party Party `json:"party" validate:"required"`
}

func (u UpdateParty) MessageType() TypeURI { return TypeUpdateParty }

func (u UpdateParty) Validate() error {
	return validateStruct(u)
}

// ConfirmRelationship attests that an agent is authorized to act for a
// party, closing the loop opened by Connect.
type ConfirmRelationship struct {
	Agent string `json:"agent" validate:"required"`
	For   string `json:"for" validate:"required"`
}

func (c ConfirmRelationship) MessageType() TypeURI { return TypeConfirmRelationship }

func (c ConfirmRelationship) Validate() error {
	return validateStruct(c)
}
