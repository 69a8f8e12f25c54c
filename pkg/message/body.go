// Package message implements the closed set of TAP message bodies, their
// field-level invariants, and the neutral envelope that threads them
// together. Structural validation uses a shared *validator.Validate
// instance with one custom registration ("decimalamount") plus
// per-variant Go functions for cross-field checks.
package message

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// TypeURI is the fully qualified message type, e.g.
// "https://tap.rsvp/schema/1.0#Transfer".
type TypeURI string

const schemaBase = "https://tap.rsvp/schema/1.0#"

const (
	TypeTransfer             TypeURI = schemaBase + "Transfer"
	TypePayment              TypeURI = schemaBase + "Payment"
	TypeAuthorize            TypeURI = schemaBase + "Authorize"
	TypeReject               TypeURI = schemaBase + "Reject"
	TypeSettle               TypeURI = schemaBase + "Settle"
	TypeCancel               TypeURI = schemaBase + "Cancel"
	TypeRevert               TypeURI = schemaBase + "Revert"
	TypeComplete             TypeURI = schemaBase + "Complete"
	TypeConnect              TypeURI = schemaBase + "Connect"
	TypeAddAgents            TypeURI = schemaBase + "AddAgents"
	TypeReplaceAgent         TypeURI = schemaBase + "ReplaceAgent"
	TypeRemoveAgent          TypeURI = schemaBase + "RemoveAgent"
	TypeUpdatePolicies       TypeURI = schemaBase + "UpdatePolicies"
	TypeUpdateParty          TypeURI = schemaBase + "UpdateParty"
	TypeConfirmRelationship  TypeURI = schemaBase + "ConfirmRelationship"
	TypePresentation         TypeURI = schemaBase + "Presentation"
	TypeRequestPresentation  TypeURI = schemaBase + "RequestPresentation"
	TypeError                TypeURI = schemaBase + "Error"
)

// Body is implemented by every TAP message body variant.
type Body interface {
	// MessageType returns this body's fully qualified type URI.
	MessageType() TypeURI
	// Validate runs the base required-field/format checks and any
	// variant-specific cross-field checks.
	Validate() error
}

// ValidationError reports a single field-level validation failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

var (
	validatorOnce sync.Once
	sharedValidator *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		if err := v.RegisterValidation("decimalamount", validateDecimalAmountField); err != nil {
			panic(fmt.Sprintf("failed to register decimalamount validation: %v", err))
		}
		sharedValidator = v
	})
	return sharedValidator
}

// validateStruct runs the shared validator.Validate struct tags over v and
// translates the first failure into a *ValidationError.
func validateStruct(v any) error {
	if err := getValidator().Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Namespace(), Reason: fe.Tag()}
		}
		return &ValidationError{Field: "", Reason: err.Error()}
	}
	return nil
}

// decodeUnknownFields preserves arbitrary extra JSON under a raw bucket,
// used by bodies that round-trip "@context"/"@type" verbatim.
func decodeUnknownFields(data []byte, known map[string]struct{}) (json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if _, ok := known[k]; !ok {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return json.Marshal(extra)
}
