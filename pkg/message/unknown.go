package message

import "encoding/json"

// UnknownBody carries the raw JSON of a body whose type URI this version
// of tap-go does not recognize, for forward compatibility with future
// message types.
type UnknownBody struct {
	Type TypeURI
	Raw  json.RawMessage
}

func (u UnknownBody) MessageType() TypeURI { return u.Type }

// Validate never fails for an unknown body: tap-go has no invariants to
// check against a type it does not understand.
func (u UnknownBody) Validate() error { return nil }

func (u UnknownBody) MarshalJSON() ([]byte, error) {
	if u.Raw == nil {
		return []byte("{}"), nil
	}
	return u.Raw, nil
}
