package message

import (
	"encoding/json"
	"fmt"
)

// Envelope is the neutral container every TAP message travels in,
// independent of which packing mode (Plain/Signed/AuthCrypt) eventually
// carries it over the wire. The Body field is polymorphic: its concrete
// Go type is selected by Type at unmarshal time, falling back to
// UnknownBody for any type URI this version of tap-go does not
// recognize.
type Envelope struct {
	ID          string       `json:"id"`
	Type        TypeURI      `json:"type"`
	From        string       `json:"from"`
	To          []string     `json:"to,omitempty"`
	Thid        string       `json:"thid,omitempty"`
	Pthid       string       `json:"pthid,omitempty"`
	CreatedTime int64        `json:"created_time"`
	ExpiresTime *int64       `json:"expires_time,omitempty"`
	Body        Body         `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// wireEnvelope mirrors Envelope's JSON shape with Body left as raw JSON,
// used on both sides of the custom marshaling below.
type wireEnvelope struct {
	ID          string          `json:"id"`
	Type        TypeURI         `json:"type"`
	From        string          `json:"from"`
	To          []string        `json:"to,omitempty"`
	Thid        string          `json:"thid,omitempty"`
	Pthid       string          `json:"pthid,omitempty"`
	CreatedTime int64           `json:"created_time"`
	ExpiresTime *int64          `json:"expires_time,omitempty"`
	Body        json.RawMessage `json:"body"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	var bodyType TypeURI
	var rawBody json.RawMessage
	var err error
	if e.Body != nil {
		bodyType = e.Body.MessageType()
		rawBody, err = json.Marshal(e.Body)
		if err != nil {
			return nil, fmt.Errorf("message: marshal body: %w", err)
		}
	}
	if e.Type != "" {
		bodyType = e.Type
	}
	w := wireEnvelope{
		ID:          e.ID,
		Type:        bodyType,
		From:        e.From,
		To:          e.To,
		Thid:        e.Thid,
		Pthid:       e.Pthid,
		CreatedTime: e.CreatedTime,
		ExpiresTime: e.ExpiresTime,
		Body:        rawBody,
		Attachments: e.Attachments,
	}
	return json.Marshal(w)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	body, err := unmarshalBody(w.Type, w.Body)
	if err != nil {
		return err
	}
	*e = Envelope{
		ID:          w.ID,
		Type:        w.Type,
		From:        w.From,
		To:          w.To,
		Thid:        w.Thid,
		Pthid:       w.Pthid,
		CreatedTime: w.CreatedTime,
		ExpiresTime: w.ExpiresTime,
		Body:        body,
		Attachments: w.Attachments,
	}
	return nil
}

// unmarshalBody decodes raw into the concrete Body type registered for
// typ, falling back to UnknownBody when typ is not one tap-go knows.
func unmarshalBody(typ TypeURI, raw json.RawMessage) (Body, error) {
	if len(raw) == 0 {
		return UnknownBody{Type: typ}, nil
	}
	decode := func(into Body) (Body, error) {
		if err := json.Unmarshal(raw, into); err != nil {
			return nil, fmt.Errorf("message: decode body %s: %w", typ, err)
		}
		return into, nil
	}
	switch typ {
	case TypeTransfer:
		return decode(&Transfer{})
	case TypePayment:
		return decode(&PaymentRequest{})
	case TypeAuthorize:
		return decode(&Authorize{})
	case TypeReject:
		return decode(&Reject{})
	case TypeSettle:
		return decode(&Settle{})
	case TypeCancel:
		return decode(&Cancel{})
	case TypeRevert:
		return decode(&Revert{})
	case TypeComplete:
		return decode(&Complete{})
	case TypeConnect:
		return decode(&Connect{})
	case TypeAddAgents:
		return decode(&AddAgents{})
	case TypeReplaceAgent:
		return decode(&ReplaceAgent{})
	case TypeRemoveAgent:
		return decode(&RemoveAgent{})
	case TypeUpdatePolicies:
		return decode(&UpdatePolicies{})
	case TypeUpdateParty:
		return decode(&UpdateParty{})
	case TypeConfirmRelationship:
		return decode(&ConfirmRelationship{})
	case TypePresentation:
		return decode(&Presentation{})
	case TypeRequestPresentation:
		return decode(&RequestPresentation{})
	case TypeError:
		return decode(&ErrorBody{})
	default:
		return UnknownBody{Type: typ, Raw: raw}, nil
	}
}

// CreateReply builds the Envelope that responds to parent, threading it
// per the rule thid = parent.thid, falling back to parent.id when parent
// opened the thread, and addressing it back to the sender of parent.
func CreateReply(parent Envelope, body Body, from string, id string, createdTime int64) Envelope {
	thid := parent.Thid
	if thid == "" {
		thid = parent.ID
	}
	return Envelope{
		ID:          id,
		Type:        body.MessageType(),
		From:        from,
		To:          []string{parent.From},
		Thid:        thid,
		CreatedTime: createdTime,
		Body:        body,
	}
}
