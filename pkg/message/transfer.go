package message

import (
	"encoding/json"

	"github.com/tap-rsvp/tap-go/pkg/caip"
)

// Transfer proposes an on-chain asset transfer from an originator to a
// beneficiary, carried out by one or more agents.
type Transfer struct {
	Asset          string          `json:"asset" validate:"required"`
	Amount         string          `json:"amount" validate:"required,decimalamount"`
	Originator     Party           `json:"originator" validate:"required"`
	Beneficiary    *Party          `json:"beneficiary,omitempty"`
	Agents         []Agent         `json:"agents" validate:"required,min=1,dive"`
	SettlementID   string          `json:"settlement_id,omitempty"`
	Memo           string          `json:"memo,omitempty"`
	Purpose        []string        `json:"purpose,omitempty"`
	Expiry         *int64          `json:"expiry,omitempty"`
	RawContext     json.RawMessage `json:"@context,omitempty"`
}

func (t Transfer) MessageType() TypeURI { return TypeTransfer }

func (t Transfer) Validate() error {
	if err := validateStruct(t); err != nil {
		return err
	}
	if _, err := caip.ParseAssetId(t.Asset); err != nil {
		return &ValidationError{Field: "asset", Reason: err.Error()}
	}
	if err := ValidateAmount("amount", t.Amount); err != nil {
		return err
	}

	parties := map[string]struct{}{t.Originator.ID: {}}
	if t.Beneficiary != nil {
		parties[t.Beneficiary.ID] = struct{}{}
	}
	return requireAgentsReferenceDeclaredParties(t.Agents, parties)
}
