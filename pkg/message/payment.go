package message

import (
	"encoding/json"

	"github.com/tap-rsvp/tap-go/pkg/caip"
)

// PaymentRequest is the Payment body: a merchant-initiated request for
// payment, which may be denominated in a specific on-chain asset, a fiat
// currency, or both.
type PaymentRequest struct {
	Merchant        Party           `json:"merchant" validate:"required"`
	Agents          []Agent         `json:"agents" validate:"required,min=1,dive"`
	Amount          string          `json:"amount" validate:"required,decimalamount"`
	Asset           string          `json:"asset,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	SupportedAssets []string        `json:"supported_assets,omitempty"`
	Invoice         string          `json:"invoice,omitempty"`
	Customer        *Party          `json:"customer,omitempty"`
	Expiry          *int64          `json:"expiry,omitempty"`
	RawContext      json.RawMessage `json:"@context,omitempty"`
}

func (p PaymentRequest) MessageType() TypeURI { return TypePayment }

func (p PaymentRequest) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	if p.Asset == "" && p.Currency == "" {
		return &ValidationError{Field: "asset/currency", Reason: "at least one of asset or currency is required"}
	}
	if p.Asset != "" {
		if _, err := caip.ParseAssetId(p.Asset); err != nil {
			return &ValidationError{Field: "asset", Reason: err.Error()}
		}
	}
	for _, a := range p.SupportedAssets {
		if _, err := caip.ParseAssetId(a); err != nil {
			return &ValidationError{Field: "supported_assets", Reason: err.Error()}
		}
	}
	if err := ValidateAmount("amount", p.Amount); err != nil {
		return err
	}

	parties := map[string]struct{}{p.Merchant.ID: {}}
	if p.Customer != nil {
		parties[p.Customer.ID] = struct{}{}
	}
	return requireAgentsReferenceDeclaredParties(p.Agents, parties)
}
