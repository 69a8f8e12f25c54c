// Package customer implements the travel-rule customer extractor (spec.md
// §4.10): it watches the messages an agent sends and receives and derives
// IVMS101-shaped customer records for every Party referenced by a
// Transfer, Payment, UpdateParty or ConfirmRelationship. It is modeled on
// the teacher's auto-subscribed domain services (AppSessionService /
// ChannelService are constructed once and wired in at startup,
// app_session_service.go / channel_service.go); here the extractor wires
// itself into pkg/event at construction time — the same point
// pkg/node.Node subscribes it when a local agent registers — instead of
// being threaded by hand into a router.
package customer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/tap-rsvp/tap-go/pkg/event"
	"github.com/tap-rsvp/tap-go/pkg/message"
	"github.com/tap-rsvp/tap-go/pkg/store"
)

// IVMS101 is the subset of travel-rule originator/beneficiary fields
// tap-go's Party carries. Fields absent from a given message are left
// zero and never overwrite a previously merged value.
type IVMS101 struct {
	Name        string `json:"name,omitempty"`
	Country     string `json:"country,omitempty"`
	LEI         string `json:"lei,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Extractor derives and upserts Customer rows for one local agent. It
// subscribes itself to bus for the lifetime of the returned value; call
// Close to unsubscribe.
type Extractor struct {
	Store    *store.Store
	AgentDID string

	unsubscribe func()
}

// NewExtractor builds an Extractor for agentDID and subscribes it to bus,
// mirroring spec.md §4.10's "automatically subscribed per-agent on
// registration".
func NewExtractor(st *store.Store, bus *event.Bus, agentDID string) *Extractor {
	e := &Extractor{Store: st, AgentDID: agentDID}
	e.unsubscribe = bus.Subscribe(e.handle)
	return e
}

// Close unsubscribes the extractor from its event bus.
func (e *Extractor) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
}

func (e *Extractor) handle(evt event.Event) {
	var env *message.Envelope
	switch payload := evt.Payload.(type) {
	case *event.MessageReceived:
		env = payload.Envelope
	case *event.MessageSent:
		env = payload.Envelope
	default:
		return
	}
	if env == nil {
		return
	}

	// A handler must not publish events synchronously inline (spec.md
	// §4.7), so Extract's own storage writes happen here but it never
	// calls bus.Publish itself. The customer ids Extract returns are
	// discarded, and no CustomerUpdated event is published for them.
	if _, err := e.Extract(context.Background(), *env); err != nil {
		// Extraction failures are non-fatal to message processing: the
		// travel-rule record is best-effort metadata, not protocol state.
		return
	}
}

// Extract derives and upserts customer records from env's body, returning
// the customer ids touched. It is safe to call directly (e.g. from a
// processor or test) without going through the event bus.
func (e *Extractor) Extract(ctx context.Context, env message.Envelope) ([]string, error) {
	switch body := bodyValue(env.Body).(type) {
	case message.Transfer:
		return e.extractParties(ctx, body.Originator, body.Beneficiary)
	case message.PaymentRequest:
		return e.extractParties(ctx, body.Merchant, body.Customer)
	case message.UpdateParty:
		return e.extractParties(ctx, body.Party, nil)
	case message.ConfirmRelationship:
		return e.confirmRelationship(ctx, body.For)
	default:
		return nil, nil
	}
}

// bodyValue dereferences a pointer Body (the shape the envelope
// unmarshaler produces) to the value Body variants Extract switches on,
// so hand-constructed value bodies and decoded pointer bodies both match.
func bodyValue(b message.Body) any {
	switch v := b.(type) {
	case *message.Transfer:
		return *v
	case *message.PaymentRequest:
		return *v
	case *message.UpdateParty:
		return *v
	case *message.ConfirmRelationship:
		return *v
	default:
		return b
	}
}

func (e *Extractor) extractParties(ctx context.Context, parties ...interface{}) ([]string, error) {
	var ids []string
	for _, p := range parties {
		switch party := p.(type) {
		case message.Party:
			id, err := e.upsertParty(ctx, party)
			if err != nil {
				return ids, err
			}
			ids = append(ids, id)
		case *message.Party:
			if party == nil {
				continue
			}
			id, err := e.upsertParty(ctx, *party)
			if err != nil {
				return ids, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (e *Extractor) upsertParty(ctx context.Context, party message.Party) (string, error) {
	if party.ID == "" {
		return "", nil
	}

	existing := IVMS101{}
	verification := store.VerificationUnverified
	if prior, err := e.Store.GetCustomer(ctx, party.ID); err == nil {
		_ = json.Unmarshal([]byte(prior.RawJSON), &existing)
		verification = prior.Verification
	}

	merged := mergeIVMS101(existing, IVMS101{Name: party.Name, Country: party.Country, LEI: party.LEI})
	raw, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}

	c := store.Customer{
		CustomerID:   party.ID,
		AgentDID:     e.AgentDID,
		PIIHash:      hashPII(merged),
		RawJSON:      string(raw),
		Verification: verification,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := e.Store.UpsertCustomer(ctx, c); err != nil {
		return "", err
	}
	return party.ID, nil
}

// confirmRelationship marks an already-known party's customer record
// Verified, closing the loop a Connect/ConfirmRelationship exchange opens
// (spec.md §4.10's "record relationships between parties and acting
// agents"). A party tap-go has not seen through Transfer/Payment/
// UpdateParty yet has no fields to merge, so this creates a placeholder
// record rather than silently dropping the confirmation.
func (e *Extractor) confirmRelationship(ctx context.Context, partyID string) ([]string, error) {
	if partyID == "" {
		return nil, nil
	}
	existing := IVMS101{}
	raw := "{}"
	if prior, err := e.Store.GetCustomer(ctx, partyID); err == nil {
		_ = json.Unmarshal([]byte(prior.RawJSON), &existing)
		raw = prior.RawJSON
	}
	c := store.Customer{
		CustomerID:   partyID,
		AgentDID:     e.AgentDID,
		PIIHash:      hashPII(existing),
		RawJSON:      raw,
		Verification: store.VerificationVerified,
	}
	if err := e.Store.UpsertCustomer(ctx, c); err != nil {
		return nil, err
	}
	return []string{partyID}, nil
}

// mergeIVMS101 copies every non-empty field of update onto base; a blank
// field in update leaves base's value as it was.
func mergeIVMS101(base, update IVMS101) IVMS101 {
	if update.Name != "" {
		base.Name = update.Name
	}
	if update.Country != "" {
		base.Country = update.Country
	}
	if update.LEI != "" {
		base.LEI = update.LEI
	}
	if update.DateOfBirth != "" {
		base.DateOfBirth = update.DateOfBirth
	}
	if update.Address != "" {
		base.Address = update.Address
	}
	return base
}

// hashPII derives an indexable digest of a customer's PII so lookups and
// joins never need the raw fields themselves (spec.md §4.10: "PII strings
// are hashed for indexing; raw values stored only in the owning agent's
// database").
func hashPII(v IVMS101) string {
	sum := sha256.Sum256([]byte(v.Name + "|" + v.Country + "|" + v.LEI + "|" + v.DateOfBirth + "|" + v.Address))
	return hex.EncodeToString(sum[:])
}
