// Package txstate implements the transaction lifecycle state machine
// (spec.md §4.9): Pending -> Authorized -> Settled, with branches to
// Rejected/Cancelled/Reverted/Failed, driven by inbound or outbound
// messages whose thid names the transaction. Each transition reads the
// current Transaction/TransactionAgent snapshot and writes the next one
// inside a single store.ApplyTransition, the same shape the teacher uses
// for its quorum-weighted AppSessionService.SubmitAppState
// (app_session_service.go: read participants + weights, decide the new
// ledger/session state, write both back in one db.Transaction closure).
package txstate

import (
	"context"
	"fmt"

	"github.com/tap-rsvp/tap-go/pkg/event"
	"github.com/tap-rsvp/tap-go/pkg/message"
	"github.com/tap-rsvp/tap-go/pkg/store"
)

// Machine applies inbound/outbound envelopes to transaction state, backed
// by one agent's Store and publishing transitions to its event.Bus.
type Machine struct {
	Store *store.Store
	Bus   *event.Bus
}

func New(st *store.Store, bus *event.Bus) *Machine {
	return &Machine{Store: st, Bus: bus}
}

// ProtocolError reports a state-machine precondition violation (e.g. a
// Settle with no prior Authorize), the taxonomy-level "Protocol" error
// kind from spec.md §7: the message is dropped and an event emitted, the
// transaction's state is left unchanged.
type ProtocolError struct {
	TransactionID string
	Reason        string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("txstate: %s: %s", e.TransactionID, e.Reason)
}

// transactionIDOf returns the transaction id a non-initiating envelope
// refers to: its thid, per spec.md §3's threading rule. The initiating
// Transfer/Payment's own id becomes the transaction id once Create is
// called on it.
func transactionIDOf(env message.Envelope) (string, error) {
	if env.Thid == "" {
		return "", fmt.Errorf("txstate: envelope %s has no thid; not a transaction reply", env.ID)
	}
	return env.Thid, nil
}

// Apply advances the transaction state machine for one inbound or
// outbound envelope, as observed by localAgentDID. It dispatches on the
// envelope's body type; bodies with no state-machine effect (Connect,
// UpdatePolicies, UpdateParty, ConfirmRelationship, Presentation,
// RequestPresentation, ErrorBody) return nil without touching storage —
// ErrorBody in particular is recorded by the caller via pkg/store
// directly and only emits an event, per spec.md §4.9's "any | Error |
// unchanged" row.
func (m *Machine) Apply(ctx context.Context, env message.Envelope) error {
	switch body := env.Body.(type) {
	case message.Transfer:
		return m.createTransaction(ctx, env, store.KindTransfer, body.Asset, body.Amount, body.Agents)
	case *message.Transfer:
		return m.createTransaction(ctx, env, store.KindTransfer, body.Asset, body.Amount, body.Agents)
	case message.PaymentRequest:
		return m.createTransaction(ctx, env, store.KindPayment, body.Asset, body.Amount, body.Agents)
	case *message.PaymentRequest:
		return m.createTransaction(ctx, env, store.KindPayment, body.Asset, body.Amount, body.Agents)
	case message.Authorize:
		return m.applyAuthorize(ctx, env)
	case *message.Authorize:
		return m.applyAuthorize(ctx, env)
	case message.Reject:
		return m.applyReject(ctx, env)
	case *message.Reject:
		return m.applyReject(ctx, env)
	case message.Cancel:
		return m.applyCancel(ctx, env)
	case *message.Cancel:
		return m.applyCancel(ctx, env)
	case message.Settle:
		return m.applySettle(ctx, env, body.TransactionID, body.Amount)
	case *message.Settle:
		return m.applySettle(ctx, env, body.TransactionID, body.Amount)
	case message.Complete:
		return m.applySettle(ctx, env, env.Thid, body.Amount)
	case *message.Complete:
		return m.applySettle(ctx, env, env.Thid, body.Amount)
	case message.Revert:
		return m.applyRevert(ctx, env)
	case *message.Revert:
		return m.applyRevert(ctx, env)
	case message.AddAgents:
		return m.applyAddAgents(ctx, env, body.Agents)
	case *message.AddAgents:
		return m.applyAddAgents(ctx, env, body.Agents)
	case message.ReplaceAgent:
		return m.applyReplaceAgent(ctx, env, body.Original, body.Replacement)
	case *message.ReplaceAgent:
		return m.applyReplaceAgent(ctx, env, body.Original, body.Replacement)
	case message.RemoveAgent:
		return m.applyRemoveAgent(ctx, env, body.Agent)
	case *message.RemoveAgent:
		return m.applyRemoveAgent(ctx, env, body.Agent)
	default:
		return nil
	}
}

func (m *Machine) createTransaction(ctx context.Context, env message.Envelope, kind store.TransactionKind, asset, amount string, agents []message.Agent) error {
	if env.Thid != "" {
		// A Transfer/Payment carrying a thid is itself a reply in some
		// flows (e.g. a counter-offer); tap-go treats only the thid-less
		// form as a new transaction, per spec.md §3's threading rule.
		return nil
	}

	txn := store.Transaction{
		TransactionID: env.ID,
		Kind:          kind,
		ReferenceID:   asset,
		State:         store.StateProposed,
		FromDID:       env.From,
		ThreadID:      env.ID,
		Amount:        amount,
	}
	if len(env.To) > 0 {
		txn.ToDID = env.To[0]
	}
	if err := m.Store.UpsertTransaction(ctx, txn); err != nil {
		return err
	}

	rows := make([]store.TransactionAgent, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, store.TransactionAgent{
			TransactionID: env.ID,
			AgentDID:      a.ID,
			Role:          a.Role,
			ForParty:      a.For,
		})
	}
	if err := m.Store.InsertTransactionAgents(ctx, rows); err != nil {
		return err
	}

	m.publish(event.KindTransactionCreated, &event.TransactionCreated{TransactionID: env.ID})
	return nil
}

func (m *Machine) applyAuthorize(ctx context.Context, env message.Envelope) error {
	txID, err := transactionIDOf(env)
	if err != nil {
		return err
	}
	return m.transition(ctx, txID, func(current store.Transaction, agents []store.TransactionAgent) (store.TransitionResult, error) {
		found := false
		for i := range agents {
			if agents[i].AgentDID == env.From {
				agents[i].Authorized = true
				found = true
			}
		}
		if !found {
			agents = append(agents, store.TransactionAgent{TransactionID: txID, AgentDID: env.From, Authorized: true})
		}

		if isTerminal(current.State) {
			// The transaction already reached a terminal state (e.g. a
			// Reject arrived first and won); the state itself doesn't
			// move, but env.From's own Authorized flag still needs to be
			// recorded, so a later read of TransactionAgent(env.From)
			// reflects that it authorized, independent of arrival order.
			return store.TransitionResult{NewState: current.State, AgentUpserts: agents}, nil
		}
		if current.State != store.StateProposed && current.State != store.StateAuthorized {
			return store.TransitionResult{}, &ProtocolError{TransactionID: txID, Reason: "authorize received outside pending/authorized state"}
		}

		newState := store.StateProposed
		if allAuthorizedNoneRejected(agents) {
			newState = store.StateAuthorized
		}
		return store.TransitionResult{NewState: newState, AgentUpserts: agents}, nil
	})
}

func (m *Machine) applyReject(ctx context.Context, env message.Envelope) error {
	txID, err := transactionIDOf(env)
	if err != nil {
		return err
	}
	return m.transition(ctx, txID, func(current store.Transaction, agents []store.TransactionAgent) (store.TransitionResult, error) {
		if isTerminal(current.State) {
			// Reject wins among concurrent Authorize/Reject arrivals: once
			// terminal as Rejected this is idempotent; any other terminal
			// state rejects a late Reject as a protocol violation.
			if current.State == store.StateRejected {
				return store.TransitionResult{NewState: current.State}, nil
			}
			return store.TransitionResult{}, &ProtocolError{TransactionID: txID, Reason: "reject received after transaction reached a terminal state"}
		}

		found := false
		for i := range agents {
			if agents[i].AgentDID == env.From {
				agents[i].Rejected = true
				found = true
			}
		}
		if !found {
			agents = append(agents, store.TransactionAgent{TransactionID: txID, AgentDID: env.From, Rejected: true})
		}
		return store.TransitionResult{NewState: store.StateRejected, AgentUpserts: agents}, nil
	})
}

func (m *Machine) applyCancel(ctx context.Context, env message.Envelope) error {
	txID, err := transactionIDOf(env)
	if err != nil {
		return err
	}
	return m.transition(ctx, txID, func(current store.Transaction, _ []store.TransactionAgent) (store.TransitionResult, error) {
		if current.State != store.StateProposed {
			return store.TransitionResult{}, &ProtocolError{TransactionID: txID, Reason: "cancel received outside pending state"}
		}
		return store.TransitionResult{NewState: store.StateCancelled}, nil
	})
}

func (m *Machine) applySettle(ctx context.Context, env message.Envelope, declaredTxID, settleAmount string) error {
	txID, err := transactionIDOf(env)
	if err != nil {
		return err
	}
	if declaredTxID != "" && declaredTxID != txID {
		return &ProtocolError{TransactionID: txID, Reason: "settle/complete transaction_id does not match thid " + declaredTxID}
	}
	return m.transition(ctx, txID, func(current store.Transaction, _ []store.TransactionAgent) (store.TransitionResult, error) {
		if current.State != store.StateAuthorized {
			return store.TransitionResult{}, &ProtocolError{TransactionID: txID, Reason: "settle received outside authorized state"}
		}
		if settleAmount != "" && current.Amount != "" {
			ok, err := message.AmountLessOrEqual(settleAmount, current.Amount)
			if err != nil {
				return store.TransitionResult{}, err
			}
			if !ok {
				return store.TransitionResult{}, &message.ValidationError{Field: "amount", Reason: "settlement amount exceeds original transfer/payment amount"}
			}
		}
		return store.TransitionResult{NewState: store.StateSettled, Amount: settleAmount}, nil
	})
}

func (m *Machine) applyRevert(ctx context.Context, env message.Envelope) error {
	txID, err := transactionIDOf(env)
	if err != nil {
		return err
	}
	return m.transition(ctx, txID, func(current store.Transaction, _ []store.TransactionAgent) (store.TransitionResult, error) {
		if current.State != store.StateAuthorized {
			return store.TransitionResult{}, &ProtocolError{TransactionID: txID, Reason: "revert received outside authorized state"}
		}
		return store.TransitionResult{NewState: store.StateReverted}, nil
	})
}

func (m *Machine) applyAddAgents(ctx context.Context, env message.Envelope, newAgents []message.Agent) error {
	txID, err := transactionIDOf(env)
	if err != nil {
		return err
	}
	return m.transition(ctx, txID, func(current store.Transaction, agents []store.TransactionAgent) (store.TransitionResult, error) {
		if current.State != store.StateProposed {
			return store.TransitionResult{}, &ProtocolError{TransactionID: txID, Reason: "add_agents received outside pending state"}
		}
		for _, a := range newAgents {
			agents = append(agents, store.TransactionAgent{TransactionID: txID, AgentDID: a.ID, Role: a.Role, ForParty: a.For})
		}
		return store.TransitionResult{NewState: current.State, AgentUpserts: agents}, nil
	})
}

func (m *Machine) applyReplaceAgent(ctx context.Context, env message.Envelope, original string, replacement message.Agent) error {
	txID, err := transactionIDOf(env)
	if err != nil {
		return err
	}
	return m.transition(ctx, txID, func(current store.Transaction, _ []store.TransactionAgent) (store.TransitionResult, error) {
		if current.State != store.StateProposed {
			return store.TransitionResult{}, &ProtocolError{TransactionID: txID, Reason: "replace_agent received outside pending state"}
		}
		row := store.TransactionAgent{TransactionID: txID, AgentDID: replacement.ID, Role: replacement.Role, ForParty: replacement.For}
		return store.TransitionResult{
			NewState:     current.State,
			AgentUpserts: []store.TransactionAgent{row},
			AgentDeletes: []string{original},
		}, nil
	})
}

func (m *Machine) applyRemoveAgent(ctx context.Context, env message.Envelope, agentDID string) error {
	txID, err := transactionIDOf(env)
	if err != nil {
		return err
	}
	return m.transition(ctx, txID, func(current store.Transaction, _ []store.TransactionAgent) (store.TransitionResult, error) {
		if current.State != store.StateProposed {
			return store.TransitionResult{}, &ProtocolError{TransactionID: txID, Reason: "remove_agent received outside pending state"}
		}
		return store.TransitionResult{NewState: current.State, AgentDeletes: []string{agentDID}}, nil
	})
}

func (m *Machine) transition(ctx context.Context, txID string, fn store.Transition) error {
	before, err := m.Store.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	after, err := m.Store.ApplyTransition(ctx, txID, fn)
	if err != nil {
		return err
	}
	if before.State != after.State {
		m.publish(event.KindTransactionStateChanged, &event.TransactionStateChanged{
			TransactionID: txID,
			From:          string(before.State),
			To:            string(after.State),
		})
	}
	return nil
}

func (m *Machine) publish(kind event.Kind, payload any) {
	if m.Bus == nil {
		return
	}
	m.Bus.Publish(event.Event{Kind: kind, Payload: payload})
}

func isTerminal(s store.TransactionState) bool {
	switch s {
	case store.StateRejected, store.StateCancelled, store.StateReverted, store.StateFailed, store.StateSettled:
		return true
	default:
		return false
	}
}

func allAuthorizedNoneRejected(agents []store.TransactionAgent) bool {
	if len(agents) == 0 {
		return false
	}
	for _, a := range agents {
		if a.Rejected {
			return false
		}
		if !a.Authorized {
			return false
		}
	}
	return true
}
