package txstate

import (
	"context"
	"errors"
	"testing"

	"github.com/tap-rsvp/tap-go/pkg/config"
	"github.com/tap-rsvp/tap-go/pkg/event"
	"github.com/tap-rsvp/tap-go/pkg/message"
	"github.com/tap-rsvp/tap-go/pkg/store"
)

func newTestMachine(t *testing.T) (*Machine, *event.Bus) {
	t.Helper()
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite"}, t.TempDir(), "did:key:zTxState")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	bus := event.NewBus()
	return New(st, bus), bus
}

func transferEnvelope(id string) message.Envelope {
	return message.Envelope{
		ID:   id,
		Type: message.TypeTransfer,
		From: "did:a1",
		To:   []string{"did:a2"},
		Body: message.Transfer{
			Asset:      "eip155:1/erc20:0x6b175474e89094c44da98b954eedeac495271d0f",
			Amount:     "100.0",
			Originator: message.Party{ID: "did:originator"},
			Agents: []message.Agent{
				{ID: "did:a1", Role: "originator-agent", For: "did:originator"},
				{ID: "did:a2", Role: "beneficiary-agent", For: "did:originator"},
			},
		},
	}
}

func TestTransferCreatesPendingTransaction(t *testing.T) {
	m, bus := newTestMachine(t)
	ctx := context.Background()

	var events []event.Event
	bus.Subscribe(func(e event.Event) { events = append(events, e) })

	env := transferEnvelope("tx-1")
	if err := m.Apply(ctx, env); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}

	got, err := m.Store.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.State != store.StateProposed {
		t.Errorf("state = %v, want pending", got.State)
	}
	if len(events) != 1 || events[0].Kind != event.KindTransactionCreated {
		t.Errorf("events = %+v, want one TransactionCreated", events)
	}
}

func TestAuthorizeFromAllAgentsSettlesPending(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	if err := m.Apply(ctx, transferEnvelope("tx-2")); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}

	auth1 := message.Envelope{ID: "m2", Thid: "tx-2", From: "did:a1", Body: message.Authorize{}}
	if err := m.Apply(ctx, auth1); err != nil {
		t.Fatalf("apply authorize a1: %v", err)
	}
	got, _ := m.Store.GetTransaction(ctx, "tx-2")
	if got.State != store.StateProposed {
		t.Errorf("state after one authorize = %v, want still pending", got.State)
	}

	auth2 := message.Envelope{ID: "m3", Thid: "tx-2", From: "did:a2", Body: message.Authorize{}}
	if err := m.Apply(ctx, auth2); err != nil {
		t.Fatalf("apply authorize a2: %v", err)
	}
	got, _ = m.Store.GetTransaction(ctx, "tx-2")
	if got.State != store.StateAuthorized {
		t.Errorf("state after both authorize = %v, want authorized", got.State)
	}

	settle := message.Envelope{ID: "m4", Thid: "tx-2", From: "did:a1", Body: message.Settle{TransactionID: "tx-2", SettlementID: "eip155:1/tx/0xdead"}}
	if err := m.Apply(ctx, settle); err != nil {
		t.Fatalf("apply settle: %v", err)
	}
	got, _ = m.Store.GetTransaction(ctx, "tx-2")
	if got.State != store.StateSettled {
		t.Errorf("state after settle = %v, want settled", got.State)
	}
}

func TestRejectWinsOverConcurrentAuthorize(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	if err := m.Apply(ctx, transferEnvelope("tx-3")); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}

	auth := message.Envelope{ID: "m2", Thid: "tx-3", From: "did:a1", Body: message.Authorize{}}
	reject := message.Envelope{ID: "m3", Thid: "tx-3", From: "did:a2", Body: message.Reject{Code: "policy"}}

	if err := m.Apply(ctx, auth); err != nil {
		t.Fatalf("apply authorize: %v", err)
	}
	if err := m.Apply(ctx, reject); err != nil {
		t.Fatalf("apply reject: %v", err)
	}

	got, err := m.Store.GetTransaction(ctx, "tx-3")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.State != store.StateRejected {
		t.Errorf("state = %v, want rejected", got.State)
	}

	agents, err := m.Store.ListTransactionAgents(ctx, "tx-3")
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	for _, a := range agents {
		switch a.AgentDID {
		case "did:a1":
			if !a.Authorized {
				t.Errorf("a1 expected authorized=true")
			}
		case "did:a2":
			if !a.Rejected {
				t.Errorf("a2 expected rejected=true")
			}
		}
	}
}

func TestLateAuthorizeAfterRejectStillRecordsAgentFlag(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	if err := m.Apply(ctx, transferEnvelope("tx-3b")); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}

	reject := message.Envelope{ID: "m2", Thid: "tx-3b", From: "did:a2", Body: message.Reject{Code: "policy"}}
	auth := message.Envelope{ID: "m3", Thid: "tx-3b", From: "did:a1", Body: message.Authorize{}}

	if err := m.Apply(ctx, reject); err != nil {
		t.Fatalf("apply reject: %v", err)
	}
	if err := m.Apply(ctx, auth); err != nil {
		t.Fatalf("apply late authorize: %v", err)
	}

	got, err := m.Store.GetTransaction(ctx, "tx-3b")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.State != store.StateRejected {
		t.Errorf("state = %v, want rejected", got.State)
	}

	agents, err := m.Store.ListTransactionAgents(ctx, "tx-3b")
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	for _, a := range agents {
		switch a.AgentDID {
		case "did:a1":
			if !a.Authorized {
				t.Errorf("a1 expected authorized=true even though it arrived after reject")
			}
		case "did:a2":
			if !a.Rejected {
				t.Errorf("a2 expected rejected=true")
			}
		}
	}
}

func TestSettleAboveOriginalAmountIsValidationError(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	if err := m.Apply(ctx, transferEnvelope("tx-4")); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}
	for _, did := range []string{"did:a1", "did:a2"} {
		if err := m.Apply(ctx, message.Envelope{ID: did, Thid: "tx-4", From: did, Body: message.Authorize{}}); err != nil {
			t.Fatalf("authorize %s: %v", did, err)
		}
	}

	settle := message.Envelope{ID: "m-settle", Thid: "tx-4", From: "did:a1", Body: message.Settle{TransactionID: "tx-4", Amount: "150.0"}}
	err := m.Apply(ctx, settle)
	if err == nil {
		t.Fatal("expected validation error for over-amount settle")
	}
	var verr *message.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want *message.ValidationError", err)
	}

	got, _ := m.Store.GetTransaction(ctx, "tx-4")
	if got.State != store.StateAuthorized {
		t.Errorf("state after failed settle = %v, want still authorized", got.State)
	}
}

func TestSettleWithoutAuthorizeIsProtocolError(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	if err := m.Apply(ctx, transferEnvelope("tx-5")); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}
	settle := message.Envelope{ID: "m-settle", Thid: "tx-5", From: "did:a1", Body: message.Settle{TransactionID: "tx-5"}}
	err := m.Apply(ctx, settle)
	if err == nil {
		t.Fatal("expected protocol error")
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Errorf("err = %v (%T), want *ProtocolError", err, err)
	}
}
