package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/tap-rsvp/tap-go/pkg/config"
	"github.com/tap-rsvp/tap-go/pkg/event"
	"github.com/tap-rsvp/tap-go/pkg/message"
	"github.com/tap-rsvp/tap-go/pkg/pack"
	"github.com/tap-rsvp/tap-go/pkg/store"
)

type stubSender struct {
	statusCode int
	err        error
	lastData   []byte
	lastURL    string
}

func (s *stubSender) Send(_ context.Context, endpoint string, data []byte) (int, error) {
	s.lastURL = endpoint
	s.lastData = data
	return s.statusCode, s.err
}

func TestNewEphemeralProducesDidKeyIdentity(t *testing.T) {
	a, err := NewEphemeral(&stubSender{statusCode: 200})
	if err != nil {
		t.Fatalf("new ephemeral agent: %v", err)
	}
	if !strings.HasPrefix(a.DID, "did:key:") {
		t.Errorf("DID = %q, want did:key: prefix", a.DID)
	}
	if !strings.HasPrefix(a.SignKid, a.DID+"#") {
		t.Errorf("SignKid = %q, want prefix %s#", a.SignKid, a.DID)
	}
	if !strings.HasPrefix(a.KeyAgreementKid, a.DID+"#") {
		t.Errorf("KeyAgreementKid = %q, want prefix %s#", a.KeyAgreementKid, a.DID)
	}
}

func TestCreateMessageStampsIdentityAndThread(t *testing.T) {
	a, err := NewEphemeral(nil)
	if err != nil {
		t.Fatalf("new ephemeral agent: %v", err)
	}

	env := a.CreateMessage(message.Authorize{Reason: "ok"}, []string{"did:example:bob"}, "thread-1")
	if env.From != a.DID {
		t.Errorf("From = %q, want %q", env.From, a.DID)
	}
	if env.Thid != "thread-1" {
		t.Errorf("Thid = %q, want thread-1", env.Thid)
	}
	if env.ID == "" {
		t.Error("expected a generated message id")
	}
	if env.Type != message.TypeAuthorize {
		t.Errorf("Type = %q, want %q", env.Type, message.TypeAuthorize)
	}
}

func TestProcessMessagePublishesAcceptedEvent(t *testing.T) {
	a, err := NewEphemeral(nil)
	if err != nil {
		t.Fatalf("new ephemeral agent: %v", err)
	}

	var invoked bool
	a.SetHandler(func(_ context.Context, env message.Envelope) (*message.Envelope, error) {
		invoked = true
		return nil, nil
	})

	var got []event.Event
	unsubscribe := a.Bus.Subscribe(func(evt event.Event) { got = append(got, evt) })
	defer unsubscribe()

	env := a.CreateMessage(message.Authorize{Reason: "ok"}, nil, "")
	if _, err := a.ProcessMessage(context.Background(), env); err != nil {
		t.Fatalf("process message: %v", err)
	}
	if !invoked {
		t.Error("handler was not invoked")
	}
	if len(got) != 1 || got[0].Kind != event.KindMessageAccepted {
		t.Fatalf("events = %+v, want a single MessageAccepted", got)
	}
}

func TestProcessMessageRejectsInvalidBody(t *testing.T) {
	a, err := NewEphemeral(nil)
	if err != nil {
		t.Fatalf("new ephemeral agent: %v", err)
	}

	env := a.CreateMessage(message.Transfer{}, nil, "")
	if _, err := a.ProcessMessage(context.Background(), env); err == nil {
		t.Error("expected validation error for an empty Transfer body")
	}
}

func TestSendMessageRejectsSettleAboveOriginalAmount(t *testing.T) {
	a, err := NewEphemeral(&stubSender{statusCode: 200})
	if err != nil {
		t.Fatalf("new ephemeral agent: %v", err)
	}

	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite"}, t.TempDir(), a.DID)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	a.SetStore(st)

	if err := st.UpsertTransaction(context.Background(), store.Transaction{
		TransactionID: "tx-1",
		Kind:          store.KindTransfer,
		State:         store.StateAuthorized,
		Amount:        "100.0",
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	// SendMessage checks the settlement amount before it ever attempts to
	// resolve or pack for a recipient, so an unresolvable placeholder
	// recipient DID doesn't interfere with isolating that check.
	over := a.CreateMessage(message.Settle{TransactionID: "tx-1", Amount: "150.0"}, nil, "tx-1")
	if _, err := a.SendMessage(context.Background(), over, pack.ModePlain, "did:example:bob"); err == nil {
		t.Error("expected error sending a Settle whose amount exceeds the transaction's")
	}

	inRange := a.CreateMessage(message.Settle{TransactionID: "tx-1", Amount: "50.0"}, nil, "tx-1")
	if err := a.checkSettlementAmount(context.Background(), inRange); err != nil {
		t.Errorf("unexpected error checking an in-range settle amount: %v", err)
	}
}

func TestSendMessageRequiresSender(t *testing.T) {
	a, err := NewEphemeral(nil)
	if err != nil {
		t.Fatalf("new ephemeral agent: %v", err)
	}
	env := a.CreateMessage(message.Authorize{Reason: "ok"}, nil, "")
	if _, err := a.SendMessage(context.Background(), env, pack.ModePlain, "did:example:bob"); err == nil {
		t.Error("expected error sending with no configured Sender")
	}
}
