// Package agent binds a single DID identity to the key material, DID
// resolver and packer it needs to create, send, receive and process
// TAP messages. It generalizes the teacher's per-connection identity
// concept (rpc_node.go assigns each inbound WebSocket connection a
// uuid.NewString() connection id and tracks it against an auth'd
// signer) into a longer-lived, addressable participant.
package agent

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/multiformats/go-multibase"

	"github.com/tap-rsvp/tap-go/pkg/did"
	"github.com/tap-rsvp/tap-go/pkg/event"
	"github.com/tap-rsvp/tap-go/pkg/keys"
	"github.com/tap-rsvp/tap-go/pkg/message"
	"github.com/tap-rsvp/tap-go/pkg/pack"
	"github.com/tap-rsvp/tap-go/pkg/store"
)

// Handler processes an inbound Envelope once it has been unpacked and
// authenticated. It returns an optional reply Envelope, sent back to
// the original sender, or nil if no reply is warranted.
type Handler func(ctx context.Context, env message.Envelope) (*message.Envelope, error)

// DeliveryResult reports the outcome of a SendMessage attempt.
type DeliveryResult struct {
	Delivered  bool
	StatusCode int
	Err        error
}

// Agent is a single TAP participant: a DID, its packer (bound to a DID
// resolver and secrets resolver), an event bus for observability, and
// an optional message Handler.
type Agent struct {
	DID             string
	SignKid         string
	KeyAgreementKid string

	Packer *pack.Packer
	Bus    *event.Bus

	// Store, when set, lets SendMessage check a Settle/Complete's amount
	// against the transaction it settles before the message is packed
	// and sent. Nil-safe: an agent with no Store skips the check.
	Store *store.Store

	client  Sender
	handler Handler
}

// Sender delivers a packed message to a recipient's service endpoint.
// Production code wires this to pkg/node's HTTP sender; tests can
// substitute an in-memory stub.
type Sender interface {
	Send(ctx context.Context, endpoint string, data []byte) (statusCode int, err error)
}

// New builds an Agent for an existing DID, bound to resolver/secrets
// infrastructure already wired elsewhere (e.g. a shared CompositeResolver
// and a persistent SecretsResolver backed by pkg/store).
func New(agentDID, signKid, keyAgreementKid string, resolver did.Resolver, secrets pack.SecretsResolver, sender Sender) *Agent {
	return &Agent{
		DID:             agentDID,
		SignKid:         signKid,
		KeyAgreementKid: keyAgreementKid,
		Packer:          pack.New(resolver, secrets),
		Bus:             event.NewBus(),
		client:          sender,
	}
}

// memorySecrets is the in-process SecretsResolver backing ephemeral
// agents, which hold their only copy of their private key material in
// memory for the lifetime of the process.
type memorySecrets struct {
	signer       keys.Signer
	keyAgreement keys.KeyAgreement
	signKid      string
	kaKid        string
}

func (m *memorySecrets) ResolveSigner(_ context.Context, kid string) (keys.Signer, error) {
	if kid != m.signKid {
		return nil, &did.NotFoundError{DID: kid}
	}
	return m.signer, nil
}

func (m *memorySecrets) ResolveKeyAgreement(_ context.Context, kid string) (keys.KeyAgreement, error) {
	if kid != m.kaKid {
		return nil, &did.NotFoundError{DID: kid}
	}
	return m.keyAgreement, nil
}

// NewEphemeral generates a fresh did:key identity (Ed25519 signing key
// plus its deterministic X25519 key-agreement derivation) entirely in
// memory, for short-lived agents such as test fixtures and
// command-line tools that do not need persisted identity.
func NewEphemeral(sender Sender) (*Agent, error) {
	signer, err := keys.NewEd25519Signer()
	if err != nil {
		return nil, fmt.Errorf("agent: generate signing key: %w", err)
	}
	return fromSigner(signer, sender)
}

// NewFromSeed rebuilds the same did:key identity NewEphemeral would have
// generated from a previously persisted 32-byte Ed25519 seed, the way
// the teacher's NewSigner(config.privateKeyHex) rehydrates a long-lived
// broker identity from a configured key instead of minting a new one
// every process start (signer.go).
func NewFromSeed(seed []byte, sender Sender) (*Agent, error) {
	signer, err := keys.NewEd25519SignerFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("agent: signer from seed: %w", err)
	}
	return fromSigner(signer, sender)
}

func fromSigner(signer *keys.Ed25519Signer, sender Sender) (*Agent, error) {
	ka, err := keys.KeyAgreementFromEd25519Seed(signer.Seed())
	if err != nil {
		return nil, fmt.Errorf("agent: derive key agreement key: %w", err)
	}

	signFragment, err := multicodecMultibase(0xed, signer.PublicKey().Bytes())
	if err != nil {
		return nil, err
	}
	kaFragment, err := multicodecMultibase(0xec, ka.PublicKey().Bytes())
	if err != nil {
		return nil, err
	}

	agentDID := "did:key:" + signFragment
	signKid := agentDID + "#" + signFragment
	kaKid := agentDID + "#" + kaFragment

	secrets := &memorySecrets{signer: signer, keyAgreement: ka, signKid: signKid, kaKid: kaKid}
	resolver := did.NewCompositeResolver(did.NewKeyResolver(), nil, nil)

	return New(agentDID, signKid, kaKid, resolver, secrets, sender), nil
}

func multicodecMultibase(code uint64, raw []byte) (string, error) {
	buf := make([]byte, binary.MaxVarintLen64+len(raw))
	n := binary.PutUvarint(buf, code)
	encoded, err := multibase.Encode(multibase.Base58BTC, append(buf[:n], raw...))
	if err != nil {
		return "", fmt.Errorf("agent: multibase encode: %w", err)
	}
	return encoded, nil
}

// SetHandler installs the callback invoked by ProcessMessage for each
// accepted inbound Envelope.
func (a *Agent) SetHandler(h Handler) { a.handler = h }

// SetStore attaches st, enabling SendMessage's create-time settlement
// amount check.
func (a *Agent) SetStore(st *store.Store) { a.Store = st }

// CreateMessage builds a fresh Envelope authored by this agent, with a
// freshly generated message id and the current time, ready for Pack.
func (a *Agent) CreateMessage(body message.Body, to []string, thid string) message.Envelope {
	return message.Envelope{
		ID:          uuid.NewString(),
		Type:        body.MessageType(),
		From:        a.DID,
		To:          to,
		Thid:        thid,
		CreatedTime: time.Now().Unix(),
		Body:        body,
	}
}

// SendMessage packs env under mode and delivers it to recipientDID's
// DIDCommMessaging service endpoint, resolved from its DID Document. It
// publishes a MessageSent event on success.
func (a *Agent) SendMessage(ctx context.Context, env message.Envelope, mode pack.Mode, recipientDID string) (DeliveryResult, error) {
	if a.client == nil {
		return DeliveryResult{}, fmt.Errorf("agent: no sender configured")
	}
	if err := a.checkSettlementAmount(ctx, env); err != nil {
		return DeliveryResult{}, err
	}

	recipientKid := ""
	if mode == pack.ModeAuthCrypt {
		doc, err := a.Packer.DIDs.Resolve(ctx, recipientDID)
		if err != nil {
			return DeliveryResult{}, fmt.Errorf("agent: resolve recipient %s: %w", recipientDID, err)
		}
		for _, id := range doc.KeyAgreement {
			recipientKid = id
			break
		}
		if recipientKid == "" {
			return DeliveryResult{}, fmt.Errorf("agent: recipient %s has no key agreement method", recipientDID)
		}
	}

	data, err := a.Packer.Pack(ctx, env, mode, a.SignKid, recipientKid)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("agent: pack message: %w", err)
	}

	doc, err := a.Packer.DIDs.Resolve(ctx, recipientDID)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("agent: resolve recipient %s: %w", recipientDID, err)
	}
	endpoint, ok := did.ResolveServiceEndpoint(doc)
	if !ok {
		return DeliveryResult{}, fmt.Errorf("agent: recipient %s has no DIDCommMessaging endpoint", recipientDID)
	}

	status, sendErr := a.client.Send(ctx, endpoint, data)
	result := DeliveryResult{Delivered: sendErr == nil && status >= 200 && status < 300, StatusCode: status, Err: sendErr}

	if a.Bus != nil {
		if result.Delivered {
			a.Bus.Publish(event.Event{Kind: event.KindMessageSent, Payload: &event.MessageSent{AgentDID: a.DID, ThreadID: env.Thid, To: recipientDID, Envelope: &env}})
		}
	}
	return result, sendErr
}

// checkSettlementAmount rejects a Settle/Complete env would exceed its
// transaction's stored amount (spec.md §8 scenario 3), before the
// message is ever packed and sent — txstate.applySettle repeats the
// same comparison on the receiving side, but that only runs once the
// message has already gone out over the wire.
func (a *Agent) checkSettlementAmount(ctx context.Context, env message.Envelope) error {
	var amount string
	switch b := env.Body.(type) {
	case message.Settle:
		amount = b.Amount
	case *message.Settle:
		amount = b.Amount
	case message.Complete:
		amount = b.Amount
	case *message.Complete:
		amount = b.Amount
	default:
		return nil
	}
	if amount == "" || a.Store == nil || env.Thid == "" {
		return nil
	}

	txn, err := a.Store.GetTransaction(ctx, env.Thid)
	if err != nil || txn.Amount == "" {
		// Unknown transaction or no recorded amount to compare against;
		// the receiving txstate machine still guards this case.
		return nil
	}

	ok, err := message.AmountLessOrEqual(amount, txn.Amount)
	if err != nil {
		return fmt.Errorf("agent: check settlement amount: %w", err)
	}
	if !ok {
		return &message.ValidationError{Field: "amount", Reason: "settlement amount exceeds original transfer/payment amount"}
	}
	return nil
}

// ReceiveMessage unpacks raw wire bytes addressed to this agent and
// publishes a MessageReceived event on success.
func (a *Agent) ReceiveMessage(ctx context.Context, data []byte) (message.Envelope, pack.Mode, error) {
	env, mode, err := a.Packer.Unpack(ctx, data)
	if err != nil {
		return message.Envelope{}, mode, err
	}
	if a.Bus != nil {
		a.Bus.Publish(event.Event{Kind: event.KindMessageReceived, Payload: &event.MessageReceived{AgentDID: a.DID, ThreadID: env.Thid, From: env.From, Envelope: &env}})
	}
	return env, mode, nil
}

// ProcessMessage validates env and, if a Handler is installed, invokes
// it. It publishes MessageAccepted or MessageRejected depending on the
// outcome.
func (a *Agent) ProcessMessage(ctx context.Context, env message.Envelope) (*message.Envelope, error) {
	if err := env.Body.Validate(); err != nil {
		if a.Bus != nil {
			a.Bus.Publish(event.Event{Kind: event.KindMessageRejected, Payload: &event.MessageRejected{AgentDID: a.DID, ThreadID: env.Thid, Reason: err.Error()}})
		}
		return nil, fmt.Errorf("agent: reject %s: %w", env.ID, err)
	}

	var reply *message.Envelope
	var err error
	if a.handler != nil {
		reply, err = a.handler(ctx, env)
	}

	if a.Bus != nil {
		if err != nil {
			a.Bus.Publish(event.Event{Kind: event.KindMessageRejected, Payload: &event.MessageRejected{AgentDID: a.DID, ThreadID: env.Thid, Reason: err.Error()}})
		} else {
			a.Bus.Publish(event.Event{Kind: event.KindMessageAccepted, Payload: &event.MessageAccepted{AgentDID: a.DID, ThreadID: env.Thid}})
			if env.Thid != "" {
				a.Bus.Publish(event.Event{Kind: event.KindReplyReceived, Payload: &event.ReplyReceived{AgentDID: a.DID, ThreadID: env.Thid}})
			}
		}
	}
	return reply, err
}

// Dispatch invokes the installed Handler directly, without re-running
// Validate or publishing accept/reject events. It is used by pkg/node,
// whose own Validation processor stage already covers that ground
// before a message reaches any agent's Handler.
func (a *Agent) Dispatch(ctx context.Context, env message.Envelope) (*message.Envelope, error) {
	if a.handler == nil {
		return nil, nil
	}
	return a.handler(ctx, env)
}
