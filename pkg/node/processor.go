// Processor implements the node's middleware chain (spec.md §4.6),
// modeled on the teacher's RPCHandler/RPCContext.Next() chain
// (rpc_node.go): each stage is given a chance to inspect, transform or
// drop the envelope before the next stage runs. Where the teacher threads
// a single mutable *RPCContext through a handler slice, tap-go's stages
// are pure functions over an immutable Envelope value, chained by
// Composite instead of a context method, since no stage here needs to
// reach back into connection-level state the way auth/reauth does.
package node

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tap-rsvp/tap-go/pkg/event"
	"github.com/tap-rsvp/tap-go/pkg/message"
	"github.com/tap-rsvp/tap-go/pkg/tlog"
)

// pingTypeURI and pingResponseTypeURI are the DIDComm Trust Ping v2 type
// URIs. They live outside TAP's own schema (schemaBase in pkg/message),
// so a ping arrives as a message.UnknownBody whose Type field carries
// this URI; TrustPing recognizes it by that value alone.
const (
	pingTypeURI         message.TypeURI = "https://didcomm.org/trust-ping/2.0/ping"
	pingResponseTypeURI message.TypeURI = "https://didcomm.org/trust-ping/2.0/ping-response"
)

// Processor is one stage of the node's inbound/outbound middleware
// chain. Returning a nil envelope with a nil error drops the message
// without error (e.g. a ping intercepted and answered in place);
// returning an error rejects it.
type Processor interface {
	ProcessIncoming(ctx context.Context, env message.Envelope) (*message.Envelope, error)
	ProcessOutgoing(ctx context.Context, env message.Envelope) (*message.Envelope, error)
}

// Composite runs an ordered list of Processors, feeding each stage's
// output envelope into the next. The first stage to return a nil
// envelope or an error short-circuits the rest of the chain.
type Composite struct {
	Stages []Processor
}

func (c *Composite) ProcessIncoming(ctx context.Context, env message.Envelope) (*message.Envelope, error) {
	cur := &env
	for _, stage := range c.Stages {
		if cur == nil {
			return nil, nil
		}
		var err error
		cur, err = stage.ProcessIncoming(ctx, *cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (c *Composite) ProcessOutgoing(ctx context.Context, env message.Envelope) (*message.Envelope, error) {
	cur := &env
	for _, stage := range c.Stages {
		if cur == nil {
			return nil, nil
		}
		var err error
		cur, err = stage.ProcessOutgoing(ctx, *cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Logging is a side-effect-only stage: it emits a structured record for
// every envelope that passes through and never drops or mutates one.
type Logging struct {
	Log tlog.Logger
}

func (p *Logging) ProcessIncoming(_ context.Context, env message.Envelope) (*message.Envelope, error) {
	p.Log.Debug("processing incoming message", "id", env.ID, "type", env.Type, "from", env.From, "thid", env.Thid)
	return &env, nil
}

func (p *Logging) ProcessOutgoing(_ context.Context, env message.Envelope) (*message.Envelope, error) {
	p.Log.Debug("processing outgoing message", "id", env.ID, "type", env.Type, "to", env.To, "thid", env.Thid)
	return &env, nil
}

// Validation runs env.Body's structural validator and publishes
// MessageAccepted/MessageRejected, mirroring Agent.ProcessMessage's own
// validation step so a Node wired with this stage rejects malformed
// bodies before they ever reach an agent's Handler.
type Validation struct {
	Bus      *event.Bus
	AgentDID string
}

func (p *Validation) ProcessIncoming(_ context.Context, env message.Envelope) (*message.Envelope, error) {
	if err := env.Body.Validate(); err != nil {
		if p.Bus != nil {
			p.Bus.Publish(event.Event{Kind: event.KindMessageRejected, Payload: &event.MessageRejected{AgentDID: p.AgentDID, ThreadID: env.Thid, Reason: err.Error()}})
		}
		return nil, fmt.Errorf("node: validate %s: %w", env.ID, err)
	}
	if p.Bus != nil {
		p.Bus.Publish(event.Event{Kind: event.KindMessageAccepted, Payload: &event.MessageAccepted{AgentDID: p.AgentDID, ThreadID: env.Thid}})
	}
	return &env, nil
}

func (p *Validation) ProcessOutgoing(_ context.Context, env message.Envelope) (*message.Envelope, error) {
	if err := env.Body.Validate(); err != nil {
		return nil, fmt.Errorf("node: validate outgoing %s: %w", env.ID, err)
	}
	return &env, nil
}

// pingReplyKey is the context key Node.Receive uses to recover a
// ping-response synthesized mid-chain by TrustPing. A context value,
// not a struct field, carries it so one TrustPing instance can be
// shared safely across concurrently-processed envelopes.
type pingReplyKey struct{}

// withPingReply returns a context a TrustPing stage can stash a reply
// into, and a function the caller uses afterward to retrieve it.
func withPingReply(ctx context.Context) (context.Context, func() *message.Envelope) {
	var reply *message.Envelope
	return context.WithValue(ctx, pingReplyKey{}, &reply), func() *message.Envelope { return reply }
}

// TrustPing intercepts Trust Ping v2 requests and synthesizes a
// ping-response in place, so a ping never reaches an agent's Handler or
// the router: the reply is stashed on ctx (see withPingReply), and
// ProcessIncoming returns a nil envelope to drop the original from the
// rest of the chain.
type TrustPing struct {
	AgentDID string
}

func (p *TrustPing) ProcessIncoming(ctx context.Context, env message.Envelope) (*message.Envelope, error) {
	if env.Type != pingTypeURI {
		return &env, nil
	}
	if slot, ok := ctx.Value(pingReplyKey{}).(**message.Envelope); ok {
		reply := message.CreateReply(env, message.UnknownBody{Type: pingResponseTypeURI}, p.AgentDID, uuid.NewString(), env.CreatedTime)
		*slot = &reply
	}
	return nil, nil
}

func (p *TrustPing) ProcessOutgoing(_ context.Context, env message.Envelope) (*message.Envelope, error) {
	return &env, nil
}
