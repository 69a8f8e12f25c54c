// Package node implements the Node pipeline (spec.md §4.6): the agent
// registry, processor/router middleware chains, HTTP sender and ingress
// surface that turn raw wire bytes into a dispatched, persisted,
// possibly-replied-to message. Its shape follows the teacher's RPCNode
// (rpc_node.go): a long-lived server value wired to a signer, a
// connection hub and a logger at construction time, whose
// HandleConnection method is the single inbound entry point for the
// whole stack. tap-go's Node plays the same role over DIDComm envelopes
// instead of signed RPC frames, and over a registry of Agents instead of
// a hub of live connections.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tap-rsvp/tap-go/pkg/agent"
	"github.com/tap-rsvp/tap-go/pkg/customer"
	"github.com/tap-rsvp/tap-go/pkg/event"
	"github.com/tap-rsvp/tap-go/pkg/message"
	"github.com/tap-rsvp/tap-go/pkg/pack"
	"github.com/tap-rsvp/tap-go/pkg/store"
	"github.com/tap-rsvp/tap-go/pkg/tlog"
	"github.com/tap-rsvp/tap-go/pkg/txstate"
)

// tracer emits one span per Receive call, annotated onto the structured
// log the same way _teacher_copy/pkg/log's SpanLogger/
// OtelSpanEventRecorder double every log line as a span event.
var tracer = otel.Tracer("github.com/tap-rsvp/tap-go/pkg/node")

// Node owns the shared pipeline infrastructure for every agent it hosts:
// the registry they are resolved through, the processor and router
// chains every inbound/outbound envelope runs, the sender used for
// Remote delivery, the per-agent store, the shared event bus, and the
// transaction state machine envelopes are applied to as they pass
// through.
type Node struct {
	Registry *AgentRegistry
	Incoming Processor
	Outgoing Processor
	Router   Router
	Sender   Sender
	Store    *store.Store
	Bus      *event.Bus
	TxState  *txstate.Machine
	Metrics  *Metrics
	Log      tlog.Logger

	extractors map[string]*customer.Extractor
}

// New builds a Node. Any of Store, TxState, Metrics, Bus may be nil; a
// nil Bus is replaced with a fresh one so Incoming/Outgoing stages that
// expect a non-nil Bus never have to guard against it.
func New(registry *AgentRegistry, incoming, outgoing Processor, router Router, sender Sender, st *store.Store, bus *event.Bus, log tlog.Logger) *Node {
	if bus == nil {
		bus = event.NewBus()
	}
	if log == nil {
		log = tlog.New()
	}
	n := &Node{
		Registry:   registry,
		Incoming:   incoming,
		Outgoing:   outgoing,
		Router:     router,
		Sender:     sender,
		Store:      st,
		Bus:        bus,
		Log:        log.NewSystem("node"),
		extractors: make(map[string]*customer.Extractor),
	}
	if st != nil {
		n.TxState = txstate.New(st, bus)
	}
	return n
}

// RegisterAgent adds a to the node's registry, wires a customer
// Extractor for it against the shared bus and store (spec.md §4.10's
// "automatically subscribed per-agent on registration"), and publishes
// AgentRegistered.
func (n *Node) RegisterAgent(a *agent.Agent) error {
	if err := n.Registry.Register(a); err != nil {
		return err
	}
	if n.Store != nil {
		n.extractors[a.DID] = customer.NewExtractor(n.Store, n.Bus, a.DID)
		a.SetStore(n.Store)
	}
	if n.Metrics != nil {
		n.Metrics.ConnectedAgents.Set(float64(n.Registry.Len()))
	}
	n.Bus.Publish(event.Event{Kind: event.KindAgentRegistered, Payload: &event.AgentRegistered{AgentDID: a.DID}})
	return nil
}

// UnregisterAgent removes an agent and closes its customer Extractor.
func (n *Node) UnregisterAgent(did string) {
	if ex, ok := n.extractors[did]; ok {
		ex.Close()
		delete(n.extractors, did)
	}
	n.Registry.Unregister(did)
	if n.Metrics != nil {
		n.Metrics.ConnectedAgents.Set(float64(n.Registry.Len()))
	}
	n.Bus.Publish(event.Event{Kind: event.KindAgentUnregistered, Payload: &event.AgentUnregistered{AgentDID: did}})
}

// Receive implements spec.md §4.6's ingress algorithm: persist raw bytes
// to the audit trail, find a local agent able to unpack them, run the
// incoming processor chain, apply the transaction state machine, route
// the result, and deliver to every resolved target.
func (n *Node) Receive(ctx context.Context, raw []byte, source string) error {
	ctx, span := tracer.Start(ctx, "node.Receive", trace.WithAttributes(
		attribute.String("source", source),
		attribute.Int("bytes", len(raw)),
	))
	defer span.End()
	log := tlog.WithSpan(ctx, n.Log)

	if n.Metrics != nil {
		n.Metrics.MessagesReceived.Inc()
	}
	if n.Store != nil {
		if err := n.Store.InsertReceived(ctx, raw, source); err != nil {
			log.Warn("failed to record received bytes", "error", err)
		}
	}

	matched, env, mode, err := n.unpackWithAnyAgent(ctx, raw)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("message.id", env.ID), attribute.String("message.type", string(env.Type)))

	if n.Store != nil {
		_ = n.Store.InsertMessage(ctx, store.Message{
			MessageID: env.ID,
			Type:      string(env.Type),
			FromDID:   env.From,
			ToDID:     firstOf(env.To),
			Direction: store.DirectionIn,
			ThreadID:  env.Thid,
			RawJSON:   bodyJSON(env),
			Status:    store.MessageStatusPending,
		})
	}

	pingCtx, getPingReply := withPingReply(ctx)
	result, err := n.incoming().ProcessIncoming(pingCtx, env)
	if err != nil {
		if n.Metrics != nil {
			n.Metrics.MessagesRejected.Inc()
		}
		if n.Store != nil {
			_ = n.Store.UpdateMessageStatus(ctx, env.ID, store.MessageStatusRejected)
		}
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if n.Store != nil {
		_ = n.Store.UpdateMessageStatus(ctx, env.ID, store.MessageStatusAccepted)
	}
	if n.Metrics != nil {
		n.Metrics.MessagesAccepted.Inc()
	}

	if reply := getPingReply(); reply != nil {
		return n.egress(ctx, *reply, matched, mode)
	}
	if result == nil {
		return nil
	}

	if n.TxState != nil {
		if txErr := n.TxState.Apply(ctx, *result); txErr != nil {
			log.Warn("transaction state transition failed", "id", result.ID, "error", txErr)
			var perr *txstate.ProtocolError
			if errors.As(txErr, &perr) {
				// A state-machine violation drops the message: it is marked
				// rejected, announced on the bus, and not routed further.
				_ = n.Store.UpdateMessageStatus(ctx, result.ID, store.MessageStatusRejected)
				n.Bus.Publish(event.Event{Kind: event.KindMessageRejected, Payload: &event.MessageRejected{AgentDID: matched.DID, ThreadID: result.Thid, Reason: perr.Error()}})
				return nil
			}
		}
	}

	targets, err := n.Router.Route(ctx, *result)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("node: route %s: %w", result.ID, err)
	}

	var errs []error
	for _, target := range targets {
		switch target.Kind {
		case Local:
			if err := n.deliverLocal(ctx, *result, target.DID, mode); err != nil {
				errs = append(errs, err)
			}
		case Remote:
			if err := n.deliverRemote(ctx, *result, target.Endpoint, matched, mode); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("node: delivery failed for %d of %d targets: %w", len(errs), len(targets), errs[0])
	}
	return nil
}

func (n *Node) incoming() Processor {
	if n.Incoming != nil {
		return n.Incoming
	}
	return &Composite{}
}

func (n *Node) outgoing() Processor {
	if n.Outgoing != nil {
		return n.Outgoing
	}
	return &Composite{}
}

// unpackWithAnyAgent tries every registered agent's Packer until one
// successfully unpacks data, matching spec.md §4.6's "try each
// registered agent's secrets until one succeeds". Plain and Signed
// envelopes unpack under any agent equally; only AuthCrypt is actually
// bound to a specific recipient's key-agreement key.
func (n *Node) unpackWithAnyAgent(ctx context.Context, raw []byte) (*agent.Agent, message.Envelope, pack.Mode, error) {
	var lastErr error
	var found *agent.Agent
	var result message.Envelope
	var mode pack.Mode

	n.Registry.Each(func(a *agent.Agent) {
		if found != nil {
			return
		}
		env, m, err := a.ReceiveMessage(ctx, raw)
		if err != nil {
			lastErr = err
			return
		}
		found, result, mode = a, env, m
	})

	if found == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("node: no registered agent could unpack message")
		}
		return nil, message.Envelope{}, pack.ModePlain, fmt.Errorf("node: unpack: %w", lastErr)
	}
	return found, result, mode, nil
}

// deliverLocal hands env to a local recipient's Handler via Dispatch,
// and re-enters the egress path for any reply it produces.
func (n *Node) deliverLocal(ctx context.Context, env message.Envelope, recipientDID string, mode pack.Mode) error {
	recipient, ok := n.Registry.Get(recipientDID)
	if !ok {
		return fmt.Errorf("node: local target %s no longer registered", recipientDID)
	}
	reply, err := recipient.Dispatch(ctx, env)
	if err != nil {
		return fmt.Errorf("node: dispatch to %s: %w", recipientDID, err)
	}
	if reply == nil {
		return nil
	}
	return n.egress(ctx, *reply, recipient, mode)
}

// deliverRemote packs env (as from) and hands it to Sender for
// HTTP(S) delivery, recording the attempt in the Delivery table.
func (n *Node) deliverRemote(ctx context.Context, env message.Envelope, endpoint string, from *agent.Agent, mode pack.Mode) error {
	senderKid := ""
	if mode != pack.ModePlain {
		senderKid = from.SignKid
	}
	data, err := from.Packer.Pack(ctx, env, mode, senderKid, "")
	if err != nil {
		return fmt.Errorf("node: pack for delivery: %w", err)
	}

	var deliveryID uint
	if n.Store != nil {
		deliveryID, _ = n.Store.InsertDelivery(ctx, store.Delivery{MessageID: env.ID, RecipientDID: firstOf(env.To), Endpoint: endpoint})
	}

	start := time.Now()
	status, _, sendErr := n.Sender.Send(ctx, endpoint, mode.ContentType(), data)

	if n.Metrics != nil {
		n.Metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if sendErr != nil {
			outcome = "error"
		}
		n.Metrics.DeliveryAttempts.WithLabelValues(outcome).Inc()
	}
	if n.Store != nil && deliveryID != 0 {
		errText := ""
		if sendErr != nil {
			errText = sendErr.Error()
		}
		_ = n.Store.UpdateDelivery(ctx, deliveryID, status, errText)
	}
	return sendErr
}

// egress runs the outgoing processor chain over env and routes/delivers
// it the same way Receive handles a freshly-unpacked inbound envelope,
// so a Handler- or TrustPing-synthesized reply re-enters the same
// pipeline spec.md §4.6 describes ("possibly producing a reply which
// re-enters egress").
func (n *Node) egress(ctx context.Context, env message.Envelope, from *agent.Agent, mode pack.Mode) error {
	result, err := n.outgoing().ProcessOutgoing(ctx, env)
	if err != nil {
		return fmt.Errorf("node: outgoing processing: %w", err)
	}
	if result == nil {
		return nil
	}

	if n.Store != nil {
		_ = n.Store.InsertMessage(ctx, store.Message{
			MessageID: result.ID,
			Type:      string(result.Type),
			FromDID:   result.From,
			ToDID:     firstOf(result.To),
			Direction: store.DirectionOut,
			ThreadID:  result.Thid,
			RawJSON:   bodyJSON(*result),
			Status:    store.MessageStatusAccepted,
		})
	}
	if n.Bus != nil {
		n.Bus.Publish(event.Event{Kind: event.KindMessageSent, Payload: &event.MessageSent{AgentDID: from.DID, ThreadID: result.Thid, To: firstOf(result.To), Envelope: result}})
	}

	targets, err := n.Router.Route(ctx, *result)
	if err != nil {
		return fmt.Errorf("node: route egress %s: %w", result.ID, err)
	}
	var errs []error
	for _, target := range targets {
		switch target.Kind {
		case Local:
			if err := n.deliverLocal(ctx, *result, target.DID, mode); err != nil {
				errs = append(errs, err)
			}
		case Remote:
			if err := n.deliverRemote(ctx, *result, target.Endpoint, from, mode); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func firstOf(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func bodyJSON(env message.Envelope) string {
	data, err := env.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}
