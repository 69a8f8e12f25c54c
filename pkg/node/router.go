package node

import (
	"context"
	"fmt"

	"github.com/tap-rsvp/tap-go/pkg/did"
	"github.com/tap-rsvp/tap-go/pkg/message"
	"github.com/tap-rsvp/tap-go/pkg/tlog"
)

// TargetKind distinguishes a delivery destination already hosted by this
// Node from one that must go out over the network.
type TargetKind int

const (
	// Local names a DID registered on this Node; delivery is an
	// in-process call to that agent's Handler.
	Local TargetKind = iota
	// Remote names an HTTP(S) service endpoint resolved from the
	// recipient's DID Document; delivery goes through Sender.
	Remote
)

// Target is one resolved delivery destination for an envelope's `to`
// list.
type Target struct {
	Kind     TargetKind
	DID      string // set for Local
	Endpoint string // set for Remote
}

// Router resolves an outbound-bound (or re-routed inbound) envelope's
// `to` list into concrete delivery Targets.
type Router interface {
	Route(ctx context.Context, env message.Envelope) ([]Target, error)
}

// Default resolves every recipient already present in the local
// registry as Local and drops the rest, used when a Node has no DID
// resolver wired (e.g. tests, or a single-process multi-agent harness).
type Default struct {
	Registry *AgentRegistry
}

func (r *Default) Route(_ context.Context, env message.Envelope) ([]Target, error) {
	var targets []Target
	for _, to := range env.To {
		if _, ok := r.Registry.Get(to); ok {
			targets = append(targets, Target{Kind: Local, DID: to})
		}
	}
	return targets, nil
}

// Http resolves every recipient not already local by looking up its DID
// Document's DIDCommMessaging service endpoint (C3), producing a Remote
// target for the Sender to deliver to.
type Http struct {
	Registry *AgentRegistry
	DIDs     did.Resolver
}

func (r *Http) Route(ctx context.Context, env message.Envelope) ([]Target, error) {
	var targets []Target
	for _, to := range env.To {
		if _, ok := r.Registry.Get(to); ok {
			targets = append(targets, Target{Kind: Local, DID: to})
			continue
		}
		doc, err := r.DIDs.Resolve(ctx, to)
		if err != nil {
			return targets, fmt.Errorf("node: resolve recipient %s: %w", to, err)
		}
		endpoint, ok := did.ResolveServiceEndpoint(doc)
		if !ok {
			return targets, fmt.Errorf("node: recipient %s has no DIDCommMessaging endpoint", to)
		}
		targets = append(targets, Target{Kind: Remote, Endpoint: endpoint})
	}
	return targets, nil
}

// RoutingLogger wraps another Router and emits a structured record of
// every resolved target set, the routing equivalent of the Logging
// Processor.
type RoutingLogger struct {
	Next Router
	Log  tlog.Logger
}

func (r *RoutingLogger) Route(ctx context.Context, env message.Envelope) ([]Target, error) {
	targets, err := r.Next.Route(ctx, env)
	r.Log.Debug("routed message", "id", env.ID, "targets", len(targets), "error", err)
	return targets, err
}

// CompositeRouter tries each Router in order and concatenates every
// target they resolve, deduplicating by (Kind, DID/Endpoint) so chaining
// a Default in front of an Http router never double-delivers a target
// both would otherwise resolve.
type CompositeRouter struct {
	Routers []Router
}

func (r *CompositeRouter) Route(ctx context.Context, env message.Envelope) ([]Target, error) {
	seen := make(map[Target]bool)
	var out []Target
	for _, router := range r.Routers {
		targets, err := router.Route(ctx, env)
		if err != nil {
			return out, err
		}
		for _, t := range targets {
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}
