// Package event is tap-go's typed publish/subscribe bus. It follows the
// same thread-safe registry shape as the teacher's ConnectionHub
// (pkg/rpc/connection_hub.go: a mutex-guarded map plus Add/Remove/
// broadcast methods), generalized from connections to event
// subscribers and from a single untyped broadcast to a closed set of
// typed event variants.
package event

import (
	"sync"

	"github.com/tap-rsvp/tap-go/pkg/message"
)

// Kind identifies which event variant an Event carries.
type Kind string

const (
	KindMessageReceived         Kind = "message_received"
	KindMessageSent             Kind = "message_sent"
	KindMessageAccepted         Kind = "message_accepted"
	KindMessageRejected         Kind = "message_rejected"
	KindReplyReceived           Kind = "reply_received"
	KindAgentRegistered         Kind = "agent_registered"
	KindAgentUnregistered       Kind = "agent_unregistered"
	KindDidResolved             Kind = "did_resolved"
	KindTransactionCreated      Kind = "transaction_created"
	KindTransactionStateChanged Kind = "transaction_state_changed"
	KindCustomerUpdated         Kind = "customer_updated"
)

// Event is a single typed notification. Payload holds the
// variant-specific detail (e.g. *MessageReceived); callers type-assert
// it after switching on Kind.
type Event struct {
	Kind    Kind
	Payload any
}

// MessageReceived fires when a packed message is successfully unpacked
// (Agent.ReceiveMessage), before its body is validated and before it
// reaches a Processor chain.
type MessageReceived struct {
	AgentDID string
	ThreadID string
	From     string
	// Envelope is the decoded message, available to subscribers such as
	// pkg/customer that need the body to extract travel-rule data; it may
	// be nil for callers that only have the metadata at hand.
	Envelope *message.Envelope
}

// MessageSent fires after a message has been handed to the transport
// layer for delivery.
type MessageSent struct {
	AgentDID string
	ThreadID string
	To       string
	Envelope *message.Envelope
}

// MessageAccepted fires when an inbound message's body passes the node's
// Validation stage, or when Agent.ProcessMessage validates it and its
// Handler returns without error.
type MessageAccepted struct {
	AgentDID string
	ThreadID string
}

// MessageRejected fires when an inbound message fails validation (the
// node's Validation stage or Agent.ProcessMessage), when a Handler run by
// Agent.ProcessMessage returns an error, or when the node drops a message
// for a transaction state-machine violation.
type MessageRejected struct {
	AgentDID string
	ThreadID string
	Reason   string
}

// ReplyReceived fires when Agent.ProcessMessage handles a message that
// carries a non-empty thid; whether this agent opened that thread is not
// checked.
type ReplyReceived struct {
	AgentDID string
	ThreadID string
}

// AgentRegistered fires when an agent is added to a Node's registry.
type AgentRegistered struct {
	AgentDID string
}

// AgentUnregistered fires when an agent is removed from a Node's
// registry.
type AgentUnregistered struct {
	AgentDID string
}

// DidResolved describes a completed DID resolution, successful or not.
// No resolver in this module publishes it.
type DidResolved struct {
	DID     string
	Success bool
}

// TransactionCreated fires when a new transaction enters Pending state.
type TransactionCreated struct {
	TransactionID string
}

// TransactionStateChanged fires on every transaction state transition.
type TransactionStateChanged struct {
	TransactionID string
	From          string
	To            string
}

// CustomerUpdated describes travel-rule customer data for a party being
// created or amended. pkg/customer's Extractor upserts customer records
// without publishing it, and no other package in this module publishes it.
type CustomerUpdated struct {
	PartyID string
}

// Subscriber receives events synchronously, in publish order, inline
// with the Publish call. It must not block.
type Subscriber func(Event)

// Bus is a thread-safe event bus supporting both inline callback
// subscribers and bounded channel subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
	channels    map[string]chan Event
	nextID      int
}

// channelCapacity bounds a channel subscriber's backlog; once full,
// the oldest pending event is dropped to make room for the newest,
// matching an at-most-once, latest-wins delivery guarantee.
const channelCapacity = 100

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]Subscriber),
		channels:    make(map[string]chan Event),
	}
}

// Subscribe registers a callback invoked inline on every Publish. It
// returns an unsubscribe function.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	id := b.newID()
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// SubscribeChannel returns a channel that receives a copy of every
// published event. The channel has a bounded backlog; when full, the
// oldest queued event is dropped to admit the newest one so a slow
// consumer cannot stall publication.
func (b *Bus) SubscribeChannel() (events <-chan Event, unsubscribe func()) {
	ch := make(chan Event, channelCapacity)

	b.mu.Lock()
	id := b.newID()
	b.channels[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if c, ok := b.channels[id]; ok {
			delete(b.channels, id)
			close(c)
		}
		b.mu.Unlock()
	}
}

func (b *Bus) newID() string {
	b.nextID++
	return itoa(b.nextID)
}

// Publish delivers evt to every current subscriber: callback
// subscribers run inline, then each channel subscriber receives a
// non-blocking send that drops its oldest queued event on overflow.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	callbacks := make([]Subscriber, 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		callbacks = append(callbacks, fn)
	}
	channels := make([]chan Event, 0, len(b.channels))
	for _, ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	for _, fn := range callbacks {
		fn(evt)
	}
	for _, ch := range channels {
		select {
		case ch <- evt:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
