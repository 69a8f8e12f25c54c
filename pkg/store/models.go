package store

import "time"

// MessageDirection records whether a stored Message was sent by this
// agent or received from a counterparty.
type MessageDirection string

const (
	DirectionIn  MessageDirection = "in"
	DirectionOut MessageDirection = "out"
)

// MessageStatus tracks a Message's lifecycle, updated by the validator
// (accepted/rejected) and the delivery tracker (delivered).
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusAccepted  MessageStatus = "accepted"
	MessageStatusRejected  MessageStatus = "rejected"
	MessageStatusDelivered MessageStatus = "delivered"
)

// Message is the durable record of one envelope seen or produced by this
// agent. It is created on first sight and never deleted; only Status
// changes thereafter.
type Message struct {
	MessageID string        `gorm:"column:message_id;primaryKey"`
	Type      string        `gorm:"column:type;not null"`
	FromDID   string        `gorm:"column:from_did;not null;index"`
	ToDID     string        `gorm:"column:to_did;index"`
	Direction MessageDirection `gorm:"column:direction;not null"`
	ThreadID  string        `gorm:"column:thread_id;index"`
	RawJSON   string        `gorm:"column:raw_json;type:text;not null"`
	Status    MessageStatus `gorm:"column:status;not null"`
	CreatedAt time.Time     `gorm:"column:created_at"`
}

func (Message) TableName() string { return "messages" }

// TransactionKind distinguishes a Transfer-rooted transaction from a
// Payment-rooted one; both share the same state machine.
type TransactionKind string

const (
	KindTransfer TransactionKind = "transfer"
	KindPayment  TransactionKind = "payment"
)

// TransactionState is the lifecycle position of a Transaction, see
// pkg/txstate for the transition rules.
type TransactionState string

const (
	StateProposed   TransactionState = "pending"
	StateAuthorized TransactionState = "authorized"
	StateSettled    TransactionState = "settled"
	StateRejected   TransactionState = "rejected"
	StateCancelled  TransactionState = "cancelled"
	StateReverted   TransactionState = "reverted"
	StateFailed     TransactionState = "failed"
)

// Transaction is the durable per-agent record of one TAP transaction,
// keyed by the thread id of its originating Transfer or Payment.
type Transaction struct {
	TransactionID string          `gorm:"column:transaction_id;primaryKey"`
	Kind          TransactionKind `gorm:"column:kind;not null"`
	ReferenceID   string          `gorm:"column:reference_id"`
	State         TransactionState `gorm:"column:state;not null"`
	FromDID       string          `gorm:"column:from_did;not null;index"`
	ToDID         string          `gorm:"column:to_did"`
	ThreadID      string          `gorm:"column:thread_id;not null;uniqueIndex"`
	Amount        string          `gorm:"column:amount"`
	SettlementID  string          `gorm:"column:settlement_id"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

// TransactionAgent is one agent's row within a Transaction's agent set,
// tracking its individual authorization/rejection state for the
// "every agent authorized" and "reject wins" rules in pkg/txstate.
type TransactionAgent struct {
	TransactionID string `gorm:"column:transaction_id;primaryKey"`
	AgentDID      string `gorm:"column:agent_did;primaryKey"`
	Role          string `gorm:"column:role"`
	ForParty      string `gorm:"column:for_party"`
	Authorized    bool   `gorm:"column:authorized;not null;default:false"`
	Rejected      bool   `gorm:"column:rejected;not null;default:false"`
}

func (TransactionAgent) TableName() string { return "transaction_agents" }

// Delivery records one attempt (and retries) to deliver a Message to a
// specific recipient's service endpoint.
type Delivery struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement"`
	MessageID     string    `gorm:"column:message_id;not null;index"`
	RecipientDID  string    `gorm:"column:recipient_did;not null;index"`
	Endpoint      string    `gorm:"column:endpoint"`
	HTTPStatus    int       `gorm:"column:http_status"`
	Error         string    `gorm:"column:error"`
	Attempts      int       `gorm:"column:attempts;not null;default:0"`
	LastAttemptAt time.Time `gorm:"column:last_attempt_at"`
}

func (Delivery) TableName() string { return "deliveries" }

// Received is the append-only audit trail of raw inbound bytes, written
// before any unpack attempt, so a crypto failure never loses the wire
// payload that caused it.
type Received struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Raw        []byte    `gorm:"column:raw;type:blob;not null"`
	Source     string    `gorm:"column:source"`
	ReceivedAt time.Time `gorm:"column:received_at"`
}

func (Received) TableName() string { return "received" }

// CustomerVerification is the travel-rule verification state of a
// Customer record.
type CustomerVerification string

const (
	VerificationUnverified CustomerVerification = "unverified"
	VerificationPartial    CustomerVerification = "partial"
	VerificationVerified   CustomerVerification = "verified"
)

// Customer is the IVMS101-shaped travel-rule record this agent holds for
// one counterparty Party, upserted by pkg/customer. RawJSON carries the
// merged IVMS101 fields; PIIHash indexes it without exposing raw values
// to queries that do not need them.
type Customer struct {
	CustomerID   string                `gorm:"column:customer_id;primaryKey"`
	AgentDID     string                `gorm:"column:agent_did;not null;index"`
	PIIHash      string                `gorm:"column:pii_hash;index"`
	RawJSON      string                `gorm:"column:raw_json;type:text;not null"`
	Verification CustomerVerification  `gorm:"column:verification;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at"`
	UpdatedAt    time.Time             `gorm:"column:updated_at"`
}

func (Customer) TableName() string { return "customers" }

// allModels is the set migrated by AutoMigrate on the sqlite path,
// mirroring the teacher's migrateSqlite model list (database.go).
func allModels() []any {
	return []any{
		&Message{}, &Transaction{}, &TransactionAgent{}, &Delivery{}, &Received{}, &Customer{},
	}
}
