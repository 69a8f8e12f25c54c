package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertTransaction creates the Transaction row for a transaction's first
// observation (a Transfer or Payment), or is a no-op if the row already
// exists — a transaction_id collision on a later Transfer/Payment replay
// must not clobber state a reply has already advanced.
func (s *Store) UpsertTransaction(ctx context.Context, t Transaction) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transaction_id"}}, DoNothing: true}).
		Create(&t).Error
	return wrap("upsert transaction", err)
}

// GetTransaction fetches a transaction by id.
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (Transaction, error) {
	var t Transaction
	err := s.DB.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return Transaction{}, &NotFoundError{Entity: "transaction", Key: transactionID}
	}
	return t, wrap("get transaction", err)
}

// GetTransactionByThread fetches the transaction whose thread_id matches
// thid, the lookup an inbound reply uses to find its parent.
func (s *Store) GetTransactionByThread(ctx context.Context, thid string) (Transaction, error) {
	var t Transaction
	err := s.DB.WithContext(ctx).Where("thread_id = ?", thid).First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return Transaction{}, &NotFoundError{Entity: "transaction", Key: thid}
	}
	return t, wrap("get transaction by thread", err)
}

// ListTransactionAgents returns the TransactionAgent rows for a
// transaction, ordered by agent DID.
func (s *Store) ListTransactionAgents(ctx context.Context, transactionID string) ([]TransactionAgent, error) {
	var out []TransactionAgent
	err := s.DB.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("agent_did ASC").
		Find(&out).Error
	return out, wrap("list transaction agents", err)
}

// InsertTransactionAgents inserts the initial TransactionAgent set
// declared by a Transfer/Payment's agents list. Rows that already exist
// (a retried first-sight) are left untouched.
func (s *Store) InsertTransactionAgents(ctx context.Context, agents []TransactionAgent) error {
	if len(agents) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transaction_id"}, {Name: "agent_did"}}, DoNothing: true}).
		Create(&agents).Error
	return wrap("insert transaction agents", err)
}

// Transition is the atomic unit of state-machine work: read the current
// Transaction and its agent rows, decide the next state and any agent
// row mutations, and persist both inside one transaction. It mirrors the
// teacher's AppSessionService.SubmitAppState pattern of reading quorum
// state and writing the new ledger/session rows inside a single
// db.Transaction(...) closure (app_session_service.go).
type Transition func(current Transaction, agents []TransactionAgent) (TransitionResult, error)

// TransitionResult is what a Transition decides to persist.
type TransitionResult struct {
	NewState      TransactionState
	SettlementID  string
	Amount        string
	AgentUpserts  []TransactionAgent
	AgentDeletes  []string // agent DIDs to remove (RemoveAgent/ReplaceAgent original)
}

// ApplyTransition runs fn against the current snapshot of transactionID
// and its agents under one DB transaction, using a row lock on the
// transaction (on Postgres) to serialize concurrent transitions (e.g. concurrent
// Authorize + Reject on the same transaction, spec.md §8 scenario 6),
// then writes fn's result back atomically.
func (s *Store) ApplyTransition(ctx context.Context, transactionID string, fn Transition) (Transaction, error) {
	var updated Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// On Postgres the row is read with SELECT ... FOR UPDATE, so a
		// second transition on the same transaction waits until this one
		// commits. The sqlite driver does not support row locking clauses;
		// there sqlite's own writer-serializing transactions stand in for it.
		var current Transaction
		q := tx.Where("transaction_id = ?", transactionID)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&current).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "transaction", Key: transactionID}
			}
			return err
		}

		var agents []TransactionAgent
		if err := tx.Where("transaction_id = ?", transactionID).Order("agent_did ASC").Find(&agents).Error; err != nil {
			return err
		}

		result, err := fn(current, agents)
		if err != nil {
			return err
		}

		current.State = result.NewState
		if result.SettlementID != "" {
			current.SettlementID = result.SettlementID
		}
		if result.Amount != "" {
			current.Amount = result.Amount
		}
		current.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&current).Error; err != nil {
			return err
		}

		if len(result.AgentUpserts) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "transaction_id"}, {Name: "agent_did"}},
				DoUpdates: clause.AssignmentColumns([]string{"role", "for_party", "authorized", "rejected"}),
			}).Create(&result.AgentUpserts).Error; err != nil {
				return err
			}
		}
		for _, did := range result.AgentDeletes {
			if err := tx.Where("transaction_id = ? AND agent_did = ?", transactionID, did).
				Delete(&TransactionAgent{}).Error; err != nil {
				return err
			}
		}

		updated = current
		return nil
	})
	return updated, wrap("apply transition", err)
}
