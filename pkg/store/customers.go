package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertCustomer inserts or merges a travel-rule Customer record. A
// repeat call with an identical payload is a no-op with respect to every
// column except updated_at (spec.md §8): this always writes raw_json,
// pii_hash and verification, so if the caller passes back exactly what
// is already stored, only updated_at visibly changes.
func (s *Store) UpsertCustomer(ctx context.Context, c Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"pii_hash", "raw_json", "verification", "updated_at"}),
	}).Create(&c).Error
	return wrap("upsert customer", err)
}

// GetCustomer fetches a single customer record.
func (s *Store) GetCustomer(ctx context.Context, customerID string) (Customer, error) {
	var c Customer
	err := s.DB.WithContext(ctx).Where("customer_id = ?", customerID).First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return Customer{}, &NotFoundError{Entity: "customer", Key: customerID}
	}
	return c, wrap("get customer", err)
}

// ListCustomers returns every customer record this agent owns.
func (s *Store) ListCustomers(ctx context.Context, agentDID string) ([]Customer, error) {
	var out []Customer
	err := s.DB.WithContext(ctx).Where("agent_did = ?", agentDID).Find(&out).Error
	return out, wrap("list customers", err)
}
