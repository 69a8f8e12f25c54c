package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertMessage records a Message on first sight. It is idempotent: a
// repeat insert of the same message_id is ignored rather than erroring,
// since retried delivery or reprocessing must not duplicate history.
func (s *Store) InsertMessage(ctx context.Context, m Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "message_id"}}, DoNothing: true}).
		Create(&m).Error
	return wrap("insert message", err)
}

// UpdateMessageStatus transitions a Message's status, called by the
// ingress validator (accepted/rejected) and the delivery tracker
// (delivered).
func (s *Store) UpdateMessageStatus(ctx context.Context, messageID string, status MessageStatus) error {
	res := s.DB.WithContext(ctx).Model(&Message{}).
		Where("message_id = ?", messageID).
		Update("status", status)
	if res.Error != nil {
		return wrap("update message status", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Entity: "message", Key: messageID}
	}
	return nil
}

// GetMessage fetches a single message by id.
func (s *Store) GetMessage(ctx context.Context, messageID string) (Message, error) {
	var m Message
	err := s.DB.WithContext(ctx).Where("message_id = ?", messageID).First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return Message{}, &NotFoundError{Entity: "message", Key: messageID}
	}
	return m, wrap("get message", err)
}

// MessageFilter narrows ListMessages by any combination of fields; zero
// values are treated as "unconstrained", matching spec.md §4.8's query
// helpers "by (did, status, time_range, thread_id)".
type MessageFilter struct {
	AgentDID string
	Status   MessageStatus
	ThreadID string
	Since    time.Time
	Until    time.Time
}

// ListMessages returns messages matching filter, newest first.
func (s *Store) ListMessages(ctx context.Context, filter MessageFilter) ([]Message, error) {
	q := s.DB.WithContext(ctx).Model(&Message{})
	if filter.AgentDID != "" {
		q = q.Where("from_did = ? OR to_did = ?", filter.AgentDID, filter.AgentDID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ThreadID != "" {
		q = q.Where("thread_id = ?", filter.ThreadID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}
	var out []Message
	err := q.Order("created_at DESC").Find(&out).Error
	return out, wrap("list messages", err)
}
