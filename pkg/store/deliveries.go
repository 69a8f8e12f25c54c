package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// InsertDelivery creates a Delivery row for a new send attempt.
func (s *Store) InsertDelivery(ctx context.Context, d Delivery) (uint, error) {
	if d.LastAttemptAt.IsZero() {
		d.LastAttemptAt = time.Now().UTC()
	}
	d.Attempts = 1
	err := s.DB.WithContext(ctx).Create(&d).Error
	return d.ID, wrap("insert delivery", err)
}

// UpdateDelivery records the outcome of a (re)try against an existing
// Delivery row, incrementing its attempt counter.
func (s *Store) UpdateDelivery(ctx context.Context, id uint, httpStatus int, deliveryErr string) error {
	res := s.DB.WithContext(ctx).Model(&Delivery{}).Where("id = ?", id).Updates(map[string]any{
		"http_status":     httpStatus,
		"error":           deliveryErr,
		"last_attempt_at": time.Now().UTC(),
		"attempts":        gorm.Expr("attempts + 1"),
	})
	if res.Error != nil {
		return wrap("update delivery", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Entity: "delivery", Key: itoa(id)}
	}
	return nil
}

// ListDeliveries returns every Delivery attempt recorded for a message.
func (s *Store) ListDeliveries(ctx context.Context, messageID string) ([]Delivery, error) {
	var out []Delivery
	err := s.DB.WithContext(ctx).Where("message_id = ?", messageID).Find(&out).Error
	return out, wrap("list deliveries", err)
}

func itoa(id uint) string {
	if id == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[i:])
}
