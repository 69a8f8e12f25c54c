package store

import (
	"context"
	"time"
)

// InsertReceived appends raw inbound bytes to the audit trail, before any
// unpack attempt — so a crypto failure (bad signature, unknown kid)
// never loses the wire payload that caused it.
func (s *Store) InsertReceived(ctx context.Context, raw []byte, source string) error {
	r := Received{Raw: raw, Source: source, ReceivedAt: time.Now().UTC()}
	return wrap("insert received", s.DB.WithContext(ctx).Create(&r).Error)
}
