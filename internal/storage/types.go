package storage

import (
	"context"
	"time"
)

// Config configures the delivery-record store.
//
// Driver values:
//   - "file": single JSON document on disk
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is the persisted trace of the most recent delivered digest batch.
// At most one record exists per recipient; Save overwrites.
type Record struct {
	MessageIDs []int     `json:"message_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists, for each recipient, the message IDs of the last delivered
// digest batch so a later cleanup can retract them.
//
// Get treats a missing or corrupt backing store as "no data": it returns an
// empty list, never an error in those cases.
type Store interface {
	Save(ctx context.Context, recipient int64, messageIDs []int) error
	Get(ctx context.Context, recipient int64) ([]int, error)
	Clear(ctx context.Context, recipient int64) error
	Close() error
}
