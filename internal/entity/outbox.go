package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OutboxEvent is appended in the same transaction as the state change that
// produced it and drained to the message bus by the dispatcher. Bid
// acceptance never waits on kafka because of this indirection.
type OutboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID          int64      `bun:",pk,autoincrement"`
	Topic       string     `bun:"topic,notnull"`
	Key         string     `bun:"key,notnull"`
	EventType   string     `bun:"event_type,notnull"`
	Payload     []byte     `bun:"payload,type:jsonb,notnull"`
	Attempts    int        `bun:"attempts,notnull,default:0"`
	PublishedAt *time.Time `bun:"published_at"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
