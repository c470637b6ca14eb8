package outbox

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/agritrade/stockyard/internal/database"
	"github.com/agritrade/stockyard/internal/entity"
)

// Repository drains the transactional outbox. Event rows are inserted by
// the auction/order repositories inside their own transactions; this side
// only reads pending rows and marks them published.
type Repository struct {
	writer *bun.DB
}

// NewRepository wires an outbox repository on the write connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer}
}

// Pending returns unpublished events in insertion order.
func (r *Repository) Pending(ctx context.Context, limit int) ([]entity.OutboxEvent, error) {
	var events []entity.OutboxEvent
	err := r.writer.NewSelect().Model(&events).
		Where("published_at IS NULL").
		OrderExpr("id ASC").
		Limit(limit).
		Scan(ctx)
	return events, err
}

// MarkPublished stamps an event as delivered to the bus.
func (r *Repository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.writer.NewUpdate().Model((*entity.OutboxEvent)(nil)).
		Set("published_at = ?", at).
		Set("attempts = attempts + 1").
		Where("id = ?", id).
		Where("published_at IS NULL").
		Exec(ctx)
	return err
}

// MarkFailed bumps the attempt counter after a publish failure so the row
// is retried on the next poll.
func (r *Repository) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.writer.NewUpdate().Model((*entity.OutboxEvent)(nil)).
		Set("attempts = attempts + 1").
		Where("id = ?", id).
		Exec(ctx)
	return err
}
