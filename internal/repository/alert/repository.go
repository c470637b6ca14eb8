package alert

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agritrade/stockyard/internal/database"
	"github.com/agritrade/stockyard/internal/entity"
)

var repoTracer = otel.Tracer("github.com/agritrade/stockyard/repository/alert")

// Repository stores advisory shill alerts for operator review.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires an alert repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create persists an alert, coalescing duplicates for the same auction and
// pattern so repeated sweeps do not pile up identical rows.
func (r *Repository) Create(ctx context.Context, a *entity.ShillAlert) error {
	if a == nil {
		return errors.New("nil alert")
	}
	ctx, span := repoTracer.Start(ctx, "AlertRepository.Create", trace.WithAttributes(
		attribute.Int64("auction.id", a.AuctionID),
		attribute.String("alert.pattern", string(a.Pattern)),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(a).
		On("CONFLICT (auction_id, pattern) DO NOTHING").
		Exec(ctx)
	return err
}

// ListOpen returns recent alerts, newest first.
func (r *Repository) ListOpen(ctx context.Context, limit int) ([]entity.ShillAlert, error) {
	var alerts []entity.ShillAlert
	err := r.reader.NewSelect().Model(&alerts).
		OrderExpr("id DESC").
		Limit(limit).
		Scan(ctx)
	return alerts, err
}
