package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agritrade/stockyard/internal/database"
	"github.com/agritrade/stockyard/internal/entity"
)

var repoTracer = otel.Tracer("github.com/agritrade/stockyard/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrStale signals that a guarded transition matched no rows: the order is
// no longer in any of the expected states.
var ErrStale = errors.New("order state is stale")

// ErrDuplicatePayment is returned when a deposit capture replays a payment
// id that was already recorded.
var ErrDuplicatePayment = errors.New("payment already captured")

// Repository encapsulates read/write access for orders and their escrow
// payments. Escrow rows are written only inside order transactions so the
// two can never drift apart.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order together with its outbox events.
func (r *Repository) Create(ctx context.Context, o *entity.Order, events []*entity.OutboxEvent) error {
	if o == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", o.Number)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(o).Exec(ctx); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o := new(entity.Order)
	err := r.reader.NewSelect().Model(o).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return o, nil
}

// ByAuction fetches the order opened for an auction win. A cancelled
// original with a runner-up re-offer gives the auction two orders; the
// first one recorded answers the question "was this win ever propagated".
func (r *Repository) ByAuction(ctx context.Context, auctionID int64) (*entity.Order, error) {
	o := new(entity.Order)
	err := r.reader.NewSelect().Model(o).
		Where("auction_id = ?", auctionID).
		OrderExpr("id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Transition applies a guarded state transition: the listed columns are
// written only while the order is still in one of the from states, which
// makes every sweep safe to run twice.
func (r *Repository) Transition(ctx context.Context, o *entity.Order, from []entity.OrderStatus, cols []string, events []*entity.OutboxEvent) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Transition", trace.WithAttributes(
		attribute.Int64("order.id", o.ID),
		attribute.String("order.status", string(o.Status)),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(o).
			Column(cols...).
			Where("id = ?", o.ID).
			Where("status IN (?)", bun.In(from)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStale
		}
		return insertEvents(ctx, tx, events)
	})
	if err != nil && !errors.Is(err, ErrStale) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
	}
	return err
}

// CaptureDeposit records the escrow payment and moves the order out of
// pending_deposit in one transaction. A replayed payment id rolls the whole
// thing back with ErrDuplicatePayment.
func (r *Repository) CaptureDeposit(ctx context.Context, o *entity.Order, escrow *entity.EscrowPayment, cols []string, events []*entity.OutboxEvent) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CaptureDeposit", trace.WithAttributes(
		attribute.Int64("order.id", o.ID),
		attribute.String("payment.id", escrow.PaymentID),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(escrow).
			On("CONFLICT (payment_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrDuplicatePayment
		}

		res, err = tx.NewUpdate().Model(o).
			Column(cols...).
			Where("id = ?", o.ID).
			Where("status = ?", entity.OrderPendingDeposit).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStale
		}
		return insertEvents(ctx, tx, events)
	})
	if err != nil && !errors.Is(err, ErrStale) && !errors.Is(err, ErrDuplicatePayment) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capture failed")
	}
	return err
}

// Settle finalizes an order and its escrow atomically. The escrow update
// is guarded on the release/refund flags, so settlement happens at most
// once per order no matter how often it is invoked.
func (r *Repository) Settle(ctx context.Context, o *entity.Order, from []entity.OrderStatus, orderCols []string, escrow *entity.EscrowPayment, escrowCols []string, events []*entity.OutboxEvent) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Settle", trace.WithAttributes(attribute.Int64("order.id", o.ID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(o).
			Column(orderCols...).
			Where("id = ?", o.ID).
			Where("status IN (?)", bun.In(from)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStale
		}

		if escrow != nil {
			res, err = tx.NewUpdate().Model(escrow).
				Column(escrowCols...).
				Where("id = ?", escrow.ID).
				Where("released = FALSE").
				Where("refunded = FALSE").
				Exec(ctx)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrStale
			}
		}
		return insertEvents(ctx, tx, events)
	})
	if err != nil && !errors.Is(err, ErrStale) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle failed")
	}
	return err
}

// EscrowByOrder loads the escrow payment captured for an order.
func (r *Repository) EscrowByOrder(ctx context.Context, orderID int64) (*entity.EscrowPayment, error) {
	e := new(entity.EscrowPayment)
	err := r.reader.NewSelect().Model(e).Where("order_id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// DepositExpired lists orders still waiting on a deposit past the window.
func (r *Repository) DepositExpired(ctx context.Context, now time.Time, limit int) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("status = ?", entity.OrderPendingDeposit).
		Where("deposit_due_at <= ?", now).
		OrderExpr("deposit_due_at ASC").
		Limit(limit).
		Scan(ctx)
	return orders, err
}

// ConfirmOverdue lists paid orders the seller has not confirmed in time
// and that have not been escalated yet.
func (r *Repository) ConfirmOverdue(ctx context.Context, now time.Time, limit int) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("status = ?", entity.OrderDepositPaid).
		Where("confirm_due_at IS NOT NULL").
		Where("confirm_due_at <= ?", now).
		Where("escalated_at IS NULL").
		OrderExpr("confirm_due_at ASC").
		Limit(limit).
		Scan(ctx)
	return orders, err
}

// AutoCompletable lists delivered, dispute-free orders past the cutoff.
func (r *Repository) AutoCompletable(ctx context.Context, cutoff time.Time, limit int) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("status = ?", entity.OrderDelivered).
		Where("dispute_open = FALSE").
		Where("delivered_at IS NOT NULL").
		Where("delivered_at <= ?", cutoff).
		OrderExpr("delivered_at ASC").
		Limit(limit).
		Scan(ctx)
	return orders, err
}

func insertEvents(ctx context.Context, tx bun.Tx, events []*entity.OutboxEvent) error {
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if _, err := tx.NewInsert().Model(ev).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
