package auction

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

var repoTracer = otel.Tracer("github.com/agritrade/stockyard/repository/auction")

// ErrNotFound is returned when an auction is missing.
var ErrNotFound = errors.New("auction not found")

// ErrStale signals that a guarded write matched no rows: the auction moved
// underneath the caller (price changed or status advanced concurrently).
var ErrStale = errors.New("auction state is stale")

// Repository encapsulates read/write access for auctions, the bid ledger's
// write path, and the reserve-not-met seller decisions.
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

// Create persists a new auction.
func (r *Repository) Create(ctx context.Context, a *entity.Auction) error {
	if a == nil {
		return errors.New("nil auction")
	}
	ctx, span := repoTracer.Start(ctx, "AuctionRepository.Create", trace.WithAttributes(attribute.String("auction.lot", a.LotNumber)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(a).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an auction by primary key using the read replica.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Auction, error) {
	ctx, span := repoTracer.Start(ctx, "AuctionRepository.GetByID", trace.WithAttributes(attribute.Int64("auction.id", id)))
	defer span.End()

	a := new(entity.Auction)
	err := r.reader.NewSelect().Model(a).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return a, nil
}

// AcceptBid atomically appends a bid to the ledger and advances the
// auction's price, winner, and bid count. The update is guarded on the
// previous bid count: if another bid landed first the whole transaction
// rolls back with ErrStale and nothing is persisted. Outbox events ride in
// the same transaction; the builder runs after the insert so payloads can
// reference the assigned bid id.
func (r *Repository) AcceptBid(ctx context.Context, a *entity.Auction, bid *entity.Bid, events func() []*entity.OutboxEvent) error {
	ctx, span := repoTracer.Start(ctx, "AuctionRepository.AcceptBid", trace.WithAttributes(
		attribute.Int64("auction.id", a.ID),
		attribute.Int64("bid.bidder_id", bid.BidderID),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(bid).Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewUpdate().Model(a).
			Column("current_price", "current_bidder_id", "bid_count", "status", "end_at", "extension_count", "updated_at").
			Where("id = ?", a.ID).
			Where("bid_count = ?", a.BidCount-1).
			Where("status IN (?)", bun.In([]entity.AuctionStatus{entity.AuctionActive, entity.AuctionExtended})).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStale
		}

		if events == nil {
			return nil
		}
		return insertEvents(ctx, tx, events())
	})
	if err != nil && !errors.Is(err, ErrStale) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept failed")
	}
	return err
}

// Transition applies a guarded status transition, writing the listed
// columns only while the auction is still in one of the from states. A
// redundant invocation is a no-op signalled by ErrStale.
func (r *Repository) Transition(ctx context.Context, a *entity.Auction, from []entity.AuctionStatus, cols []string, events []*entity.OutboxEvent) error {
	ctx, span := repoTracer.Start(ctx, "AuctionRepository.Transition", trace.WithAttributes(
		attribute.Int64("auction.id", a.ID),
		attribute.String("auction.status", string(a.Status)),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(a).
			Column(cols...).
			Where("id = ?", a.ID).
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

// DueToStart lists scheduled auctions whose start time has elapsed.
func (r *Repository) DueToStart(ctx context.Context, now time.Time, limit int) ([]entity.Auction, error) {
	var auctions []entity.Auction
	err := r.reader.NewSelect().Model(&auctions).
		Where("status = ?", entity.AuctionScheduled).
		Where("start_at <= ?", now).
		OrderExpr("start_at ASC").
		Limit(limit).
		Scan(ctx)
	return auctions, err
}

// DueToClose lists running auctions whose end time has elapsed.
func (r *Repository) DueToClose(ctx context.Context, now time.Time, limit int) ([]entity.Auction, error) {
	var auctions []entity.Auction
	err := r.reader.NewSelect().Model(&auctions).
		Where("status IN (?)", bun.In([]entity.AuctionStatus{entity.AuctionActive, entity.AuctionExtended})).
		Where("end_at <= ?", now).
		OrderExpr("end_at ASC").
		Limit(limit).
		Scan(ctx)
	return auctions, err
}

// WonAwaitingOrder lists ended auctions with a winner whose order was
// never opened: the reserve was met, or the seller accepted below it. A
// crashed or failed order creation after the close committed leaves the
// auction in exactly this shape.
func (r *Repository) WonAwaitingOrder(ctx context.Context, limit int) ([]entity.Auction, error) {
	var auctions []entity.Auction
	err := r.reader.NewSelect().Model(&auctions).
		Where("status = ?", entity.AuctionEnded).
		Where("winning_bid_id IS NOT NULL").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("reserve_met = TRUE").
				WhereOr("EXISTS (SELECT 1 FROM seller_decisions d WHERE d.auction_id = auctions.id AND d.status = ?)", entity.DecisionAccepted)
		}).
		Where("NOT EXISTS (SELECT 1 FROM orders o WHERE o.auction_id = auctions.id)").
		OrderExpr("updated_at ASC").
		Limit(limit).
		Scan(ctx)
	return auctions, err
}

// CreateDecision records the reserve-not-met sub-state for an auction.
func (r *Repository) CreateDecision(ctx context.Context, d *entity.SellerDecision, events []*entity.OutboxEvent) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(d).
			On("CONFLICT (auction_id) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

// DecisionByAuction loads the pending seller decision for an auction.
func (r *Repository) DecisionByAuction(ctx context.Context, auctionID int64) (*entity.SellerDecision, error) {
	d := new(entity.SellerDecision)
	err := r.reader.NewSelect().Model(d).Where("auction_id = ?", auctionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ResolveDecision finalizes a pending decision; ErrStale when it was
// already decided or expired.
func (r *Repository) ResolveDecision(ctx context.Context, d *entity.SellerDecision, events []*entity.OutboxEvent) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(d).
			Column("status", "decided_at").
			Where("id = ?", d.ID).
			Where("status = ?", entity.DecisionPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStale
		}
		return insertEvents(ctx, tx, events)
	})
}

// DueDecisions lists pending decisions past their window.
func (r *Repository) DueDecisions(ctx context.Context, now time.Time, limit int) ([]entity.SellerDecision, error) {
	var decisions []entity.SellerDecision
	err := r.reader.NewSelect().Model(&decisions).
		Where("status = ?", entity.DecisionPending).
		Where("expires_at <= ?", now).
		OrderExpr("expires_at ASC").
		Limit(limit).
		Scan(ctx)
	return decisions, err
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
