package bid

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

var repoTracer = otel.Tracer("github.com/agritrade/stockyard/repository/bid")

// Repository reads the append-only bid ledger. Writes happen exclusively
// through the auction repository's accept transaction, so reads here never
// need a lock.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a ledger reader backed by the read replica.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// ListByAuction returns all bids on one auction in acceptance order.
func (r *Repository) ListByAuction(ctx context.Context, auctionID int64) ([]entity.Bid, error) {
	ctx, span := repoTracer.Start(ctx, "BidRepository.ListByAuction", trace.WithAttributes(attribute.Int64("auction.id", auctionID)))
	defer span.End()

	var bids []entity.Bid
	err := r.reader.NewSelect().Model(&bids).
		Where("auction_id = ?", auctionID).
		OrderExpr("id ASC").
		Scan(ctx)
	return bids, err
}

// TopTwo returns the winning bid and the runner-up, highest first.
// Acceptance is serialized and strictly increasing so ties cannot occur;
// the two most recent bids are the two highest.
func (r *Repository) TopTwo(ctx context.Context, auctionID int64) ([]entity.Bid, error) {
	ctx, span := repoTracer.Start(ctx, "BidRepository.TopTwo", trace.WithAttributes(attribute.Int64("auction.id", auctionID)))
	defer span.End()

	var bids []entity.Bid
	err := r.reader.NewSelect().Model(&bids).
		Where("auction_id = ?", auctionID).
		OrderExpr("amount DESC").
		Limit(2).
		Scan(ctx)
	return bids, err
}

// LastN returns the most recent n bids on an auction, newest first.
func (r *Repository) LastN(ctx context.Context, auctionID int64, n int) ([]entity.Bid, error) {
	var bids []entity.Bid
	err := r.reader.NewSelect().Model(&bids).
		Where("auction_id = ?", auctionID).
		OrderExpr("id DESC").
		Limit(n).
		Scan(ctx)
	return bids, err
}

// ByBidderOnSeller returns bids the given bidder placed on auctions owned
// by the given seller. The cross-ownership check walks this in both
// directions.
func (r *Repository) ByBidderOnSeller(ctx context.Context, bidderID, sellerID int64) ([]entity.Bid, error) {
	if bidderID == 0 || sellerID == 0 {
		return nil, errors.New("bidder and seller ids are required")
	}
	var bids []entity.Bid
	err := r.reader.NewSelect().Model(&bids).
		Join("JOIN auctions AS a ON a.id = bid.auction_id").
		Where("bid.bidder_id = ?", bidderID).
		Where("a.seller_id = ?", sellerID).
		OrderExpr("bid.id DESC").
		Scan(ctx)
	return bids, err
}
