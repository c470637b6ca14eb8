// Package shill analyzes the bid ledger for collusion patterns. The
// detector is advisory: it only emits alerts for operator review and never
// rejects, rolls back, or delays a bid.
package shill

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/entity"
)

var serviceTracer = otel.Tracer("github.com/agritrade/stockyard/service/shill")

// pingPongWindow is the number of trailing bids examined for the
// ping-pong pattern. Shorter ledgers are not flagged: two bidders trading
// a handful of bids is ordinary price discovery.
const pingPongWindow = 10

// Ledger is the read-only slice of the bid ledger the detector consumes.
type Ledger interface {
	LastN(ctx context.Context, auctionID int64, n int) ([]entity.Bid, error)
	ByBidderOnSeller(ctx context.Context, bidderID, sellerID int64) ([]entity.Bid, error)
}

// Alerts persists the detector's findings.
type Alerts interface {
	Create(ctx context.Context, a *entity.ShillAlert) error
	ListOpen(ctx context.Context, limit int) ([]entity.ShillAlert, error)
}

// Service runs the pattern checks after each accepted bid, off the hot
// path.
type Service struct {
	ledger Ledger
	alerts Alerts
	logger *zap.Logger
}

// NewService wires a detector.
func NewService(ledger Ledger, alerts Alerts, logger *zap.Logger) *Service {
	return &Service{ledger: ledger, alerts: alerts, logger: logger}
}

// Analyze inspects the ledger around one accepted bid and records any
// alerts. Errors are returned for the caller to log and retry; a failed
// analysis never affects the bid itself.
func (s *Service) Analyze(ctx context.Context, auctionID, sellerID, bidderID int64, origin entity.BidOrigin) error {
	ctx, span := serviceTracer.Start(ctx, "ShillService.Analyze", trace.WithAttributes(
		attribute.Int64("auction.id", auctionID),
		attribute.Int64("bidder.id", bidderID),
	))
	defer span.End()

	if err := s.checkPingPong(ctx, auctionID); err != nil {
		return err
	}
	return s.checkCrossOwnership(ctx, auctionID, sellerID, bidderID, origin)
}

// RecentAlerts lists the newest alerts for operator review.
func (s *Service) RecentAlerts(ctx context.Context, limit int) ([]entity.ShillAlert, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.alerts.ListOpen(ctx, limit)
}

// checkPingPong flags a trailing window where exactly two bidders account
// for every bid and their counts differ by at most one.
func (s *Service) checkPingPong(ctx context.Context, auctionID int64) error {
	window, err := s.ledger.LastN(ctx, auctionID, pingPongWindow)
	if err != nil {
		return err
	}
	a, b, ok := pingPong(window)
	if !ok {
		return nil
	}

	alert := &entity.ShillAlert{
		AuctionID: auctionID,
		Pattern:   entity.PatternPingPong,
		Severity:  entity.SeverityMedium,
		BidderA:   a,
		BidderB:   b,
		Details:   fmt.Sprintf("last %d bids traded exclusively between bidders %d and %d", pingPongWindow, a, b),
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return err
	}
	s.logger.Warn("ping-pong bidding pattern flagged",
		zap.Int64("auction_id", auctionID),
		zap.Int64("bidder_a", a),
		zap.Int64("bidder_b", b),
	)
	return nil
}

// pingPong reports whether the window is saturated by exactly two bidders
// with balanced counts. Partial windows never match.
func pingPong(window []entity.Bid) (int64, int64, bool) {
	if len(window) < pingPongWindow {
		return 0, 0, false
	}
	counts := make(map[int64]int, 2)
	for _, bid := range window {
		counts[bid.BidderID]++
		if len(counts) > 2 {
			return 0, 0, false
		}
	}
	if len(counts) != 2 {
		return 0, 0, false
	}
	bidders := make([]int64, 0, 2)
	for id := range counts {
		bidders = append(bidders, id)
	}
	diff := counts[bidders[0]] - counts[bidders[1]]
	if diff < -1 || diff > 1 {
		return 0, 0, false
	}
	if bidders[0] > bidders[1] {
		bidders[0], bidders[1] = bidders[1], bidders[0]
	}
	return bidders[0], bidders[1], true
}

// checkCrossOwnership flags the mutual-bidding arrangement: the bidder is
// bidding up a seller who in turn bids on the bidder's own listings, with
// the two sides sharing origin metadata.
func (s *Service) checkCrossOwnership(ctx context.Context, auctionID, sellerID, bidderID int64, origin entity.BidOrigin) error {
	if sellerID == 0 || bidderID == 0 {
		return nil
	}
	reverse, err := s.ledger.ByBidderOnSeller(ctx, sellerID, bidderID)
	if err != nil {
		return err
	}
	if len(reverse) == 0 {
		return nil
	}
	if !sharesOrigin(reverse, origin) {
		return nil
	}

	alert := &entity.ShillAlert{
		AuctionID: auctionID,
		Pattern:   entity.PatternCrossOwnership,
		Severity:  entity.SeverityHigh,
		BidderA:   bidderID,
		BidderB:   sellerID,
		Details:   fmt.Sprintf("bidder %d and seller %d bid on each other's listings from a shared origin", bidderID, sellerID),
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return err
	}
	s.logger.Warn("cross-ownership bidding pattern flagged",
		zap.Int64("auction_id", auctionID),
		zap.Int64("bidder_id", bidderID),
		zap.Int64("seller_id", sellerID),
	)
	return nil
}

func sharesOrigin(bids []entity.Bid, origin entity.BidOrigin) bool {
	for _, b := range bids {
		if origin.IP != "" && b.OriginIP == origin.IP {
			return true
		}
		if origin.Device != "" && b.OriginDevice == origin.Device {
			return true
		}
	}
	return false
}
