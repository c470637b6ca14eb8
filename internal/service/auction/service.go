package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/cache"
	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/entity"
	"github.com/agritrade/stockyard/internal/event"
	repo "github.com/agritrade/stockyard/internal/repository/auction"
	"github.com/agritrade/stockyard/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/agritrade/stockyard/service/auction")

// Store is the persistence surface the engine drives. Implemented by the
// auction repository; faked in tests.
type Store interface {
	Create(ctx context.Context, a *entity.Auction) error
	GetByID(ctx context.Context, id int64) (*entity.Auction, error)
	AcceptBid(ctx context.Context, a *entity.Auction, bid *entity.Bid, events func() []*entity.OutboxEvent) error
	Transition(ctx context.Context, a *entity.Auction, from []entity.AuctionStatus, cols []string, events []*entity.OutboxEvent) error
	DueToStart(ctx context.Context, now time.Time, limit int) ([]entity.Auction, error)
	DueToClose(ctx context.Context, now time.Time, limit int) ([]entity.Auction, error)
	WonAwaitingOrder(ctx context.Context, limit int) ([]entity.Auction, error)
	CreateDecision(ctx context.Context, d *entity.SellerDecision, events []*entity.OutboxEvent) error
	DecisionByAuction(ctx context.Context, auctionID int64) (*entity.SellerDecision, error)
	ResolveDecision(ctx context.Context, d *entity.SellerDecision, events []*entity.OutboxEvent) error
	DueDecisions(ctx context.Context, now time.Time, limit int) ([]entity.SellerDecision, error)
}

// Ledger reads the append-only bid record.
type Ledger interface {
	ListByAuction(ctx context.Context, auctionID int64) ([]entity.Bid, error)
	TopTwo(ctx context.Context, auctionID int64) ([]entity.Bid, error)
}

// OrderCreator opens an order for a won auction. Implemented by the order
// service.
type OrderCreator interface {
	CreateFromAuctionWin(ctx context.Context, a *entity.Auction, winning *entity.Bid) (*entity.Order, error)
}

// Service is the auction engine: it is the only writer of auction price
// state, and every accepted bid passes through its per-auction lock.
type Service struct {
	store  Store
	ledger Ledger
	orders OrderCreator
	cache  cache.Store
	logger *zap.Logger

	locks *lockTable
	now   func() time.Time

	cacheTTL           time.Duration
	extensionWindow    time.Duration
	decisionWindow     time.Duration
	bidsTopic          string
	notificationsTopic string
	sweepLimit         int
}

// NewService wires a new Service instance.
func NewService(store Store, ledger Ledger, orders OrderCreator, cacheStore cache.Store, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{
		store:              store,
		ledger:             ledger,
		orders:             orders,
		cache:              cacheStore,
		logger:             logger,
		locks:              newLockTable(),
		now:                func() time.Time { return time.Now().UTC() },
		cacheTTL:           cfg.Cache.DefaultTTL,
		extensionWindow:    cfg.Auction.ExtensionWindow,
		decisionWindow:     cfg.Auction.SellerDecisionWindow,
		bidsTopic:          cfg.Messaging.Kafka.BidsTopic,
		notificationsTopic: cfg.Messaging.Kafka.NotificationsTopic,
		sweepLimit:         cfg.Scheduler.SweepLimit,
	}
}

// Create registers a new auction in scheduled state.
func (s *Service) Create(ctx context.Context, a *entity.Auction) error {
	if a == nil {
		return errorbank.BadRequest("auction payload is required")
	}
	if a.StartingPrice.LessThanOrEqual(decimal.Zero) || a.BidIncrement.LessThanOrEqual(decimal.Zero) {
		return errorbank.BadRequest("starting price and bid increment must be positive")
	}
	if !a.EndAt.After(a.StartAt) {
		return errorbank.BadRequest("auction must end after it starts")
	}
	now := s.now()
	a.Status = entity.AuctionScheduled
	a.CurrentPrice = a.StartingPrice
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.store.Create(ctx, a); err != nil {
		return errorbank.Internal("failed to create auction", errorbank.WithCause(err))
	}
	return nil
}

// Get retrieves an auction by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Auction, error) {
	ctx, span := serviceTracer.Start(ctx, "AuctionService.Get", trace.WithAttributes(attribute.Int64("auction.id", id)))
	defer span.End()

	if a, err := s.getFromCache(ctx, id); err == nil {
		return a, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("auction cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("auction not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load auction", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, a); err != nil {
		s.logger.Warn("auction cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return a, nil
}

// Bids lists the accepted-bid ledger for an auction in acceptance order.
func (s *Service) Bids(ctx context.Context, auctionID int64) ([]entity.Bid, error) {
	bids, err := s.ledger.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, errorbank.Internal("failed to load bids", errorbank.WithCause(err))
	}
	return bids, nil
}

// AcceptBid validates and accepts a bid. Preconditions run in a fixed
// order, first failure wins: open auction, no self-bid, amount clears the
// increment. Acceptance is serialized per auction and atomic with the
// price update; a bid that loses the race surfaces as a conflict, never a
// silent re-price.
func (s *Service) AcceptBid(ctx context.Context, auctionID, bidderID int64, amount decimal.Decimal, origin entity.BidOrigin) (*entity.Bid, error) {
	ctx, span := serviceTracer.Start(ctx, "AuctionService.AcceptBid", trace.WithAttributes(
		attribute.Int64("auction.id", auctionID),
		attribute.Int64("bid.bidder_id", bidderID),
	))
	defer span.End()

	unlock := s.locks.Lock(auctionID)
	defer unlock()

	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("auction not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load auction", errorbank.WithCause(err))
	}

	if !a.BiddingOpen() {
		return nil, errorbank.BadRequest("auction is not open for bidding",
			errorbank.WithDetail("status", string(a.Status)))
	}
	if a.SellerID == bidderID {
		return nil, errorbank.BadRequest("self-bidding is not allowed")
	}
	min := a.MinimumNextBid()
	if amount.LessThan(min) {
		return nil, errorbank.BadRequest(fmt.Sprintf("bid must be at least %s", min),
			errorbank.WithDetail("minimum_bid", min.String()),
			errorbank.WithDetail("current_price", a.CurrentPrice.String()))
	}

	now := s.now()
	extended := false
	if a.CanExtend(now, s.extensionWindow) {
		a.EndAt = a.EndAt.Add(s.extensionWindow)
		a.ExtensionCount++
		a.Status = entity.AuctionExtended
		extended = true
	}

	a.CurrentPrice = amount
	a.CurrentBidderID = &bidderID
	a.BidCount++
	a.UpdatedAt = now

	bid := &entity.Bid{
		AuctionID:    auctionID,
		BidderID:     bidderID,
		Amount:       amount,
		OriginIP:     origin.IP,
		OriginDevice: origin.Device,
		CreatedAt:    now,
	}

	err = s.store.AcceptBid(ctx, a, bid, func() []*entity.OutboxEvent {
		events := make([]*entity.OutboxEvent, 0, 2)
		if ev, err := event.NewBidAcceptedEvent(s.bidsTopic, a, bid, extended, now); err == nil {
			events = append(events, ev)
		}
		if extended {
			events = append(events, s.notification(event.AudienceBidders, event.AuctionExtended, map[string]any{
				"auction_id": a.ID,
				"end_at":     a.EndAt,
			}, now))
		}
		return events
	})
	if err != nil {
		if errors.Is(err, repo.ErrStale) {
			return nil, errorbank.Conflict("outbid: the price moved, resubmit a higher bid")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept failed")
		return nil, errorbank.Internal("failed to accept bid", errorbank.WithCause(err))
	}

	s.invalidate(ctx, auctionID)
	s.logger.Info("bid accepted",
		zap.Int64("auction_id", auctionID),
		zap.Int64("bidder_id", bidderID),
		zap.String("amount", amount.String()),
		zap.Bool("extended", extended),
	)
	return bid, nil
}

// Start promotes a due scheduled auction to active. Scheduler-only.
func (s *Service) Start(ctx context.Context, auctionID int64) error {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("auction not found")
		}
		return errorbank.Internal("failed to load auction", errorbank.WithCause(err))
	}
	if a.Status != entity.AuctionScheduled {
		// Already started by an earlier sweep.
		return nil
	}

	now := s.now()
	a.Status = entity.AuctionActive
	a.UpdatedAt = now

	err = s.store.Transition(ctx, a,
		[]entity.AuctionStatus{entity.AuctionScheduled},
		[]string{"status", "updated_at"},
		[]*entity.OutboxEvent{
			s.notification(event.AudienceBidders, event.AuctionStarted, map[string]any{
				"auction_id": a.ID,
				"lot_number": a.LotNumber,
				"end_at":     a.EndAt,
			}, now),
		})
	if errors.Is(err, repo.ErrStale) {
		return nil
	}
	if err != nil {
		return errorbank.Internal("failed to start auction", errorbank.WithCause(err))
	}
	s.invalidate(ctx, auctionID)
	return nil
}

// Close ends a due auction: a no-bid close cancels it, a below-reserve
// close parks it behind a seller decision, and a clean close records the
// winner and opens the order. Scheduler-only.
func (s *Service) Close(ctx context.Context, auctionID int64) error {
	ctx, span := serviceTracer.Start(ctx, "AuctionService.Close", trace.WithAttributes(attribute.Int64("auction.id", auctionID)))
	defer span.End()

	unlock := s.locks.Lock(auctionID)
	defer unlock()

	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("auction not found")
		}
		return errorbank.Internal("failed to load auction", errorbank.WithCause(err))
	}
	if !a.BiddingOpen() {
		// Already closed by an earlier sweep.
		return nil
	}

	now := s.now()
	if a.EndAt.After(now) {
		return errorbank.BadRequest("auction has not reached its end time")
	}

	running := []entity.AuctionStatus{entity.AuctionActive, entity.AuctionExtended}

	if a.BidCount == 0 {
		a.Status = entity.AuctionCancelled
		a.UpdatedAt = now
		err = s.store.Transition(ctx, a, running,
			[]string{"status", "updated_at"},
			[]*entity.OutboxEvent{
				s.notification(event.AudienceSeller, event.AuctionNoBids, map[string]any{
					"auction_id": a.ID,
					"lot_number": a.LotNumber,
				}, now),
			})
		if errors.Is(err, repo.ErrStale) {
			return nil
		}
		if err != nil {
			return errorbank.Internal("failed to close auction", errorbank.WithCause(err))
		}
		s.invalidate(ctx, auctionID)
		return nil
	}

	top, err := s.ledger.TopTwo(ctx, auctionID)
	if err != nil || len(top) == 0 {
		return errorbank.Internal("failed to read winning bid", errorbank.WithCause(err))
	}
	winning := top[0]

	if a.ReserveSet() && winning.Amount.LessThan(a.ReservePrice.Decimal) {
		a.Status = entity.AuctionEnded
		a.ReserveMet = false
		a.WinningBidID = &winning.ID
		a.UpdatedAt = now
		err = s.store.Transition(ctx, a, running,
			[]string{"status", "reserve_met", "winning_bid_id", "updated_at"},
			[]*entity.OutboxEvent{
				s.notification(event.AudienceSeller, event.ReserveNotMet, map[string]any{
					"auction_id":  a.ID,
					"top_bid":     winning.Amount.String(),
					"decision_by": now.Add(s.decisionWindow),
				}, now),
			})
		if errors.Is(err, repo.ErrStale) {
			return nil
		}
		if err != nil {
			return errorbank.Internal("failed to close auction", errorbank.WithCause(err))
		}
		decision := &entity.SellerDecision{
			AuctionID:    a.ID,
			WinningBidID: winning.ID,
			BidderID:     winning.BidderID,
			Amount:       winning.Amount,
			Status:       entity.DecisionPending,
			ExpiresAt:    now.Add(s.decisionWindow),
			CreatedAt:    now,
		}
		if err := s.store.CreateDecision(ctx, decision, nil); err != nil {
			return errorbank.Internal("failed to record seller decision", errorbank.WithCause(err))
		}
		s.invalidate(ctx, auctionID)
		return nil
	}

	a.Status = entity.AuctionEnded
	a.ReserveMet = true
	a.WinningBidID = &winning.ID
	a.FinalPrice = decimal.NewNullDecimal(winning.Amount)
	a.UpdatedAt = now
	err = s.store.Transition(ctx, a, running,
		[]string{"status", "reserve_met", "winning_bid_id", "final_price", "updated_at"},
		[]*entity.OutboxEvent{
			s.notification(event.AudienceBidders, event.AuctionWon, map[string]any{
				"auction_id":  a.ID,
				"winner_id":   winning.BidderID,
				"final_price": winning.Amount.String(),
			}, now),
		})
	if errors.Is(err, repo.ErrStale) {
		return nil
	}
	if err != nil {
		return errorbank.Internal("failed to close auction", errorbank.WithCause(err))
	}
	s.invalidate(ctx, auctionID)

	if _, err := s.orders.CreateFromAuctionWin(ctx, a, &winning); err != nil {
		// The close is committed; OpenWonOrders re-drives the order.
		s.logger.Error("order creation after auction win failed",
			zap.Int64("auction_id", a.ID), zap.Error(err))
	}
	return nil
}

// AcceptBelowReserve lets the seller take the top bid despite the missed
// reserve, inside the decision window.
func (s *Service) AcceptBelowReserve(ctx context.Context, auctionID, sellerID int64) error {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("auction not found")
		}
		return errorbank.Internal("failed to load auction", errorbank.WithCause(err))
	}
	if a.SellerID != sellerID {
		return errorbank.BadRequest("only the listing owner may decide")
	}

	d, err := s.store.DecisionByAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("no pending reserve decision for this auction")
		}
		return errorbank.Internal("failed to load seller decision", errorbank.WithCause(err))
	}
	if d.Status != entity.DecisionPending {
		return errorbank.Conflict("reserve decision already resolved",
			errorbank.WithDetail("status", string(d.Status)))
	}

	now := s.now()
	d.Status = entity.DecisionAccepted
	d.DecidedAt = &now
	err = s.store.ResolveDecision(ctx, d, []*entity.OutboxEvent{
		s.notification(event.AudienceBidders, event.AuctionWon, map[string]any{
			"auction_id":  a.ID,
			"winner_id":   d.BidderID,
			"final_price": d.Amount.String(),
		}, now),
	})
	if err != nil {
		if errors.Is(err, repo.ErrStale) {
			return errorbank.Conflict("reserve decision already resolved")
		}
		return errorbank.Internal("failed to resolve seller decision", errorbank.WithCause(err))
	}

	a.FinalPrice = decimal.NewNullDecimal(d.Amount)
	a.UpdatedAt = now
	if err := s.store.Transition(ctx, a,
		[]entity.AuctionStatus{entity.AuctionEnded},
		[]string{"final_price", "updated_at"}, nil); err != nil && !errors.Is(err, repo.ErrStale) {
		s.logger.Warn("final price update failed after reserve acceptance",
			zap.Int64("auction_id", a.ID), zap.Error(err))
	}
	s.invalidate(ctx, auctionID)

	winning := &entity.Bid{ID: d.WinningBidID, AuctionID: a.ID, BidderID: d.BidderID, Amount: d.Amount}
	if _, err := s.orders.CreateFromAuctionWin(ctx, a, winning); err != nil {
		// The acceptance is committed; OpenWonOrders re-drives the order.
		s.logger.Error("order creation after reserve acceptance failed",
			zap.Int64("auction_id", a.ID), zap.Error(err))
	}
	return nil
}

// DeclineBelowReserve lets the seller walk away from a below-reserve
// close. The auction stays ended with no sale.
func (s *Service) DeclineBelowReserve(ctx context.Context, auctionID, sellerID int64) error {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	a, err := s.store.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("auction not found")
		}
		return errorbank.Internal("failed to load auction", errorbank.WithCause(err))
	}
	if a.SellerID != sellerID {
		return errorbank.BadRequest("only the listing owner may decide")
	}

	d, err := s.store.DecisionByAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("no pending reserve decision for this auction")
		}
		return errorbank.Internal("failed to load seller decision", errorbank.WithCause(err))
	}
	if d.Status != entity.DecisionPending {
		return errorbank.Conflict("reserve decision already resolved",
			errorbank.WithDetail("status", string(d.Status)))
	}

	now := s.now()
	d.Status = entity.DecisionDeclined
	d.DecidedAt = &now
	err = s.store.ResolveDecision(ctx, d, nil)
	if err != nil {
		if errors.Is(err, repo.ErrStale) {
			return errorbank.Conflict("reserve decision already resolved")
		}
		return errorbank.Internal("failed to resolve seller decision", errorbank.WithCause(err))
	}
	return nil
}

// StartDue sweeps scheduled auctions whose start time elapsed. A failure
// on one auction never interrupts the rest of the sweep.
func (s *Service) StartDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DueToStart(ctx, now, s.sweepLimit)
	if err != nil {
		return 0, err
	}
	started := 0
	for i := range due {
		if err := s.Start(ctx, due[i].ID); err != nil {
			s.logger.Error("auction start sweep failed", zap.Int64("auction_id", due[i].ID), zap.Error(err))
			continue
		}
		started++
	}
	return started, nil
}

// CloseDue sweeps running auctions whose end time elapsed.
func (s *Service) CloseDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DueToClose(ctx, now, s.sweepLimit)
	if err != nil {
		return 0, err
	}
	closed := 0
	for i := range due {
		if err := s.Close(ctx, due[i].ID); err != nil {
			s.logger.Error("auction close sweep failed", zap.Int64("auction_id", due[i].ID), zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}

// OpenWonOrders sweeps won auctions that have no order yet. Close and
// AcceptBelowReserve open the order inline; this pass re-drives the ones
// lost to a crash or a failed order write after the close committed.
func (s *Service) OpenWonOrders(ctx context.Context, _ time.Time) (int, error) {
	due, err := s.store.WonAwaitingOrder(ctx, s.sweepLimit)
	if err != nil {
		return 0, err
	}
	opened := 0
	for i := range due {
		if err := s.openWonOrder(ctx, &due[i]); err != nil {
			s.logger.Error("won-order sweep failed", zap.Int64("auction_id", due[i].ID), zap.Error(err))
			continue
		}
		opened++
	}
	return opened, nil
}

func (s *Service) openWonOrder(ctx context.Context, a *entity.Auction) error {
	unlock := s.locks.Lock(a.ID)
	defer unlock()

	top, err := s.ledger.TopTwo(ctx, a.ID)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		return errorbank.Invariant("won auction has an empty bid ledger")
	}
	winning := top[0]
	_, err = s.orders.CreateFromAuctionWin(ctx, a, &winning)
	return err
}

// ExpireDecisions sweeps pending seller decisions past their window; an
// undecided reserve-not-met close expires with no sale.
func (s *Service) ExpireDecisions(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DueDecisions(ctx, now, s.sweepLimit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range due {
		d := due[i]
		d.Status = entity.DecisionExpired
		at := now
		d.DecidedAt = &at
		if err := s.store.ResolveDecision(ctx, &d, nil); err != nil {
			if errors.Is(err, repo.ErrStale) {
				continue
			}
			s.logger.Error("decision expiry sweep failed", zap.Int64("auction_id", d.AuctionID), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) notification(audience, eventType string, payload map[string]any, at time.Time) *entity.OutboxEvent {
	ev, err := event.NewNotificationEvent(s.notificationsTopic, audience, eventType, payload, at)
	if err != nil {
		s.logger.Error("marshal notification", zap.String("event_type", eventType), zap.Error(err))
		return nil
	}
	return ev
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("auctions:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Auction, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var a entity.Auction
	if err := json.Unmarshal(bytes, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) storeInCache(ctx context.Context, a *entity.Auction) error {
	if s.cache == nil || a == nil {
		return nil
	}
	bytes, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(a.ID), bytes, s.cacheTTL)
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("auction cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}
