package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/entity"
	"github.com/agritrade/stockyard/internal/event"
	"github.com/agritrade/stockyard/internal/gateway"
	repo "github.com/agritrade/stockyard/internal/repository/order"
	"github.com/agritrade/stockyard/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/agritrade/stockyard/service/order")

// Store is the persistence surface the lifecycle manager drives.
type Store interface {
	Create(ctx context.Context, o *entity.Order, events []*entity.OutboxEvent) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	ByAuction(ctx context.Context, auctionID int64) (*entity.Order, error)
	Transition(ctx context.Context, o *entity.Order, from []entity.OrderStatus, cols []string, events []*entity.OutboxEvent) error
	CaptureDeposit(ctx context.Context, o *entity.Order, escrow *entity.EscrowPayment, cols []string, events []*entity.OutboxEvent) error
	Settle(ctx context.Context, o *entity.Order, from []entity.OrderStatus, orderCols []string, escrow *entity.EscrowPayment, escrowCols []string, events []*entity.OutboxEvent) error
	EscrowByOrder(ctx context.Context, orderID int64) (*entity.EscrowPayment, error)
	DepositExpired(ctx context.Context, now time.Time, limit int) ([]entity.Order, error)
	ConfirmOverdue(ctx context.Context, now time.Time, limit int) ([]entity.Order, error)
	AutoCompletable(ctx context.Context, cutoff time.Time, limit int) ([]entity.Order, error)
}

// BidLedger reads the originating auction's ledger for runner-up re-offers.
type BidLedger interface {
	TopTwo(ctx context.Context, auctionID int64) ([]entity.Bid, error)
}

// Service owns the post-auction order state machine: deposit, confirmation,
// pickup and weight verification, transit, delivery, disputes, completion,
// and escrow release.
type Service struct {
	store  Store
	ledger BidLedger
	payout gateway.Payout
	logger *zap.Logger

	now func() time.Time

	depositWindow      time.Duration
	confirmWindow      time.Duration
	autoCompleteAfter  time.Duration
	depositRatio       decimal.Decimal
	feePercent         decimal.Decimal
	shippingFee        decimal.Decimal
	varianceThreshold  decimal.Decimal
	notificationsTopic string
	sweepLimit         int
}

// NewService wires a new Service instance.
func NewService(store Store, ledger BidLedger, payout gateway.Payout, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{
		store:              store,
		ledger:             ledger,
		payout:             payout,
		logger:             logger,
		now:                func() time.Time { return time.Now().UTC() },
		depositWindow:      cfg.Order.DepositWindow,
		confirmWindow:      cfg.Order.ConfirmationWindow,
		autoCompleteAfter:  cfg.Order.AutoCompleteAfter,
		depositRatio:       decimal.NewFromFloat(cfg.Order.DepositRatio),
		feePercent:         decimal.NewFromFloat(cfg.Order.PlatformFeePercent),
		shippingFee:        decimal.NewFromFloat(cfg.Order.ShippingFlatFee),
		varianceThreshold:  decimal.NewFromFloat(cfg.Order.VarianceThreshold),
		notificationsTopic: cfg.Messaging.Kafka.NotificationsTopic,
		sweepLimit:         cfg.Scheduler.SweepLimit,
	}
}

// Get retrieves an order by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return o, nil
}

// CreateFromAuctionWin opens an order for the winning bidder. The unit
// price is the final auction price per kilogram of declared lot weight.
// Idempotent per auction: re-driving the same win hands back the order
// that already exists.
func (s *Service) CreateFromAuctionWin(ctx context.Context, a *entity.Auction, winning *entity.Bid) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreateFromAuctionWin", trace.WithAttributes(attribute.Int64("auction.id", a.ID)))
	defer span.End()

	if winning == nil {
		return nil, errorbank.BadRequest("winning bid is required")
	}

	if existing, err := s.store.ByAuction(ctx, a.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.Internal("failed to check for an existing order", errorbank.WithCause(err))
	}

	unitPrice := winning.Amount
	if a.LotWeightKg.IsPositive() {
		unitPrice = winning.Amount.Div(a.LotWeightKg).Round(2)
	}
	auctionID := a.ID
	o := s.buildOrder(entity.SourceAuctionWin, &auctionID, a.SellerID, winning.BidderID, 1, a.LotWeightKg, unitPrice, winning.Amount)

	if err := s.persistNew(ctx, o); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}
	return o, nil
}

// BuyNowParams describes a direct fixed-price purchase.
type BuyNowParams struct {
	SellerID         int64
	BuyerID          int64
	Quantity         int
	DeclaredWeightKg decimal.Decimal
	UnitPrice        decimal.Decimal
}

// CreateBuyNow opens an order for a direct purchase, entering the same
// state machine at pending_deposit.
func (s *Service) CreateBuyNow(ctx context.Context, p BuyNowParams) (*entity.Order, error) {
	if p.SellerID == 0 || p.BuyerID == 0 {
		return nil, errorbank.BadRequest("seller and buyer are required")
	}
	if p.SellerID == p.BuyerID {
		return nil, errorbank.BadRequest("buyer may not purchase their own listing")
	}
	if p.Quantity <= 0 {
		p.Quantity = 1
	}
	if p.UnitPrice.LessThanOrEqual(decimal.Zero) || p.DeclaredWeightKg.LessThanOrEqual(decimal.Zero) {
		return nil, errorbank.BadRequest("unit price and declared weight must be positive")
	}

	subtotal := p.UnitPrice.Mul(p.DeclaredWeightKg).Mul(decimal.NewFromInt(int64(p.Quantity))).Round(2)
	o := s.buildOrder(entity.SourceBuyNow, nil, p.SellerID, p.BuyerID, p.Quantity, p.DeclaredWeightKg, p.UnitPrice, subtotal)

	if err := s.persistNew(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) buildOrder(source entity.OrderSource, auctionID *int64, sellerID, buyerID int64, qty int, declaredWeight, unitPrice, subtotal decimal.Decimal) *entity.Order {
	now := s.now()
	fee := subtotal.Mul(s.feePercent).Div(decimal.NewFromInt(100)).Round(2)
	total := subtotal.Add(fee).Add(s.shippingFee)
	deposit := total.Mul(s.depositRatio).Round(2)

	return &entity.Order{
		Number:           fmt.Sprintf("SO-%s", uuid.NewString()),
		Source:           source,
		AuctionID:        auctionID,
		SellerID:         sellerID,
		BuyerID:          buyerID,
		Quantity:         qty,
		DeclaredWeightKg: declaredWeight,
		UnitPrice:        unitPrice,
		Subtotal:         subtotal,
		PlatformFee:      fee,
		ShippingFee:      s.shippingFee,
		Total:            total,
		DepositAmount:    deposit,
		Status:           entity.OrderPendingDeposit,
		PaymentStatus:    entity.PaymentUnpaid,
		DepositDueAt:     now.Add(s.depositWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *Service) persistNew(ctx context.Context, o *entity.Order) error {
	events := []*entity.OutboxEvent{
		s.notification(event.AudienceBuyer, event.OrderCreated, map[string]any{
			"order_number":   o.Number,
			"total":          o.Total.String(),
			"deposit_amount": o.DepositAmount.String(),
			"deposit_due_at": o.DepositDueAt,
		}, o.CreatedAt),
	}
	if err := s.store.Create(ctx, o, events); err != nil {
		return errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	s.logger.Info("order created",
		zap.String("number", o.Number),
		zap.String("source", string(o.Source)),
		zap.Int64("seller_id", o.SellerID),
		zap.Int64("buyer_id", o.BuyerID),
	)
	return nil
}

// OnDepositCaptured handles the payment collaborator's capture callback.
// Idempotent under duplicate delivery: a replayed payment id is a no-op
// success, and the order transition is guarded on pending_deposit.
func (s *Service) OnDepositCaptured(ctx context.Context, orderID int64, paymentID string, amount decimal.Decimal) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.OnDepositCaptured", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("payment.id", paymentID),
	))
	defer span.End()

	if paymentID == "" {
		return errorbank.BadRequest("payment id is required")
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != entity.OrderPendingDeposit {
		// Duplicate delivery of the capture that landed first is a no-op;
		// a different payment against a settled order is not.
		if esc, eerr := s.store.EscrowByOrder(ctx, orderID); eerr == nil && esc.PaymentID == paymentID {
			return nil
		}
		return errorbank.Conflict("order is not awaiting a deposit",
			errorbank.WithDetail("status", string(o.Status)))
	}
	if amount.LessThan(o.DepositAmount) {
		return errorbank.BadRequest("captured amount is below the required deposit",
			errorbank.WithDetail("required", o.DepositAmount.String()))
	}

	now := s.now()
	confirmDue := now.Add(s.confirmWindow)
	o.Status = entity.OrderDepositPaid
	o.PaymentStatus = entity.PaymentDepositPaid
	o.ConfirmDueAt = &confirmDue
	o.UpdatedAt = now

	escrow := &entity.EscrowPayment{
		OrderID:    o.ID,
		PaymentID:  paymentID,
		Amount:     amount,
		CapturedAt: now,
		CreatedAt:  now,
	}

	err = s.store.CaptureDeposit(ctx, o, escrow,
		[]string{"status", "payment_status", "confirm_due_at", "updated_at"},
		[]*entity.OutboxEvent{
			s.notification(event.AudienceSeller, event.OrderDepositPaid, map[string]any{
				"order_number": o.Number,
				"amount":       amount.String(),
			}, now),
		})
	if errors.Is(err, repo.ErrDuplicatePayment) {
		return nil
	}
	if errors.Is(err, repo.ErrStale) {
		return errorbank.Conflict("order is not awaiting a deposit")
	}
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to record deposit", errorbank.WithCause(err))
	}
	return nil
}

// Confirm is the seller's acknowledgment of a paid order.
func (s *Service) Confirm(ctx context.Context, orderID, sellerID int64) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.SellerID != sellerID {
		return errorbank.BadRequest("only the seller may confirm the order")
	}
	now := s.now()
	o.Status = entity.OrderConfirmed
	o.ConfirmedAt = &now
	o.UpdatedAt = now
	return s.transition(ctx, o,
		[]entity.OrderStatus{entity.OrderDepositPaid},
		[]string{"status", "confirmed_at", "updated_at"}, nil,
		"order cannot be confirmed in its current state")
}

// MarkProcessing moves a confirmed order into preparation.
func (s *Service) MarkProcessing(ctx context.Context, orderID int64) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	o.Status = entity.OrderProcessing
	o.UpdatedAt = s.now()
	return s.transition(ctx, o,
		[]entity.OrderStatus{entity.OrderConfirmed},
		[]string{"status", "updated_at"}, nil,
		"order is not confirmed")
}

// MarkReadyForPickup flags the lot as staged for collection.
func (s *Service) MarkReadyForPickup(ctx context.Context, orderID int64) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	o.Status = entity.OrderReadyForPickup
	o.UpdatedAt = s.now()
	return s.transition(ctx, o,
		[]entity.OrderStatus{entity.OrderProcessing},
		[]string{"status", "updated_at"}, nil,
		"order is not in processing")
}

// RecordPickupWeight verifies the lot at collection. The order moves to
// in_transit unconditionally; a variance above the threshold opens a
// dispute flag that rides along, because the goods keep moving while the
// money question is adjudicated.
func (s *Service) RecordPickupWeight(ctx context.Context, orderID int64, actualWeight decimal.Decimal, photos []string) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.RecordPickupWeight", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if actualWeight.LessThanOrEqual(decimal.Zero) {
		return errorbank.BadRequest("actual weight must be positive")
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}

	now := s.now()
	variance := entity.WeightVariancePct(o.DeclaredWeightKg, actualWeight)
	final := o.UnitPrice.Mul(actualWeight).Mul(decimal.NewFromInt(int64(o.Quantity))).Round(2)

	o.Status = entity.OrderInTransit
	o.ActualWeightKg = decimal.NewNullDecimal(actualWeight)
	o.VariancePct = decimal.NewNullDecimal(variance)
	o.FinalAmount = decimal.NewNullDecimal(final)
	o.PickupPhotos = photos
	o.PickedUpAt = &now
	o.UpdatedAt = now

	var events []*entity.OutboxEvent
	if variance.GreaterThan(s.varianceThreshold) {
		o.DisputeOpen = true
		o.DisputeReason = fmt.Sprintf("weight variance %s%% exceeds %s%%", variance, s.varianceThreshold)
		events = append(events, s.notification(event.AudienceOps, event.WeightDiscrepancy, map[string]any{
			"order_number": o.Number,
			"declared_kg":  o.DeclaredWeightKg.String(),
			"actual_kg":    actualWeight.String(),
			"variance_pct": variance.String(),
		}, now))
	}

	return s.transition(ctx, o,
		[]entity.OrderStatus{entity.OrderReadyForPickup},
		[]string{"status", "actual_weight_kg", "variance_pct", "final_amount", "pickup_photos", "picked_up_at", "dispute_open", "dispute_reason", "updated_at"},
		events,
		"order is not ready for pickup")
}

// MarkDelivered stamps arrival. Completion is never direct: the scheduler
// promotes delivered orders after the dispute-free window.
func (s *Service) MarkDelivered(ctx context.Context, orderID int64) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	now := s.now()
	o.Status = entity.OrderDelivered
	o.DeliveredAt = &now
	o.UpdatedAt = now
	return s.transition(ctx, o,
		[]entity.OrderStatus{entity.OrderInTransit},
		[]string{"status", "delivered_at", "updated_at"}, nil,
		"order is not in transit")
}

// OpenDispute records a buyer complaint. A delivered order moves to
// disputed; an in-transit order only carries the flag.
func (s *Service) OpenDispute(ctx context.Context, orderID int64, reason string) error {
	if reason == "" {
		return errorbank.BadRequest("dispute reason is required")
	}
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != entity.OrderInTransit && o.Status != entity.OrderDelivered {
		return errorbank.BadRequest("disputes may only be opened in transit or after delivery",
			errorbank.WithDetail("status", string(o.Status)))
	}
	if o.DisputeOpen {
		return errorbank.Conflict("a dispute is already open")
	}

	now := s.now()
	from := []entity.OrderStatus{o.Status}
	if o.Status == entity.OrderDelivered {
		o.Status = entity.OrderDisputed
	}
	o.DisputeOpen = true
	o.DisputeReason = reason
	o.UpdatedAt = now
	return s.transition(ctx, o, from,
		[]string{"status", "dispute_open", "dispute_reason", "updated_at"}, nil,
		"order state changed while opening the dispute")
}

// DisputeResolution is the mediator's verdict.
type DisputeResolution string

const (
	ResolutionComplete DisputeResolution = "complete"
	ResolutionCancel   DisputeResolution = "cancel"
)

// ResolveDispute applies an explicit mediation outcome. Settlement amounts
// are decided by humans, never computed here.
func (s *Service) ResolveDispute(ctx context.Context, orderID int64, resolution DisputeResolution, settlement decimal.Decimal) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !o.DisputeOpen {
		return errorbank.BadRequest("no open dispute on this order")
	}

	switch resolution {
	case ResolutionComplete:
		if settlement.LessThanOrEqual(decimal.Zero) {
			return errorbank.BadRequest("settlement amount must be positive")
		}
		o.FinalAmount = decimal.NewNullDecimal(settlement)
		return s.complete(ctx, o, []entity.OrderStatus{entity.OrderDelivered, entity.OrderDisputed, entity.OrderInTransit}, true)
	case ResolutionCancel:
		return s.cancel(ctx, o,
			[]entity.OrderStatus{entity.OrderInTransit, entity.OrderDelivered, entity.OrderDisputed},
			"dispute resolved against the sale")
	default:
		return errorbank.BadRequest("unknown resolution",
			errorbank.WithDetail("resolution", string(resolution)))
	}
}

// Complete promotes a delivered, dispute-free order and releases escrow.
// Invoked by the scheduler; idempotent because both the status transition
// and the escrow release flag are guarded.
func (s *Service) Complete(ctx context.Context, orderID int64) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.DisputeOpen {
		return errorbank.Conflict("an open dispute suppresses completion")
	}
	return s.complete(ctx, o, []entity.OrderStatus{entity.OrderDelivered}, false)
}

func (s *Service) complete(ctx context.Context, o *entity.Order, from []entity.OrderStatus, clearDispute bool) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.complete", trace.WithAttributes(attribute.Int64("order.id", o.ID)))
	defer span.End()

	escrow, err := s.store.EscrowByOrder(ctx, o.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.Invariant("completing an order with no escrow payment")
		}
		return errorbank.Internal("failed to load escrow", errorbank.WithCause(err))
	}
	if escrow.Settled() {
		// Release happens at most once.
		return nil
	}

	now := s.now()
	final := o.Total
	if o.FinalAmount.Valid {
		final = o.FinalAmount.Decimal
	}
	fee := final.Mul(s.feePercent).Div(decimal.NewFromInt(100)).Round(2)
	release := final.Sub(fee)

	o.Status = entity.OrderCompleted
	o.PaymentStatus = entity.PaymentPaidOut
	o.FinalAmount = decimal.NewNullDecimal(final)
	o.CompletedAt = &now
	o.UpdatedAt = now
	orderCols := []string{"status", "payment_status", "final_amount", "completed_at", "updated_at"}
	if clearDispute {
		o.DisputeOpen = false
		orderCols = append(orderCols, "dispute_open")
	}

	escrow.Released = true
	escrow.ReleasedAt = &now
	escrow.ReleasedTo = &o.SellerID
	escrow.ReleasedAmt = decimal.NewNullDecimal(release)

	err = s.store.Settle(ctx, o, from, orderCols,
		escrow, []string{"released", "released_at", "released_to", "released_amount"},
		[]*entity.OutboxEvent{
			s.notification(event.AudienceBuyer, event.OrderCompleted, map[string]any{
				"order_number": o.Number,
				"final_amount": final.String(),
			}, now),
		})
	if errors.Is(err, repo.ErrStale) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to complete order", errorbank.WithCause(err))
	}

	if err := s.payout.Send(ctx, o.SellerID, release); err != nil {
		// The release is recorded; payout delivery is the gateway's problem
		// to retry out of band.
		s.logger.Error("escrow payout failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	s.logger.Info("order completed",
		zap.String("number", o.Number),
		zap.String("released", release.String()),
	)
	return nil
}

// Cancel aborts an order that has not left the yard.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return errorbank.Invariant("cancel attempted on a terminal order",
			errorbank.WithDetail("status", string(o.Status)))
	}
	if !o.Status.Cancellable() {
		return errorbank.BadRequest("order can no longer be cancelled",
			errorbank.WithDetail("status", string(o.Status)))
	}
	statuses := []entity.OrderStatus{
		entity.OrderPendingDeposit, entity.OrderDepositPaid, entity.OrderConfirmed,
		entity.OrderProcessing, entity.OrderReadyForPickup,
	}
	return s.cancel(ctx, o, statuses, reason)
}

func (s *Service) cancel(ctx context.Context, o *entity.Order, from []entity.OrderStatus, reason string) error {
	now := s.now()
	o.Status = entity.OrderCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	orderCols := []string{"status", "cancel_reason", "cancelled_at", "updated_at"}

	var escrow *entity.EscrowPayment
	var escrowCols []string
	if e, err := s.store.EscrowByOrder(ctx, o.ID); err == nil && !e.Settled() {
		e.Refunded = true
		e.RefundedAt = &now
		escrow = e
		escrowCols = []string{"refunded", "refunded_at"}
		o.PaymentStatus = entity.PaymentRefunded
		orderCols = append(orderCols, "payment_status")
	} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return errorbank.Internal("failed to load escrow", errorbank.WithCause(err))
	}
	if o.DisputeOpen {
		o.DisputeOpen = false
		orderCols = append(orderCols, "dispute_open")
	}

	err := s.store.Settle(ctx, o, from, orderCols, escrow, escrowCols, nil)
	if errors.Is(err, repo.ErrStale) {
		return nil
	}
	if err != nil {
		return errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
	}
	s.logger.Info("order cancelled", zap.String("number", o.Number), zap.String("reason", reason))
	return nil
}

// CancelDepositExpired sweeps orders whose deposit window lapsed, cancels
// them, and re-offers the lot to the runner-up bidder. The guarded cancel
// means only one sweep ever performs the transfer.
func (s *Service) CancelDepositExpired(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DepositExpired(ctx, now, s.sweepLimit)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for i := range due {
		o := due[i]
		o.Status = entity.OrderCancelled
		o.CancelReason = "deposit window elapsed"
		at := now
		o.CancelledAt = &at
		o.UpdatedAt = now
		err := s.store.Transition(ctx, &o,
			[]entity.OrderStatus{entity.OrderPendingDeposit},
			[]string{"status", "cancel_reason", "cancelled_at", "updated_at"}, nil)
		if errors.Is(err, repo.ErrStale) {
			continue
		}
		if err != nil {
			s.logger.Error("deposit expiry sweep failed", zap.Int64("order_id", o.ID), zap.Error(err))
			continue
		}
		cancelled++

		if o.Source == entity.SourceAuctionWin && o.AuctionID != nil {
			if err := s.transferToNextBidder(ctx, &o); err != nil {
				s.logger.Error("transfer to next bidder failed", zap.Int64("order_id", o.ID), zap.Error(err))
			}
		}
	}
	return cancelled, nil
}

// transferToNextBidder re-offers the lot to the second-highest bidder on
// the originating auction, at their own bid amount.
func (s *Service) transferToNextBidder(ctx context.Context, cancelled *entity.Order) error {
	top, err := s.ledger.TopTwo(ctx, *cancelled.AuctionID)
	if err != nil {
		return err
	}
	if len(top) < 2 {
		return nil
	}
	runnerUp := top[1]

	unitPrice := cancelled.UnitPrice
	if cancelled.DeclaredWeightKg.IsPositive() {
		unitPrice = runnerUp.Amount.Div(cancelled.DeclaredWeightKg).Round(2)
	}
	o := s.buildOrder(entity.SourceAuctionWin, cancelled.AuctionID, cancelled.SellerID,
		runnerUp.BidderID, cancelled.Quantity, cancelled.DeclaredWeightKg, unitPrice, runnerUp.Amount)

	if err := s.persistNew(ctx, o); err != nil {
		return err
	}
	s.logger.Info("lot re-offered to runner-up",
		zap.Int64("auction_id", *cancelled.AuctionID),
		zap.Int64("bidder_id", runnerUp.BidderID),
		zap.String("amount", runnerUp.Amount.String()),
	)
	return nil
}

// EscalateUnconfirmed sweeps paid orders the seller ignored past the
// confirmation window and pings operations.
func (s *Service) EscalateUnconfirmed(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ConfirmOverdue(ctx, now, s.sweepLimit)
	if err != nil {
		return 0, err
	}
	escalated := 0
	for i := range due {
		o := due[i]
		at := now
		o.EscalatedAt = &at
		o.UpdatedAt = now
		err := s.store.Transition(ctx, &o,
			[]entity.OrderStatus{entity.OrderDepositPaid},
			[]string{"escalated_at", "updated_at"},
			[]*entity.OutboxEvent{
				s.notification(event.AudienceOps, event.OrderDepositPaid, map[string]any{
					"order_number": o.Number,
					"overdue":      true,
				}, now),
			})
		if errors.Is(err, repo.ErrStale) {
			continue
		}
		if err != nil {
			s.logger.Error("confirmation escalation sweep failed", zap.Int64("order_id", o.ID), zap.Error(err))
			continue
		}
		escalated++
	}
	return escalated, nil
}

// AutoCompleteDelivered sweeps delivered, dispute-free orders past the
// completion window. This is the only place time substitutes for an
// explicit decision, and an open dispute suppresses it unconditionally.
func (s *Service) AutoCompleteDelivered(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.autoCompleteAfter)
	due, err := s.store.AutoCompletable(ctx, cutoff, s.sweepLimit)
	if err != nil {
		return 0, err
	}
	completed := 0
	for i := range due {
		if err := s.Complete(ctx, due[i].ID); err != nil {
			s.logger.Error("auto-complete sweep failed", zap.Int64("order_id", due[i].ID), zap.Error(err))
			continue
		}
		completed++
	}
	return completed, nil
}

func (s *Service) transition(ctx context.Context, o *entity.Order, from []entity.OrderStatus, cols []string, events []*entity.OutboxEvent, conflictMsg string) error {
	err := s.store.Transition(ctx, o, from, cols, events)
	if errors.Is(err, repo.ErrStale) {
		return errorbank.Conflict(conflictMsg)
	}
	if err != nil {
		return errorbank.Internal("order transition failed", errorbank.WithCause(err))
	}
	return nil
}

func (s *Service) notification(audience, eventType string, payload map[string]any, at time.Time) *entity.OutboxEvent {
	ev, err := event.NewNotificationEvent(s.notificationsTopic, audience, eventType, payload, at)
	if err != nil {
		s.logger.Error("marshal notification", zap.String("event_type", eventType), zap.Error(err))
		return nil
	}
	return ev
}
