package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/entity"
	repo "github.com/agritrade/stockyard/internal/repository/order"
	"github.com/agritrade/stockyard/pkg/errorbank"
)

// fakeStore mirrors the repository's guard semantics in memory: guarded
// transitions fail with ErrStale when the stored state left the from set,
// a replayed payment id fails with ErrDuplicatePayment, and settlement is
// blocked once the escrow flags are set.
type fakeStore struct {
	mu      sync.Mutex
	orders  map[int64]*entity.Order
	escrows map[int64]*entity.EscrowPayment
	byPay   map[string]int64
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:  make(map[int64]*entity.Order),
		escrows: make(map[int64]*entity.EscrowPayment),
		byPay:   make(map[string]int64),
		nextID:  1,
	}
}

func (f *fakeStore) put(o *entity.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
}

func (f *fakeStore) Create(_ context.Context, o *entity.Order, _ []*entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.nextID
	f.nextID++
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ByAuction(_ context.Context, auctionID int64) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first *entity.Order
	for _, o := range f.orders {
		if o.AuctionID == nil || *o.AuctionID != auctionID {
			continue
		}
		if first == nil || o.ID < first.ID {
			first = o
		}
	}
	if first == nil {
		return nil, repo.ErrNotFound
	}
	cp := *first
	return &cp, nil
}

func (f *fakeStore) Transition(_ context.Context, o *entity.Order, from []entity.OrderStatus, _ []string, _ []*entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.orders[o.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if !statusIn(stored.Status, from) {
		return repo.ErrStale
	}
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeStore) CaptureDeposit(_ context.Context, o *entity.Order, escrow *entity.EscrowPayment, _ []string, _ []*entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.byPay[escrow.PaymentID]; dup {
		return repo.ErrDuplicatePayment
	}
	stored, ok := f.orders[o.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Status != entity.OrderPendingDeposit {
		return repo.ErrStale
	}
	escrow.ID = f.nextID
	f.nextID++
	f.byPay[escrow.PaymentID] = escrow.ID
	ecp := *escrow
	f.escrows[o.ID] = &ecp
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeStore) Settle(_ context.Context, o *entity.Order, from []entity.OrderStatus, _ []string, escrow *entity.EscrowPayment, _ []string, _ []*entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.orders[o.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if !statusIn(stored.Status, from) {
		return repo.ErrStale
	}
	if escrow != nil {
		se, ok := f.escrows[o.ID]
		if !ok || se.Settled() {
			return repo.ErrStale
		}
		ecp := *escrow
		f.escrows[o.ID] = &ecp
	}
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeStore) EscrowByOrder(_ context.Context, orderID int64) (*entity.EscrowPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.escrows[orderID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) DepositExpired(_ context.Context, now time.Time, _ int) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.Order
	for _, o := range f.orders {
		if o.Status == entity.OrderPendingDeposit && !o.DepositDueAt.After(now) {
			due = append(due, *o)
		}
	}
	return due, nil
}

func (f *fakeStore) ConfirmOverdue(_ context.Context, now time.Time, _ int) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.Order
	for _, o := range f.orders {
		if o.Status == entity.OrderDepositPaid && o.ConfirmDueAt != nil && !o.ConfirmDueAt.After(now) && o.EscalatedAt == nil {
			due = append(due, *o)
		}
	}
	return due, nil
}

func (f *fakeStore) AutoCompletable(_ context.Context, cutoff time.Time, _ int) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.Order
	for _, o := range f.orders {
		if o.Status == entity.OrderDelivered && !o.DisputeOpen && o.DeliveredAt != nil && !o.DeliveredAt.After(cutoff) {
			due = append(due, *o)
		}
	}
	return due, nil
}

func statusIn(s entity.OrderStatus, set []entity.OrderStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

type fakeLedger struct {
	bids []entity.Bid
}

func (l *fakeLedger) TopTwo(context.Context, int64) ([]entity.Bid, error) {
	return l.bids, nil
}

type fakePayout struct {
	mu    sync.Mutex
	sends []decimal.Decimal
}

func (p *fakePayout) Send(_ context.Context, _ int64, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, amount)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Order: config.Order{
			DepositWindow:      24 * time.Hour,
			ConfirmationWindow: 24 * time.Hour,
			AutoCompleteAfter:  48 * time.Hour,
			DepositRatio:       0.2,
			PlatformFeePercent: 5,
			VarianceThreshold:  5,
		},
		Scheduler: config.Scheduler{SweepLimit: 200},
		Messaging: config.Messaging{
			Kafka: config.Kafka{NotificationsTopic: "stockyard.notifications"},
		},
	}
}

func newTestService(t *testing.T, store *fakeStore, ledger *fakeLedger) (*Service, *fakePayout) {
	t.Helper()
	if ledger == nil {
		ledger = &fakeLedger{}
	}
	payout := &fakePayout{}
	svc := NewService(store, ledger, payout, testConfig(), zap.NewNop())
	return svc, payout
}

func TestCreateFromAuctionWin_PricesPerKilogram(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	a := &entity.Auction{ID: 5, SellerID: 10, LotWeightKg: decimal.NewFromInt(400)}
	winning := &entity.Bid{ID: 9, BidderID: 20, Amount: decimal.NewFromInt(2000)}

	o, err := svc.CreateFromAuctionWin(context.Background(), a, winning)
	assert.NoError(t, err)

	check.Equal(t, entity.OrderPendingDeposit, o.Status)
	check.Equal(t, entity.SourceAuctionWin, o.Source)
	check.True(t, o.UnitPrice.Equal(decimal.NewFromInt(5)))
	check.True(t, o.Subtotal.Equal(decimal.NewFromInt(2000)))
	// 5% platform fee on 2000.
	check.True(t, o.PlatformFee.Equal(decimal.NewFromInt(100)))
	check.True(t, o.Total.Equal(decimal.NewFromInt(2100)))
	// 20% deposit on the total.
	check.True(t, o.DepositAmount.Equal(decimal.NewFromInt(420)))
}

func TestCreateFromAuctionWin_ReplayReturnsExistingOrder(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	a := &entity.Auction{ID: 5, SellerID: 10, LotWeightKg: decimal.NewFromInt(400)}
	winning := &entity.Bid{ID: 9, BidderID: 20, Amount: decimal.NewFromInt(2000)}

	first, err := svc.CreateFromAuctionWin(context.Background(), a, winning)
	assert.NoError(t, err)

	// Re-driving the same win hands back the existing order untouched.
	again, err := svc.CreateFromAuctionWin(context.Background(), a, winning)
	assert.NoError(t, err)
	check.Equal(t, first.ID, again.ID)
	check.Equal(t, first.Number, again.Number)
	check.Equal(t, 1, len(store.orders))
}

func TestOnDepositCaptured_IdempotentUnderReplay(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	a := &entity.Auction{ID: 5, SellerID: 10, LotWeightKg: decimal.NewFromInt(400)}
	winning := &entity.Bid{ID: 9, BidderID: 20, Amount: decimal.NewFromInt(2000)}
	o, err := svc.CreateFromAuctionWin(context.Background(), a, winning)
	assert.NoError(t, err)

	assert.NoError(t, svc.OnDepositCaptured(context.Background(), o.ID, "pay_123", decimal.NewFromInt(420)))

	got, err := svc.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	check.Equal(t, entity.OrderDepositPaid, got.Status)
	check.Equal(t, entity.PaymentDepositPaid, got.PaymentStatus)

	// Replayed webhook: no error, no second escrow.
	assert.NoError(t, svc.OnDepositCaptured(context.Background(), o.ID, "pay_123", decimal.NewFromInt(420)))
	check.Equal(t, 1, len(store.escrows))

	// A different payment against the settled deposit conflicts.
	err = svc.OnDepositCaptured(context.Background(), o.ID, "pay_456", decimal.NewFromInt(420))
	assert.Error(t, err)
	check.Equal(t, errorbank.KindConflict, errorbank.KindOf(err))
	check.Equal(t, 1, len(store.escrows))
}

func TestOnDepositCaptured_RejectsShortAmount(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	a := &entity.Auction{ID: 5, SellerID: 10, LotWeightKg: decimal.NewFromInt(400)}
	winning := &entity.Bid{ID: 9, BidderID: 20, Amount: decimal.NewFromInt(2000)}
	o, err := svc.CreateFromAuctionWin(context.Background(), a, winning)
	assert.NoError(t, err)

	err = svc.OnDepositCaptured(context.Background(), o.ID, "pay_1", decimal.NewFromInt(100))
	assert.Error(t, err)
	check.Equal(t, errorbank.KindBadRequest, errorbank.KindOf(err))
}

func depositPaidOrder(t *testing.T, svc *Service, store *fakeStore) *entity.Order {
	t.Helper()
	a := &entity.Auction{ID: 5, SellerID: 10, LotWeightKg: decimal.NewFromInt(400)}
	winning := &entity.Bid{ID: 9, BidderID: 20, Amount: decimal.NewFromInt(2000)}
	o, err := svc.CreateFromAuctionWin(context.Background(), a, winning)
	assert.NoError(t, err)
	assert.NoError(t, svc.OnDepositCaptured(context.Background(), o.ID, "pay_123", o.DepositAmount))
	got, err := svc.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	return got
}

func advance(t *testing.T, svc *Service, store *fakeStore, o *entity.Order, to entity.OrderStatus) *entity.Order {
	t.Helper()
	ctx := context.Background()
	switch to {
	case entity.OrderConfirmed:
		assert.NoError(t, svc.Confirm(ctx, o.ID, o.SellerID))
	case entity.OrderProcessing:
		assert.NoError(t, svc.MarkProcessing(ctx, o.ID))
	case entity.OrderReadyForPickup:
		assert.NoError(t, svc.MarkReadyForPickup(ctx, o.ID))
	case entity.OrderInTransit:
		assert.NoError(t, svc.RecordPickupWeight(ctx, o.ID, o.DeclaredWeightKg, nil))
	case entity.OrderDelivered:
		assert.NoError(t, svc.MarkDelivered(ctx, o.ID))
	}
	got, err := svc.Get(ctx, o.ID)
	assert.NoError(t, err)
	assert.Equal(t, to, got.Status)
	return got
}

func TestLifecycle_HappyPathReleasesEscrowOnce(t *testing.T) {
	store := newFakeStore()
	svc, payout := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	o = advance(t, svc, store, o, entity.OrderConfirmed)
	o = advance(t, svc, store, o, entity.OrderProcessing)
	o = advance(t, svc, store, o, entity.OrderReadyForPickup)
	o = advance(t, svc, store, o, entity.OrderInTransit)
	check.False(t, o.DisputeOpen)
	o = advance(t, svc, store, o, entity.OrderDelivered)

	assert.NoError(t, svc.Complete(context.Background(), o.ID))

	got, err := svc.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	check.Equal(t, entity.OrderCompleted, got.Status)
	check.Equal(t, entity.PaymentPaidOut, got.PaymentStatus)

	escrow, err := store.EscrowByOrder(context.Background(), o.ID)
	assert.NoError(t, err)
	check.True(t, escrow.Released)
	check.False(t, escrow.Refunded)

	// Completing again is a no-op: one payout, one release.
	assert.NoError(t, svc.Complete(context.Background(), o.ID))
	check.Equal(t, 1, len(payout.sends))
	// Final 2100 minus 5% fee.
	check.True(t, payout.sends[0].Equal(decimal.NewFromInt(1995)))
}

func TestRecordPickupWeight_VarianceOpensDisputeButKeepsMoving(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	o = advance(t, svc, store, o, entity.OrderConfirmed)
	o = advance(t, svc, store, o, entity.OrderProcessing)
	o = advance(t, svc, store, o, entity.OrderReadyForPickup)

	// Declared 400kg, actual 360kg: 10% variance, above the 5% threshold.
	assert.NoError(t, svc.RecordPickupWeight(context.Background(), o.ID, decimal.NewFromInt(360), []string{"scale.jpg"}))

	got, err := svc.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	check.Equal(t, entity.OrderInTransit, got.Status)
	check.True(t, got.DisputeOpen)
	assert.True(t, got.VariancePct.Valid)
	check.True(t, got.VariancePct.Decimal.Equal(decimal.NewFromInt(10)))
	assert.True(t, got.FinalAmount.Valid)
	// 5/kg at 360kg actual.
	check.True(t, got.FinalAmount.Decimal.Equal(decimal.NewFromInt(1800)))
}

func TestAutoComplete_SuppressedByOpenDispute(t *testing.T) {
	store := newFakeStore()
	svc, payout := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	o = advance(t, svc, store, o, entity.OrderConfirmed)
	o = advance(t, svc, store, o, entity.OrderProcessing)
	o = advance(t, svc, store, o, entity.OrderReadyForPickup)
	o = advance(t, svc, store, o, entity.OrderInTransit)
	o = advance(t, svc, store, o, entity.OrderDelivered)

	assert.NoError(t, svc.OpenDispute(context.Background(), o.ID, "half the herd is lame"))

	// Past the 48h window, but the dispute blocks auto-completion.
	later := time.Now().UTC().Add(72 * time.Hour)
	n, err := svc.AutoCompleteDelivered(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 0, n)
	check.Equal(t, 0, len(payout.sends))

	got, err := svc.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	check.Equal(t, entity.OrderDisputed, got.Status)
}

func TestAutoComplete_PromotesQuietDeliveries(t *testing.T) {
	store := newFakeStore()
	svc, payout := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	o = advance(t, svc, store, o, entity.OrderConfirmed)
	o = advance(t, svc, store, o, entity.OrderProcessing)
	o = advance(t, svc, store, o, entity.OrderReadyForPickup)
	o = advance(t, svc, store, o, entity.OrderInTransit)
	o = advance(t, svc, store, o, entity.OrderDelivered)

	later := time.Now().UTC().Add(72 * time.Hour)
	n, err := svc.AutoCompleteDelivered(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 1, n)
	check.Equal(t, 1, len(payout.sends))

	// The sweep converges: nothing left on a second pass.
	n, err = svc.AutoCompleteDelivered(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 0, n)
}

func TestResolveDispute_CancelRefundsEscrow(t *testing.T) {
	store := newFakeStore()
	svc, payout := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	o = advance(t, svc, store, o, entity.OrderConfirmed)
	o = advance(t, svc, store, o, entity.OrderProcessing)
	o = advance(t, svc, store, o, entity.OrderReadyForPickup)
	o = advance(t, svc, store, o, entity.OrderInTransit)
	o = advance(t, svc, store, o, entity.OrderDelivered)
	assert.NoError(t, svc.OpenDispute(context.Background(), o.ID, "wrong animals"))

	assert.NoError(t, svc.ResolveDispute(context.Background(), o.ID, ResolutionCancel, decimal.Zero))

	got, err := svc.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	check.Equal(t, entity.OrderCancelled, got.Status)
	check.Equal(t, entity.PaymentRefunded, got.PaymentStatus)
	check.False(t, got.DisputeOpen)

	escrow, err := store.EscrowByOrder(context.Background(), o.ID)
	assert.NoError(t, err)
	check.True(t, escrow.Refunded)
	check.False(t, escrow.Released)
	check.Equal(t, 0, len(payout.sends))
}

func TestResolveDispute_CompleteUsesSettlement(t *testing.T) {
	store := newFakeStore()
	svc, payout := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	o = advance(t, svc, store, o, entity.OrderConfirmed)
	o = advance(t, svc, store, o, entity.OrderProcessing)
	o = advance(t, svc, store, o, entity.OrderReadyForPickup)
	o = advance(t, svc, store, o, entity.OrderInTransit)
	o = advance(t, svc, store, o, entity.OrderDelivered)
	assert.NoError(t, svc.OpenDispute(context.Background(), o.ID, "underweight"))

	assert.NoError(t, svc.ResolveDispute(context.Background(), o.ID, ResolutionComplete, decimal.NewFromInt(1600)))

	got, err := svc.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	check.Equal(t, entity.OrderCompleted, got.Status)
	check.False(t, got.DisputeOpen)
	assert.True(t, got.FinalAmount.Valid)
	check.True(t, got.FinalAmount.Decimal.Equal(decimal.NewFromInt(1600)))

	assert.Equal(t, 1, len(payout.sends))
	// 1600 minus 5% fee.
	check.True(t, payout.sends[0].Equal(decimal.NewFromInt(1520)))
}

func TestCancelDepositExpired_TransfersToRunnerUpOnce(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{bids: []entity.Bid{
		{ID: 2, AuctionID: 5, BidderID: 20, Amount: decimal.NewFromInt(2000)},
		{ID: 1, AuctionID: 5, BidderID: 30, Amount: decimal.NewFromInt(1900)},
	}}
	svc, _ := newTestService(t, store, ledger)

	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }

	a := &entity.Auction{ID: 5, SellerID: 10, LotWeightKg: decimal.NewFromInt(400)}
	winning := &entity.Bid{ID: 2, BidderID: 20, Amount: decimal.NewFromInt(2000)}
	o, err := svc.CreateFromAuctionWin(context.Background(), a, winning)
	assert.NoError(t, err)

	later := o.DepositDueAt.Add(time.Minute)
	current = later
	n, err := svc.CancelDepositExpired(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 1, n)

	got, err := svc.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	check.Equal(t, entity.OrderCancelled, got.Status)

	// A fresh order exists for the runner-up at their own bid.
	store.mu.Lock()
	var reoffer *entity.Order
	for _, cand := range store.orders {
		if cand.ID != o.ID && cand.BuyerID == 30 {
			cp := *cand
			reoffer = &cp
		}
	}
	store.mu.Unlock()
	assert.NotNil(t, reoffer)
	check.Equal(t, entity.OrderPendingDeposit, reoffer.Status)
	check.True(t, reoffer.Subtotal.Equal(decimal.NewFromInt(1900)))

	// The re-offer got a fresh deposit window, so a second sweep at the
	// same instant finds nothing and nothing is re-transferred.
	n, err = svc.CancelDepositExpired(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 0, n)
}

func TestEscalateUnconfirmed(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	later := o.ConfirmDueAt.Add(time.Minute)

	n, err := svc.EscalateUnconfirmed(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 1, n)

	// Escalation happens once.
	n, err = svc.EscalateUnconfirmed(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 0, n)
}

func TestCancel_TerminalOrderIsInvariantViolation(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	assert.NoError(t, svc.Cancel(context.Background(), o.ID, "buyer backed out"))

	err := svc.Cancel(context.Background(), o.ID, "again")
	assert.Error(t, err)
	check.Equal(t, errorbank.KindInvariant, errorbank.KindOf(err))
}

func TestOpenDispute_OnlyInTransitOrDelivered(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	o := depositPaidOrder(t, svc, store)
	err := svc.OpenDispute(context.Background(), o.ID, "too early")
	assert.Error(t, err)
	check.Equal(t, errorbank.KindBadRequest, errorbank.KindOf(err))
}

func TestCreateBuyNow(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store, nil)

	o, err := svc.CreateBuyNow(context.Background(), BuyNowParams{
		SellerID:         10,
		BuyerID:          20,
		Quantity:         2,
		DeclaredWeightKg: decimal.NewFromInt(300),
		UnitPrice:        decimal.NewFromInt(4),
	})
	assert.NoError(t, err)
	check.Equal(t, entity.SourceBuyNow, o.Source)
	check.Equal(t, entity.OrderPendingDeposit, o.Status)
	// 4/kg at 300kg, two head.
	check.True(t, o.Subtotal.Equal(decimal.NewFromInt(2400)))

	// Self-purchase is rejected.
	_, err = svc.CreateBuyNow(context.Background(), BuyNowParams{
		SellerID:         10,
		BuyerID:          10,
		DeclaredWeightKg: decimal.NewFromInt(300),
		UnitPrice:        decimal.NewFromInt(4),
	})
	assert.Error(t, err)
	check.Equal(t, errorbank.KindBadRequest, errorbank.KindOf(err))
}
