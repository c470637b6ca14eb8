package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/entity"
	repo "github.com/agritrade/stockyard/internal/repository/auction"
	"github.com/agritrade/stockyard/pkg/errorbank"
)

// fakeStore mimics the repository's guarded transactions in memory: bid
// acceptance checks the pre-increment bid count, transitions check the
// from-state set.
type fakeStore struct {
	mu        sync.Mutex
	auctions  map[int64]*entity.Auction
	bids      []entity.Bid
	decisions map[int64]*entity.SellerDecision
	events    []*entity.OutboxEvent
	nextBidID int64
	orders    *fakeOrders
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions:  make(map[int64]*entity.Auction),
		decisions: make(map[int64]*entity.SellerDecision),
		nextBidID: 1,
	}
}

func (f *fakeStore) put(a *entity.Auction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.auctions[a.ID] = &cp
}

func (f *fakeStore) Create(_ context.Context, a *entity.Auction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == 0 {
		a.ID = int64(len(f.auctions) + 1)
	}
	cp := *a
	f.auctions[a.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*entity.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) AcceptBid(_ context.Context, a *entity.Auction, bid *entity.Bid, events func() []*entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.auctions[a.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.BidCount != a.BidCount-1 || !stored.BiddingOpen() {
		return repo.ErrStale
	}
	bid.ID = f.nextBidID
	f.nextBidID++
	f.bids = append(f.bids, *bid)
	cp := *a
	f.auctions[a.ID] = &cp
	if events != nil {
		f.events = append(f.events, events()...)
	}
	return nil
}

func (f *fakeStore) Transition(_ context.Context, a *entity.Auction, from []entity.AuctionStatus, _ []string, events []*entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.auctions[a.ID]
	if !ok {
		return repo.ErrNotFound
	}
	matched := false
	for _, s := range from {
		if stored.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return repo.ErrStale
	}
	cp := *a
	f.auctions[a.ID] = &cp
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) DueToStart(_ context.Context, now time.Time, _ int) ([]entity.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.Auction
	for _, a := range f.auctions {
		if a.Status == entity.AuctionScheduled && !a.StartAt.After(now) {
			due = append(due, *a)
		}
	}
	return due, nil
}

func (f *fakeStore) DueToClose(_ context.Context, now time.Time, _ int) ([]entity.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.Auction
	for _, a := range f.auctions {
		if a.BiddingOpen() && !a.EndAt.After(now) {
			due = append(due, *a)
		}
	}
	return due, nil
}

func (f *fakeStore) WonAwaitingOrder(_ context.Context, _ int) ([]entity.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.Auction
	for _, a := range f.auctions {
		if a.Status != entity.AuctionEnded || a.WinningBidID == nil {
			continue
		}
		accepted := false
		if d, ok := f.decisions[a.ID]; ok && d.Status == entity.DecisionAccepted {
			accepted = true
		}
		if !a.ReserveMet && !accepted {
			continue
		}
		if f.orders != nil && f.orders.forAuction(a.ID) {
			continue
		}
		due = append(due, *a)
	}
	return due, nil
}

func (f *fakeStore) CreateDecision(_ context.Context, d *entity.SellerDecision, events []*entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.decisions[d.AuctionID]; exists {
		return nil
	}
	d.ID = int64(len(f.decisions) + 1)
	cp := *d
	f.decisions[d.AuctionID] = &cp
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) DecisionByAuction(_ context.Context, auctionID int64) (*entity.SellerDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decisions[auctionID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) ResolveDecision(_ context.Context, d *entity.SellerDecision, events []*entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.decisions[d.AuctionID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Status != entity.DecisionPending {
		return repo.ErrStale
	}
	cp := *d
	f.decisions[d.AuctionID] = &cp
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) DueDecisions(_ context.Context, now time.Time, _ int) ([]entity.SellerDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.SellerDecision
	for _, d := range f.decisions {
		if d.Status == entity.DecisionPending && !d.ExpiresAt.After(now) {
			due = append(due, *d)
		}
	}
	return due, nil
}

// fakeLedger serves reads from the fake store's bid slice.
type fakeLedger struct {
	store *fakeStore
}

func (l *fakeLedger) ListByAuction(_ context.Context, auctionID int64) ([]entity.Bid, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	var out []entity.Bid
	for _, b := range l.store.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (l *fakeLedger) TopTwo(_ context.Context, auctionID int64) ([]entity.Bid, error) {
	bids, _ := l.ListByAuction(context.Background(), auctionID)
	var top []entity.Bid
	for _, b := range bids {
		top = append(top, b)
	}
	// Bids are accepted strictly increasing, so the last two are the top two.
	if len(top) > 2 {
		top = top[len(top)-2:]
	}
	for i, j := 0, len(top)-1; i < j; i, j = i+1, j-1 {
		top[i], top[j] = top[j], top[i]
	}
	return top, nil
}

type fakeOrders struct {
	mu      sync.Mutex
	created []entity.Order
	err     error
}

func (o *fakeOrders) CreateFromAuctionWin(_ context.Context, a *entity.Auction, winning *entity.Bid) (*entity.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	ord := entity.Order{
		Source:    entity.SourceAuctionWin,
		AuctionID: &a.ID,
		SellerID:  a.SellerID,
		BuyerID:   winning.BidderID,
		Subtotal:  winning.Amount,
	}
	o.created = append(o.created, ord)
	return &ord, nil
}

func (o *fakeOrders) forAuction(auctionID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ord := range o.created {
		if ord.AuctionID != nil && *ord.AuctionID == auctionID {
			return true
		}
	}
	return false
}

func testConfig() config.Config {
	return config.Config{
		Auction: config.Auction{
			ExtensionWindow:      5 * time.Minute,
			SellerDecisionWindow: 24 * time.Hour,
		},
		Scheduler: config.Scheduler{SweepLimit: 200},
		Messaging: config.Messaging{
			Kafka: config.Kafka{
				BidsTopic:          "stockyard.bids",
				NotificationsTopic: "stockyard.notifications",
			},
		},
	}
}

func newTestService(t *testing.T, store *fakeStore) (*Service, *fakeOrders) {
	t.Helper()
	orders := &fakeOrders{}
	store.orders = orders
	svc := NewService(store, &fakeLedger{store: store}, orders, nil, testConfig(), zap.NewNop())
	return svc, orders
}

func activeAuction(id int64, now time.Time) *entity.Auction {
	return &entity.Auction{
		ID:            id,
		SellerID:      10,
		LotNumber:     "LOT-1",
		LotWeightKg:   decimal.NewFromInt(400),
		StartingPrice: decimal.NewFromInt(1000),
		BidIncrement:  decimal.NewFromInt(50),
		CurrentPrice:  decimal.NewFromInt(1000),
		Status:        entity.AuctionActive,
		AutoExtend:    true,
		MaxExtensions: 3,
		StartAt:       now.Add(-time.Hour),
		EndAt:         now.Add(time.Hour),
	}
}

func TestAcceptBid_RejectsBelowIncrement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.put(activeAuction(1, now))
	svc, _ := newTestService(t, store)
	svc.now = func() time.Time { return now }

	// Equal to current price: rejected.
	_, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1000), entity.BidOrigin{})
	assert.Error(t, err)
	check.Equal(t, errorbank.KindBadRequest, errorbank.KindOf(err))

	// One below minimum: rejected.
	_, err = svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1049), entity.BidOrigin{})
	assert.Error(t, err)
	check.Equal(t, errorbank.KindBadRequest, errorbank.KindOf(err))

	// Exactly the minimum: accepted.
	bid, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1050), entity.BidOrigin{})
	assert.NoError(t, err)
	check.True(t, bid.Amount.Equal(decimal.NewFromInt(1050)))

	a, err := svc.Get(context.Background(), 1)
	assert.NoError(t, err)
	check.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(1050)))
	check.Equal(t, 1, a.BidCount)
}

func TestAcceptBid_RejectsSelfBid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.put(activeAuction(1, now))
	svc, _ := newTestService(t, store)
	svc.now = func() time.Time { return now }

	_, err := svc.AcceptBid(context.Background(), 1, 10, decimal.NewFromInt(1100), entity.BidOrigin{})
	assert.Error(t, err)
	check.Equal(t, errorbank.KindBadRequest, errorbank.KindOf(err))
	check.Equal(t, 0, len(store.bids))
}

func TestAcceptBid_RejectsClosedAuction(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.Status = entity.AuctionEnded
	store.put(a)
	svc, _ := newTestService(t, store)

	_, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1100), entity.BidOrigin{})
	assert.Error(t, err)
	check.Equal(t, errorbank.KindBadRequest, errorbank.KindOf(err))
}

func TestAcceptBid_ExtendsNearDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.EndAt = now.Add(2 * time.Minute)
	store.put(a)
	svc, _ := newTestService(t, store)
	svc.now = func() time.Time { return now }

	_, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1050), entity.BidOrigin{})
	assert.NoError(t, err)

	got, err := svc.Get(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.AuctionExtended, got.Status)
	check.Equal(t, 1, got.ExtensionCount)
	check.True(t, got.EndAt.Equal(now.Add(2*time.Minute).Add(5*time.Minute)))
}

func TestAcceptBid_ExtensionCapped(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.Status = entity.AuctionExtended
	a.ExtensionCount = 3
	a.EndAt = now.Add(time.Minute)
	store.put(a)
	svc, _ := newTestService(t, store)
	svc.now = func() time.Time { return now }

	_, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1050), entity.BidOrigin{})
	assert.NoError(t, err)

	got, err := svc.Get(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, 3, got.ExtensionCount)
	check.True(t, got.EndAt.Equal(now.Add(time.Minute)))
}

func TestAcceptBid_ConcurrentBidsStrictlyIncreasing(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.put(activeAuction(1, now))
	svc, _ := newTestService(t, store)
	svc.now = func() time.Time { return now }

	const bidders = 20
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		bidderID := int64(100 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 0; attempt < 5; attempt++ {
				a, err := svc.Get(context.Background(), 1)
				if err != nil {
					return
				}
				_, err = svc.AcceptBid(context.Background(), 1, bidderID, a.MinimumNextBid(), entity.BidOrigin{})
				if err == nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	// Every accepted bid is strictly greater than its predecessor and the
	// final price reflects the last acceptance.
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.True(t, len(store.bids) > 0)
	prev := decimal.Zero
	for _, b := range store.bids {
		check.True(t, b.Amount.GreaterThan(prev))
		prev = b.Amount
	}
	check.True(t, store.auctions[1].CurrentPrice.Equal(prev))
	check.Equal(t, len(store.bids), store.auctions[1].BidCount)
}

func TestClose_NoBidsCancels(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.EndAt = now.Add(-time.Minute)
	store.put(a)
	svc, orders := newTestService(t, store)
	svc.now = func() time.Time { return now }

	assert.NoError(t, svc.Close(context.Background(), 1))

	got, err := svc.Get(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.AuctionCancelled, got.Status)
	check.Equal(t, 0, len(orders.created))
}

func TestClose_BelowReserveParksDecision(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(2000))
	store.put(a)
	svc, orders := newTestService(t, store)
	svc.now = func() time.Time { return now }

	_, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1050), entity.BidOrigin{})
	assert.NoError(t, err)

	// Deadline passes.
	later := now.Add(2 * time.Hour)
	svc.now = func() time.Time { return later }
	store.mu.Lock()
	store.auctions[1].EndAt = now.Add(time.Hour)
	store.mu.Unlock()

	assert.NoError(t, svc.Close(context.Background(), 1))

	got, err := svc.Get(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.AuctionEnded, got.Status)
	check.False(t, got.ReserveMet)
	check.Equal(t, 0, len(orders.created))

	d, err := store.DecisionByAuction(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.DecisionPending, d.Status)
	check.True(t, d.Amount.Equal(decimal.NewFromInt(1050)))
	check.True(t, d.ExpiresAt.Equal(later.Add(24*time.Hour)))
}

func TestClose_ReserveMetOpensOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(1040))
	store.put(a)
	svc, orders := newTestService(t, store)
	svc.now = func() time.Time { return now }

	_, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1050), entity.BidOrigin{})
	assert.NoError(t, err)

	later := now.Add(2 * time.Hour)
	svc.now = func() time.Time { return later }

	assert.NoError(t, svc.Close(context.Background(), 1))

	got, err := svc.Get(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.AuctionEnded, got.Status)
	check.True(t, got.ReserveMet)
	assert.True(t, got.FinalPrice.Valid)
	check.True(t, got.FinalPrice.Decimal.Equal(decimal.NewFromInt(1050)))

	assert.Equal(t, 1, len(orders.created))
	check.Equal(t, int64(20), orders.created[0].BuyerID)

	// A second close is a no-op.
	assert.NoError(t, svc.Close(context.Background(), 1))
	check.Equal(t, 1, len(orders.created))
}

func TestClose_OrderCreationFailureConvergesViaSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.put(activeAuction(1, now))
	svc, orders := newTestService(t, store)
	svc.now = func() time.Time { return now }

	_, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1050), entity.BidOrigin{})
	assert.NoError(t, err)

	later := now.Add(2 * time.Hour)
	svc.now = func() time.Time { return later }
	orders.err = errors.New("order store unavailable")

	// The close commits even though the order write fails.
	assert.NoError(t, svc.Close(context.Background(), 1))
	got, err := svc.Get(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.AuctionEnded, got.Status)
	check.Equal(t, 0, len(orders.created))

	// Re-closing stays a no-op; the sweep keeps failing while the store
	// is down.
	assert.NoError(t, svc.Close(context.Background(), 1))
	opened, err := svc.OpenWonOrders(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 0, opened)
	check.Equal(t, 0, len(orders.created))

	// Once the store recovers, the next sweep opens the order exactly once.
	orders.err = nil
	opened, err = svc.OpenWonOrders(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 1, opened)
	assert.Equal(t, 1, len(orders.created))
	check.Equal(t, int64(20), orders.created[0].BuyerID)
	check.True(t, orders.created[0].Subtotal.Equal(decimal.NewFromInt(1050)))

	opened, err = svc.OpenWonOrders(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 0, opened)
	check.Equal(t, 1, len(orders.created))
}

func TestAcceptBelowReserve_OrderCreationFailureConvergesViaSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(2000))
	store.put(a)
	svc, orders := newTestService(t, store)
	svc.now = func() time.Time { return now }

	_, err := svc.AcceptBid(context.Background(), 1, 20, decimal.NewFromInt(1050), entity.BidOrigin{})
	assert.NoError(t, err)

	later := now.Add(2 * time.Hour)
	svc.now = func() time.Time { return later }
	assert.NoError(t, svc.Close(context.Background(), 1))

	// The acceptance commits even though the order write fails.
	orders.err = errors.New("order store unavailable")
	assert.NoError(t, svc.AcceptBelowReserve(context.Background(), 1, 10))
	check.Equal(t, 0, len(orders.created))

	d, err := store.DecisionByAuction(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.DecisionAccepted, d.Status)

	orders.err = nil
	opened, err := svc.OpenWonOrders(context.Background(), later)
	assert.NoError(t, err)
	check.Equal(t, 1, opened)
	assert.Equal(t, 1, len(orders.created))
	check.Equal(t, int64(20), orders.created[0].BuyerID)
	check.True(t, orders.created[0].Subtotal.Equal(decimal.NewFromInt(1050)))
}

func TestAcceptBelowReserve(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.Status = entity.AuctionEnded
	store.put(a)
	store.decisions[1] = &entity.SellerDecision{
		ID: 1, AuctionID: 1, WinningBidID: 7, BidderID: 20,
		Amount: decimal.NewFromInt(1500), Status: entity.DecisionPending,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	svc, orders := newTestService(t, store)
	svc.now = func() time.Time { return now }

	// Wrong seller is rejected.
	err := svc.AcceptBelowReserve(context.Background(), 1, 99)
	assert.Error(t, err)
	check.Equal(t, errorbank.KindBadRequest, errorbank.KindOf(err))

	assert.NoError(t, svc.AcceptBelowReserve(context.Background(), 1, 10))
	assert.Equal(t, 1, len(orders.created))
	check.True(t, orders.created[0].Subtotal.Equal(decimal.NewFromInt(1500)))

	// Resolving twice conflicts.
	err = svc.AcceptBelowReserve(context.Background(), 1, 10)
	assert.Error(t, err)
	check.Equal(t, errorbank.KindConflict, errorbank.KindOf(err))
}

func TestDeclineBelowReserve(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.Status = entity.AuctionEnded
	store.put(a)
	store.decisions[1] = &entity.SellerDecision{
		ID: 1, AuctionID: 1, WinningBidID: 7, BidderID: 20,
		Amount: decimal.NewFromInt(1500), Status: entity.DecisionPending,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	svc, orders := newTestService(t, store)
	svc.now = func() time.Time { return now }

	assert.NoError(t, svc.DeclineBelowReserve(context.Background(), 1, 10))
	check.Equal(t, 0, len(orders.created))

	d, err := store.DecisionByAuction(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.DecisionDeclined, d.Status)
}

func TestReserveDecision_ConcurrentAcceptDeclineResolvesOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.Status = entity.AuctionEnded
	store.put(a)
	store.decisions[1] = &entity.SellerDecision{
		ID: 1, AuctionID: 1, WinningBidID: 7, BidderID: 20,
		Amount: decimal.NewFromInt(1500), Status: entity.DecisionPending,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	svc, orders := newTestService(t, store)
	svc.now = func() time.Time { return now }

	var (
		wg         sync.WaitGroup
		acceptErr  error
		declineErr error
	)
	wg.Add(2)
	go func() { defer wg.Done(); acceptErr = svc.AcceptBelowReserve(context.Background(), 1, 10) }()
	go func() { defer wg.Done(); declineErr = svc.DeclineBelowReserve(context.Background(), 1, 10) }()
	wg.Wait()

	// Exactly one side wins the pending decision; the other conflicts.
	assert.True(t, (acceptErr == nil) != (declineErr == nil))
	d, err := store.DecisionByAuction(context.Background(), 1)
	assert.NoError(t, err)
	if acceptErr == nil {
		check.Equal(t, errorbank.KindConflict, errorbank.KindOf(declineErr))
		check.Equal(t, entity.DecisionAccepted, d.Status)
		check.Equal(t, 1, len(orders.created))
	} else {
		check.Equal(t, errorbank.KindConflict, errorbank.KindOf(acceptErr))
		check.Equal(t, entity.DecisionDeclined, d.Status)
		check.Equal(t, 0, len(orders.created))
	}
}

func TestExpireDecisions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.decisions[1] = &entity.SellerDecision{
		ID: 1, AuctionID: 1, WinningBidID: 7, BidderID: 20,
		Amount: decimal.NewFromInt(1500), Status: entity.DecisionPending,
		ExpiresAt: now.Add(-time.Minute),
	}
	store.decisions[2] = &entity.SellerDecision{
		ID: 2, AuctionID: 2, WinningBidID: 8, BidderID: 21,
		Amount: decimal.NewFromInt(900), Status: entity.DecisionPending,
		ExpiresAt: now.Add(time.Hour),
	}
	svc, _ := newTestService(t, store)
	svc.now = func() time.Time { return now }

	expired, err := svc.ExpireDecisions(context.Background(), now)
	assert.NoError(t, err)
	check.Equal(t, 1, expired)

	d, err := store.DecisionByAuction(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.DecisionExpired, d.Status)

	d2, err := store.DecisionByAuction(context.Background(), 2)
	assert.NoError(t, err)
	check.Equal(t, entity.DecisionPending, d2.Status)

	// Sweeps converge: a second pass finds nothing.
	expired, err = svc.ExpireDecisions(context.Background(), now)
	assert.NoError(t, err)
	check.Equal(t, 0, expired)
}

func TestStartDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	a := activeAuction(1, now)
	a.Status = entity.AuctionScheduled
	a.StartAt = now.Add(-time.Minute)
	store.put(a)
	svc, _ := newTestService(t, store)
	svc.now = func() time.Time { return now }

	started, err := svc.StartDue(context.Background(), now)
	assert.NoError(t, err)
	check.Equal(t, 1, started)

	got, err := svc.Get(context.Background(), 1)
	assert.NoError(t, err)
	check.Equal(t, entity.AuctionActive, got.Status)
}
