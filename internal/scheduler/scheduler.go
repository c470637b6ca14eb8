// Package scheduler runs the periodic sweeps that promote entities whose
// stored deadlines have elapsed. Every sweep converges from persisted
// state, so any instance can run it and a crashed tick is simply absorbed
// by the next one.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
	auctionservice "github.com/agritrade/stockyard/internal/service/auction"
	orderservice "github.com/agritrade/stockyard/internal/service/order"
)

var tracer = otel.Tracer("github.com/agritrade/stockyard/scheduler")

// sweep is one deadline pass. It reports how many entities it promoted.
type sweep struct {
	name string
	run  func(ctx context.Context, now time.Time) (int, error)
}

// Driver owns the tick loop. One instance per process; the guarded
// transitions underneath make overlapping drivers across processes safe.
type Driver struct {
	cfg    config.Config
	logger *zap.Logger
	sweeps []sweep
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDriver assembles the sweep list in dependency order: auctions first,
// so an auction closed this tick can have its order swept on a later one.
func NewDriver(auctions *auctionservice.Service, orders *orderservice.Service, cfg config.Config, logger *zap.Logger) *Driver {
	return &Driver{
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		sweeps: []sweep{
			{name: "auction.start_due", run: auctions.StartDue},
			{name: "auction.close_due", run: auctions.CloseDue},
			{name: "auction.open_won_orders", run: auctions.OpenWonOrders},
			{name: "auction.expire_decisions", run: auctions.ExpireDecisions},
			{name: "order.cancel_deposit_expired", run: orders.CancelDepositExpired},
			{name: "order.escalate_unconfirmed", run: orders.EscalateUnconfirmed},
			{name: "order.auto_complete_delivered", run: orders.AutoCompleteDelivered},
		},
	}
}

// Module wires the driver into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewDriver),
	fx.Invoke(func(lc fx.Lifecycle, driver *Driver) {
		lc.Append(fx.Hook{
			OnStart: driver.start,
			OnStop:  driver.stop,
		})
	}),
)

func (d *Driver) start(ctx context.Context) error {
	if !d.cfg.Scheduler.Enabled {
		d.logger.Info("scheduler disabled")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop(runCtx)
	}()

	d.logger.Info("scheduler started", zap.Duration("tick", d.cfg.Scheduler.Tick))

	return nil
}

func (d *Driver) stop(ctx context.Context) error {
	if d.cancel == nil {
		return nil
	}
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		d.logger.Info("scheduler stopped")

		return nil
	}
}

func (d *Driver) loop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Scheduler.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs every sweep once against the current clock. A failing sweep is
// logged and never aborts the rest of the tick.
func (d *Driver) Tick(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Scheduler.Tick")
	defer span.End()

	now := d.now()
	for _, sw := range d.sweeps {
		n, err := sw.run(ctx, now)
		if err != nil {
			d.logger.Error("sweep failed", zap.String("sweep", sw.name), zap.Error(err))

			continue
		}
		if n > 0 {
			d.logger.Info("sweep promoted entities", zap.String("sweep", sw.name), zap.Int("count", n))
		}
	}
}
