// Package outbox drains the transactional outbox to the message bus.
// Delivery is at-least-once: a crash between publish and mark leaves the
// row pending, and consumers are expected to tolerate the replay.
package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/entity"
	"github.com/agritrade/stockyard/internal/messaging"
	repo "github.com/agritrade/stockyard/internal/repository/outbox"
)

// Dispatcher polls pending events and pushes them onto kafka in insertion
// order. Events share a key per aggregate, so partition ordering matches
// acceptance ordering within one auction.
type Dispatcher struct {
	store  *repo.Repository
	client messaging.Client
	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(store *repo.Repository, client messaging.Client, cfg config.Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Module wires the dispatcher into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewDispatcher),
	fx.Invoke(func(lc fx.Lifecycle, d *Dispatcher) {
		lc.Append(fx.Hook{
			OnStart: d.start,
			OnStop:  d.stop,
		})
	}),
)

func (d *Dispatcher) start(ctx context.Context) error {
	if !d.cfg.Outbox.Enabled || !d.cfg.Messaging.Enabled {
		d.logger.Info("outbox dispatcher disabled")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop(runCtx)
	}()

	d.logger.Info("outbox dispatcher started", zap.Duration("poll_interval", d.cfg.Outbox.PollInterval))

	return nil
}

func (d *Dispatcher) stop(ctx context.Context) error {
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
		d.logger.Info("outbox dispatcher stopped")

		return nil
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Outbox.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Drain(ctx); err != nil {
				d.logger.Error("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// Drain publishes one batch of pending events and reports how many went
// out. A publish failure bumps the attempt counter and moves on; the row
// stays pending for the next poll.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	pending, err := d.store.Pending(ctx, d.cfg.Outbox.BatchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range pending {
		ev := pending[i]
		if err := d.publish(ctx, &ev); err != nil {
			d.logger.Error("outbox publish failed",
				zap.Int64("event_id", ev.ID),
				zap.String("topic", ev.Topic),
				zap.Int("attempts", ev.Attempts+1),
				zap.Error(err),
			)
			if merr := d.store.MarkFailed(ctx, ev.ID); merr != nil {
				d.logger.Error("outbox mark failed", zap.Int64("event_id", ev.ID), zap.Error(merr))
			}

			continue
		}
		if err := d.store.MarkPublished(ctx, ev.ID, d.now()); err != nil {
			// Already on the bus; the replayed copy after restart is the
			// at-least-once contract at work.
			d.logger.Error("outbox mark published failed", zap.Int64("event_id", ev.ID), zap.Error(err))
		}
		published++
	}
	return published, nil
}

func (d *Dispatcher) publish(ctx context.Context, ev *entity.OutboxEvent) error {
	return d.client.Publish(ctx, ev.Topic, []byte(ev.Key), ev.Payload)
}
