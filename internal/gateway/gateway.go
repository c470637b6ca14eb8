// Package gateway holds the boundary contracts toward external
// collaborators: notification delivery, escrow payout, and shipment
// tracking. The engine only ever sees these interfaces; payment capture is
// inbound-only and arrives as a webhook.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Notifier delivers a notification to an audience. Fire-and-forget:
// failures are logged and swallowed, delivery is at-most-once.
type Notifier interface {
	Notify(ctx context.Context, audience, eventType string, payload map[string]any) error
}

// Payout moves released escrow funds to a seller. Invoked exactly once
// per order; the escrow release flag is the guard, not the gateway.
type Payout interface {
	Send(ctx context.Context, sellerID int64, amount decimal.Decimal) error
}

// Module wires the default gateway implementations.
var Module = fx.Provide(
	func(logger *zap.Logger) Notifier { return &logNotifier{logger: logger} },
	func(logger *zap.Logger) Payout { return &logPayout{logger: logger} },
)

// logNotifier is the development sink; production deployments swap in a
// real delivery channel behind the same interface.
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) Notify(_ context.Context, audience, eventType string, payload map[string]any) error {
	n.logger.Info("notification dispatched",
		zap.String("audience", audience),
		zap.String("event_type", eventType),
		zap.Any("payload", payload),
	)
	return nil
}

type logPayout struct {
	logger *zap.Logger
}

func (p *logPayout) Send(_ context.Context, sellerID int64, amount decimal.Decimal) error {
	p.logger.Info("escrow payout initiated",
		zap.Int64("seller_id", sellerID),
		zap.String("amount", amount.String()),
	)
	return nil
}
