package order

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/gateway"
	repobid "github.com/agritrade/stockyard/internal/repository/bid"
	repoorder "github.com/agritrade/stockyard/internal/repository/order"
)

// Module provides the order lifecycle manager to Fx. The bid ledger is
// bound directly to the bid repository so runner-up re-offers never loop
// back through the auction engine.
var Module = fx.Provide(
	func(r *repoorder.Repository, b *repobid.Repository, payout gateway.Payout, cfg config.Config, logger *zap.Logger) *Service {
		return NewService(r, b, payout, cfg, logger)
	},
)
