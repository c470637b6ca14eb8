package auction

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/cache"
	"github.com/agritrade/stockyard/internal/config"
	repoauction "github.com/agritrade/stockyard/internal/repository/auction"
	repobid "github.com/agritrade/stockyard/internal/repository/bid"
)

// Module provides the auction engine to Fx, binding the concrete
// repositories onto the service's ports.
var Module = fx.Provide(
	func(r *repoauction.Repository, b *repobid.Repository, orders OrderCreator, c cache.Store, cfg config.Config, logger *zap.Logger) *Service {
		return NewService(r, b, orders, c, cfg, logger)
	},
)
