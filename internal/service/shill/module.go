package shill

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	repoalert "github.com/agritrade/stockyard/internal/repository/alert"
	repobid "github.com/agritrade/stockyard/internal/repository/bid"
)

// Module provides the fraud detector to Fx.
var Module = fx.Provide(
	func(b *repobid.Repository, a *repoalert.Repository, logger *zap.Logger) *Service {
		return NewService(b, a, logger)
	},
)
