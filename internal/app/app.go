package app

import (
	"go.uber.org/fx"

	"github.com/agritrade/stockyard/internal/cache"
	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/database"
	"github.com/agritrade/stockyard/internal/gateway"
	"github.com/agritrade/stockyard/internal/logger"
	"github.com/agritrade/stockyard/internal/messaging"
	"github.com/agritrade/stockyard/internal/observability"
	"github.com/agritrade/stockyard/internal/outbox"
	repositoryalert "github.com/agritrade/stockyard/internal/repository/alert"
	repositoryauction "github.com/agritrade/stockyard/internal/repository/auction"
	repositorybid "github.com/agritrade/stockyard/internal/repository/bid"
	repositoryorder "github.com/agritrade/stockyard/internal/repository/order"
	repositoryoutbox "github.com/agritrade/stockyard/internal/repository/outbox"
	"github.com/agritrade/stockyard/internal/scheduler"
	httpserver "github.com/agritrade/stockyard/internal/server/http"
	serviceauction "github.com/agritrade/stockyard/internal/service/auction"
	serviceorder "github.com/agritrade/stockyard/internal/service/order"
	serviceshill "github.com/agritrade/stockyard/internal/service/shill"
	transporthttp "github.com/agritrade/stockyard/internal/transport/http"
	"github.com/agritrade/stockyard/internal/worker"
	workernotification "github.com/agritrade/stockyard/internal/worker/notification"
	workershill "github.com/agritrade/stockyard/internal/worker/shill"
)

// Core provides the foundational modules shared across executables. The
// outbox dispatcher rides along everywhere state changes are produced.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	gateway.Module,
	repositoryauction.Module,
	repositorybid.Module,
	repositoryorder.Module,
	repositoryalert.Module,
	repositoryoutbox.Module,
	serviceauction.Module,
	serviceorder.Module,
	serviceshill.Module,
	// The auction engine hands a won auction straight to the order
	// lifecycle; the interface keeps the dependency one-directional.
	fx.Provide(func(o *serviceorder.Service) serviceauction.OrderCreator { return o }),
	outbox.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Scheduler runs the periodic deadline sweeps as a standalone process.
var Scheduler = fx.Options(
	Core,
	scheduler.Module,
)

// Worker exposes background message processing: fraud analysis off the
// bid stream and notification fanout.
var Worker = fx.Options(
	Core,
	worker.Module,
	workershill.Module,
	workernotification.Module,
)

// Module is the default application wiring: HTTP serving plus the
// scheduler, which is gated by its own config switch.
var Module = fx.Options(
	HTTP,
	scheduler.Module,
)
