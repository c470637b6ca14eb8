package http

import (
	"go.uber.org/fx"

	alerttransport "github.com/agritrade/stockyard/internal/transport/http/alert"
	auctiontransport "github.com/agritrade/stockyard/internal/transport/http/auction"
	ordertransport "github.com/agritrade/stockyard/internal/transport/http/order"
	webhooktransport "github.com/agritrade/stockyard/internal/transport/http/webhook"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	auctiontransport.Module,
	ordertransport.Module,
	webhooktransport.Module,
	alerttransport.Module,
)
