package bid

import "go.uber.org/fx"

// Module provides the bid ledger repository to Fx.
var Module = fx.Provide(NewRepository)
