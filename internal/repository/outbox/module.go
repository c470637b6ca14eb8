package outbox

import "go.uber.org/fx"

// Module provides the outbox repository to Fx.
var Module = fx.Provide(NewRepository)
