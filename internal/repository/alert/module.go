package alert

import "go.uber.org/fx"

// Module provides the shill alert repository to Fx.
var Module = fx.Provide(NewRepository)
