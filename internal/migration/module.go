package migration

import "go.uber.org/fx"

// Module provides the goose-backed migrator.
var Module = fx.Provide(New)
