package passwordpolicy

import "go.uber.org/fx"

var Module = fx.Module("passwordpolicy",
	fx.Provide(NewHolder),
	fx.Provide(NewValidator),
)
