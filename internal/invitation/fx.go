package invitation

import (
	"github.com/smallbiznis/identity/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(service.NewIssuer),
	fx.Provide(service.NewOrchestrator),
)
