package session

import (
	"github.com/smallbiznis/identity/internal/session/repository"
	"github.com/smallbiznis/identity/internal/session/service"
	"go.uber.org/fx"
)

var Module = fx.Module("session",
	fx.Provide(NewManager),
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
