package identityprovider

import (
	"context"

	"github.com/smallbiznis/identity/internal/identityprovider/domain"
	"github.com/smallbiznis/identity/internal/identityprovider/repository"
	"github.com/smallbiznis/identity/internal/identityprovider/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("identityprovider.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(ProvidersFromConfig),
	fx.Invoke(registerBootstrap),
)

func registerBootstrap(lc fx.Lifecycle, svc domain.Service, cfgs []ProviderConfig, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return Bootstrap(ctx, svc, cfgs, log.Named("identityprovider.bootstrap"))
		},
	})
}
