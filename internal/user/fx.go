package user

import (
	"github.com/smallbiznis/identity/internal/user/password"
	"github.com/smallbiznis/identity/internal/user/repository"
	"github.com/smallbiznis/identity/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.New),
	fx.Provide(func() *password.Hasher { return password.NewHasher(password.DefaultParams) }),
	fx.Provide(service.New),
)
