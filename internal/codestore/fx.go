package codestore

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/codestore/domain"
	"github.com/smallbiznis/identity/internal/codestore/repository"
	"github.com/smallbiznis/identity/internal/codestore/service"
	"github.com/smallbiznis/identity/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("codestore.service",
	fx.Provide(provideRepository),
	fx.Provide(service.New),
)

func provideRepository(cfg config.Config, conn *gorm.DB, client *redis.Client, clk clock.Clock, log *zap.Logger) domain.Repository {
	if cfg.CodeStore.Backend == config.CodeStoreRedis {
		log.Info("expiring codes stored in redis", zap.String("addr", cfg.Redis.Addr))
		return repository.NewRedis(client, cfg.CodeStore.KeyPrefix, clk.Now)
	}
	return repository.NewGorm(conn)
}
