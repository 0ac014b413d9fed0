package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/audit"
	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/cache"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/codestore"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/identityprovider"
	"github.com/smallbiznis/identity/internal/invitation"
	"github.com/smallbiznis/identity/internal/migration"
	"github.com/smallbiznis/identity/internal/notification"
	"github.com/smallbiznis/identity/internal/observability"
	"github.com/smallbiznis/identity/internal/passwordpolicy"
	"github.com/smallbiznis/identity/internal/ratelimit"
	"github.com/smallbiznis/identity/internal/scheduler"
	"github.com/smallbiznis/identity/internal/server"
	"github.com/smallbiznis/identity/internal/session"
	"github.com/smallbiznis/identity/internal/user"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/smallbiznis/identity/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		log.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		cache.Module,
		clock.Module,
		migration.Module,

		// Domains
		codestore.Module,
		user.Module,
		identityprovider.Module,
		passwordpolicy.Module,
		notification.Module,
		session.Module,
		audit.Module,
		authorization.Module,
		invitation.Module,
		ratelimit.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
