package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/config"
	invitationdomain "github.com/smallbiznis/identity/internal/invitation/domain"
	obsmiddleware "github.com/smallbiznis/identity/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/identity/internal/observability/metrics"
	obstracing "github.com/smallbiznis/identity/internal/observability/tracing"
	"github.com/smallbiznis/identity/internal/ratelimit"
	"github.com/smallbiznis/identity/internal/session"
	sessiondomain "github.com/smallbiznis/identity/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, httpMetrics *obsmetrics.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           !cfg.IsProduction(),
		DefaultZoneID:   cfg.DefaultZoneID,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(RequestMetadata())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	sessions     *session.Manager
	sessionSvc   sessiondomain.Service
	issuer       invitationdomain.Issuer
	orchestrator invitationdomain.Orchestrator
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	limiter      *ratelimit.InvitationLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Sessions     *session.Manager
	SessionSvc   sessiondomain.Service
	Issuer       invitationdomain.Issuer
	Orchestrator invitationdomain.Orchestrator
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	Limiter      *ratelimit.InvitationLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		sessions:     p.Sessions,
		sessionSvc:   p.SessionSvc,
		issuer:       p.Issuer,
		orchestrator: p.Orchestrator,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		limiter:      p.Limiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerInvitationRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerInvitationRoutes() {
	invitations := s.engine.Group("/invitations", s.LoadSession())

	invitations.POST("", s.AuthRequired(), s.SendInvitations)
	invitations.GET("/accept", s.InvitationRateLimit(), s.PresentInvitation)
	invitations.POST("/accept.do", s.InvitationRateLimit(), s.AcceptInvitation)

	// retired pages
	for _, path := range []string{"/sent", "/new", "/new.do"} {
		invitations.GET(path, s.NotFound)
		invitations.POST(path, s.NotFound)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.LoadSession(), s.AuthRequired())

	admin.GET("/audit_logs", s.authorizeZoneAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(s.NotFound)
}

func (s *Server) NotFound(c *gin.Context) {
	AbortWithError(c, ErrNotFound)
}
