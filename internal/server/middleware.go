package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/identity/internal/audit/auditcontext"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/principal"
	sessiondomain "github.com/smallbiznis/identity/internal/session/domain"
	sessionservice "github.com/smallbiznis/identity/internal/session/service"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"github.com/smallbiznis/identity/pkg/zonectx"
	"go.uber.org/zap"
)

const (
	rateLimitReasonClientRate = "client-rate"
	rateLimitReasonCodeInUse  = "code-in-use"
)

// RequestMetadata records the caller's request id, address and agent for
// audit entries written while serving the request.
func RequestMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auditcontext.WithRequestMetadata(
			c.Request.Context(),
			c.GetString("request_id"),
			c.ClientIP(),
			c.Request.UserAgent(),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// LoadSession resolves the session cookie into a principal. Requests without
// a live session continue anonymously.
func (s *Server) LoadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		sess, err := s.sessionSvc.Authenticate(ctx, token)
		if err != nil {
			if !isSessionError(err) {
				AbortWithError(c, err)
				return
			}
			ctxlogger.WithContext(ctx, s.log).Debug("discarding session cookie", zap.Error(err))
			s.sessions.Clear(c)
			c.Next()
			return
		}

		p := sessionservice.PrincipalOf(sess)
		ctx = principal.WithPrincipal(ctx, p)
		if p.IsAuthenticated() {
			ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeUser), p.UserID)
		} else {
			ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeInvitee), p.UserID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal.FromContext(c.Request.Context())
		if err := principal.RequireAuthenticated(p); err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeZoneAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principal.FromContext(c.Request.Context())
		if err := s.authzSvc.Authorize(c.Request.Context(), p, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// InvitationRateLimit throttles the acceptance endpoints per client address.
func (s *Server) InvitationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.AllowAccept(ctx, c.ClientIP())
		if err != nil {
			ctxlogger.WithContext(ctx, s.log).Warn("invitation rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.denyRateLimit(c, rateLimitReasonClientRate)
			return
		}
		c.Next()
	}
}

func (s *Server) denyRateLimit(c *gin.Context, reason string) {
	route := strings.TrimSpace(c.FullPath())
	if route == "" {
		route = "unknown"
	}
	ctxlogger.WithContext(c.Request.Context(), s.log).Warn("invitation rate limit exceeded",
		zap.String("reason", reason),
		zap.String("route", route),
	)
	s.obsMetrics.RecordRateLimitDenied(route, reason)
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func zoneIDFromRequest(c *gin.Context) string {
	return zonectx.ZoneIDOrDefault(c.Request.Context())
}

func isSessionError(err error) bool {
	return errors.Is(err, sessiondomain.ErrInvalidSession) ||
		errors.Is(err, sessiondomain.ErrSessionExpired) ||
		errors.Is(err, sessiondomain.ErrSessionRevoked)
}
