package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invitationdomain "github.com/smallbiznis/identity/internal/invitation/domain"
	invitationservice "github.com/smallbiznis/identity/internal/invitation/service"
	"github.com/smallbiznis/identity/internal/passwordpolicy"
	"github.com/smallbiznis/identity/internal/principal"
	sessiondomain "github.com/smallbiznis/identity/internal/session/domain"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

type sendInvitationsRequest struct {
	Emails      []string `json:"emails"`
	RedirectURI string   `json:"redirect_uri"`
	ClientID    string   `json:"client_id"`
	Origin      string   `json:"origin"`
}

type acceptInvitationForm struct {
	Password             string `form:"password"`
	PasswordConfirmation string `form:"password_confirmation"`
	Code                 string `form:"code"`
	ClientID             string `form:"client_id"`
	RedirectURI          string `form:"redirect_uri"`
}

type invitationErrorResponse struct {
	ErrorMessageCode string `json:"error_message_code,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	Email            string `json:"email,omitempty"`
}

func (s *Server) SendInvitations(c *gin.Context) {
	var req sendInvitationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inviter, _ := principal.FromContext(c.Request.Context())
	resp, err := s.issuer.InviteUsers(c.Request.Context(), invitationdomain.BatchInviteRequest{
		Emails:      req.Emails,
		RedirectURI: strings.TrimSpace(req.RedirectURI),
		ClientID:    strings.TrimSpace(req.ClientID),
		Origin:      strings.TrimSpace(req.Origin),
		ZoneID:      zoneIDFromRequest(c),
		Inviter:     inviter,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) PresentInvitation(c *gin.Context) {
	ctx := c.Request.Context()
	presentation, err := s.orchestrator.PresentInvitation(ctx, invitationdomain.PresentRequest{
		Code:   strings.TrimSpace(c.Query("code")),
		ZoneID: zoneIDFromRequest(c),
	})
	if err != nil {
		if reason := invitationservice.ReasonOf(err); reason != "" {
			c.JSON(http.StatusUnprocessableEntity, invitationErrorResponse{ErrorMessageCode: reason})
			return
		}
		AbortWithError(c, err)
		return
	}

	if presentation.Challenge == nil {
		c.Redirect(http.StatusFound, presentation.RedirectURI)
		return
	}

	if err := s.installPrincipal(c, *presentation.Principal); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentation.Challenge)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	var form acceptInvitationForm
	if err := c.ShouldBind(&form); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	code := strings.TrimSpace(form.Code)
	lockToken, ok, err := s.limiter.TryLockCode(ctx, code)
	if err != nil {
		ctxlogger.WithContext(ctx, s.log).Warn("invitation code lock failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	if !ok {
		s.denyRateLimit(c, rateLimitReasonCodeInUse)
		return
	}
	defer func() {
		if err := s.limiter.ReleaseCode(ctx, code, lockToken); err != nil {
			ctxlogger.WithContext(ctx, s.log).Warn("invitation code release failed", zap.Error(err))
		}
	}()

	invited, _ := principal.FromContext(ctx)
	accepted, err := s.orchestrator.AcceptInvitation(ctx, invitationdomain.AcceptRequest{
		Password:             form.Password,
		PasswordConfirmation: form.PasswordConfirmation,
		Code:                 code,
		ClientID:             strings.TrimSpace(form.ClientID),
		RedirectURI:          strings.TrimSpace(form.RedirectURI),
		Principal:            invited,
	})
	if err != nil {
		s.writeAcceptError(c, err)
		return
	}

	if err := s.installPrincipal(c, accepted.Principal); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, accepted.RedirectURI)
}

func (s *Server) writeAcceptError(c *gin.Context, err error) {
	var mismatch *invitationdomain.PasswordMismatchError
	var violation *passwordpolicy.ViolationError
	switch {
	case errors.As(err, &mismatch):
		c.JSON(http.StatusUnprocessableEntity, invitationErrorResponse{
			ErrorMessageCode: mismatch.Reason,
			Email:            mismatch.Email,
		})
	case errors.As(err, &violation):
		c.JSON(http.StatusUnprocessableEntity, invitationErrorResponse{
			ErrorMessage: violation.Error(),
		})
	default:
		if reason := invitationservice.ReasonOf(err); reason != "" {
			c.JSON(http.StatusUnprocessableEntity, invitationErrorResponse{ErrorMessageCode: reason})
			return
		}
		AbortWithError(c, err)
	}
}

// installPrincipal replaces the caller's session with a new one carrying p.
func (s *Server) installPrincipal(c *gin.Context, p principal.Principal) error {
	current, _ := s.sessions.ReadToken(c)
	started, err := s.sessionSvc.Rotate(c.Request.Context(), current, sessiondomain.StartRequest{
		Principal: p,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		return err
	}
	s.sessions.Set(c, started.RawToken, started.ExpiresAt)
	return nil
}
