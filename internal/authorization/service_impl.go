package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/principal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, p *principal.Principal, object string, action string) error {
	if err := principal.RequireAuthenticated(p); err != nil {
		return err
	}
	if strings.TrimSpace(p.UserID) == "" {
		return ErrInvalidActor
	}
	zoneID := strings.TrimSpace(p.ZoneID)
	if zoneID == "" {
		return ErrInvalidZone
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	domain := zoneDomain(zoneID)
	for _, subject := range subjectsOf(p) {
		allowed, err := s.enforcer.Enforce(subject, domain, object, action)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
	}

	s.auditDenied(ctx, p, object, action)
	return ErrForbidden
}

func (s *ServiceImpl) Grant(ctx context.Context, userID string, role string, zoneID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidActor
	}
	zoneID = strings.TrimSpace(zoneID)
	if zoneID == "" {
		return ErrInvalidZone
	}

	subject := userSubject(userID)
	domain := zoneDomain(zoneID)
	has, err := s.enforcer.HasGroupingPolicy(subject, role, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	if _, err := s.enforcer.AddGroupingPolicy(subject, role, domain); err != nil {
		return err
	}
	s.log.Info("role granted",
		zap.String("user_id", userID),
		zap.String("role", role),
		zap.String("zone_id", zoneID),
	)
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, p *principal.Principal, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	actorID := p.UserID
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, p.ZoneID, string(auditdomain.ActorTypeUser), &actorID, auditdomain.ActionAuthorizationDenied, "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"subject": userSubject(p.UserID),
	})
}

func subjectsOf(p *principal.Principal) []string {
	subjects := make([]string, 0, len(p.Authorities)+1)
	subjects = append(subjects, userSubject(p.UserID))
	for _, authority := range p.Authorities {
		subjects = append(subjects, "authority:"+authority)
	}
	return subjects
}

func userSubject(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

func zoneDomain(zoneID string) string {
	return fmt.Sprintf("zone:%s", zoneID)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"authority:" + principal.AuthorityInvite, "*", ObjectInvitation, ActionInvitationCreate},

		{RoleZoneAdmin, "*", ObjectInvitation, ActionInvitationCreate},
		{RoleZoneAdmin, "*", ObjectAuditLog, ActionAuditLogView},
		{RoleZoneAdmin, "*", ObjectIdentityProvider, ActionIdentityProviderManage},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
