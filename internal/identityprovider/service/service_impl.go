package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/cache"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/identityprovider/domain"
	"github.com/smallbiznis/identity/pkg/zonectx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const lookupTTL = 30 * time.Second

type Params struct {
	fx.In

	Log   *zap.Logger
	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	lookup *cache.TTLCache[string, domain.Provider]
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("identityprovider.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  p.Clock,
		lookup: cache.NewTTLCache[string, domain.Provider](p.Clock.Now),
	}
}

// RetrieveByOrigin resolves the active provider registered under origin in
// zoneID. An empty origin resolves the local provider.
func (s *Service) RetrieveByOrigin(ctx context.Context, origin, zoneID string) (*domain.Provider, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = domain.OriginLocal
	}
	zoneID = strings.TrimSpace(zoneID)
	if zoneID == "" {
		zoneID = zonectx.ZoneIDOrDefault(ctx)
	}

	key := zoneID + "/" + origin
	if cached, ok := s.lookup.Get(key); ok {
		return &cached, nil
	}

	provider, err := s.repo.FindActiveByOrigin(ctx, zoneID, origin)
	if err != nil {
		return nil, err
	}
	s.lookup.Set(key, *provider, lookupTTL)
	return provider, nil
}

func (s *Service) ListActive(ctx context.Context, zoneID string) ([]domain.Provider, error) {
	if strings.TrimSpace(zoneID) == "" {
		zoneID = zonectx.ZoneIDOrDefault(ctx)
	}
	return s.repo.ListActive(ctx, zoneID)
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Provider, error) {
	origin := strings.TrimSpace(req.OriginKey)
	if origin == "" {
		return nil, domain.ErrInvalidOrigin
	}
	zoneID := strings.TrimSpace(req.ZoneID)
	if zoneID == "" {
		zoneID = zonectx.DefaultZoneID
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = origin
	}
	kind := req.Type
	if kind == "" {
		kind = domain.ParseKind(origin)
	}

	now := s.clock.Now()
	provider := &domain.Provider{
		ID:        s.genID.Generate(),
		ZoneID:    zoneID,
		OriginKey: origin,
		Name:      name,
		Type:      kind,
		Active:    req.Active,
		Config:    datatypes.JSONMap(req.Config),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, provider); err != nil {
		return nil, err
	}
	s.lookup.Delete(zoneID + "/" + origin)

	s.log.Info("identity provider registered",
		zap.String("zone_id", zoneID),
		zap.String("origin", origin),
		zap.String("type", string(kind)),
		zap.Bool("active", req.Active),
	)
	return provider, nil
}
