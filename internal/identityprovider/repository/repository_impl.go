package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/identity/internal/identityprovider/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) FindActiveByOrigin(ctx context.Context, zoneID, origin string) (*domain.Provider, error) {
	var provider domain.Provider
	err := r.db.WithContext(ctx).
		Where("zone_id = ? AND origin_key = ? AND active = ?", zoneID, origin, true).
		First(&provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *repo) ListActive(ctx context.Context, zoneID string) ([]domain.Provider, error) {
	var providers []domain.Provider
	err := r.db.WithContext(ctx).
		Where("zone_id = ? AND active = ?", zoneID, true).
		Order("origin_key asc").
		Find(&providers).Error
	return providers, err
}

func (r *repo) Upsert(ctx context.Context, provider *domain.Provider) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "zone_id"}, {Name: "origin_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "type", "active", "config", "updated_at"}),
	}).Create(provider).Error
	if err != nil {
		return err
	}
	// reload so an updated row reports its existing id
	return r.db.WithContext(ctx).
		Where("zone_id = ? AND origin_key = ?", provider.ZoneID, provider.OriginKey).
		First(provider).Error
}
