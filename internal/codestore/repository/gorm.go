package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/identity/internal/codestore/domain"
	"github.com/smallbiznis/identity/pkg/db"
	"gorm.io/gorm"
)

const BackendDatabase = "database"

type gormRepo struct {
	db *gorm.DB
}

func NewGorm(conn *gorm.DB) domain.Repository {
	return &gormRepo{db: conn}
}

func (r *gormRepo) Backend() string { return BackendDatabase }

func (r *gormRepo) Create(ctx context.Context, code *domain.ExpiringCode) error {
	err := r.db.WithContext(ctx).Create(code).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrCodeCollision
	}
	return err
}

func (r *gormRepo) Take(ctx context.Context, code string) (*domain.ExpiringCode, error) {
	var taken *domain.ExpiringCode
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.ExpiringCode
		err := tx.Where("code = ?", code).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrCodeExpiredOrUnknown
		}
		if err != nil {
			return err
		}

		res := tx.Where("code = ?", code).Delete(&domain.ExpiringCode{})
		if res.Error != nil {
			return res.Error
		}
		// Another transaction redeemed the code between the read and the delete.
		if res.RowsAffected != 1 {
			return domain.ErrCodeExpiredOrUnknown
		}

		taken = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

func (r *gormRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ExpiringCode{})
	return res.RowsAffected, res.Error
}
