package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

type PostgresInterestRepo struct {
	db *gorm.DB
}

func NewInterestRepo(db *gorm.DB) *PostgresInterestRepo {
	return &PostgresInterestRepo{db: db}
}

func (r *PostgresInterestRepo) Create(ctx context.Context, tx *gorm.DB, s *domain.InterestSetting) error {
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

// Latest picks the setting with the most recent effective_from, scheduled
// ones included. Ties resolve to the most recently written row.
func (r *PostgresInterestRepo) Latest(ctx context.Context, db *gorm.DB, organizationID string) (*domain.InterestSetting, error) {
	if db == nil {
		db = r.db
	}
	var s domain.InterestSetting
	err := db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("effective_from DESC, id DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return &s, nil
}

func (r *PostgresInterestRepo) List(ctx context.Context, scope authz.Scope) ([]domain.InterestSetting, error) {
	var list []domain.InterestSetting
	err := scope.Apply(r.db.WithContext(ctx), "organization_id").
		Order("effective_from ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return list, nil
}
