package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

type PostgresProjectRepo struct {
	db *gorm.DB
}

func NewProjectRepo(db *gorm.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

func (r *PostgresProjectRepo) Create(ctx context.Context, tx *gorm.DB, p *domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

func (r *PostgresProjectRepo) CodeExists(ctx context.Context, tx *gorm.DB, organizationID, code string) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&domain.Project{}).
		Where("organization_id = ? AND code = ?", organizationID, code).
		Count(&n).Error
	if err != nil {
		return false, apperror.Storage(err)
	}
	return n > 0, nil
}

func (r *PostgresProjectRepo) FindScoped(ctx context.Context, db *gorm.DB, scope authz.Scope, id string) (*domain.Project, error) {
	if db == nil {
		db = r.db
	}
	var p domain.Project
	err := scope.Apply(db.WithContext(ctx), "organization_id").Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("project")
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return &p, nil
}

func (r *PostgresProjectRepo) List(ctx context.Context, scope authz.Scope) ([]domain.Project, error) {
	var list []domain.Project
	err := scope.Apply(r.db.WithContext(ctx), "organization_id").
		Order("created_at DESC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return list, nil
}

func (r *PostgresProjectRepo) Update(ctx context.Context, tx *gorm.DB, id string, patch domain.ProjectPatch) error {
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&domain.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

func (r *PostgresProjectRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	if err := tx.WithContext(ctx).Where("id = ?", id).Delete(&domain.Project{}).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

func (r *PostgresProjectRepo) Count(ctx context.Context, scope authz.Scope) (int64, error) {
	var n int64
	if err := scope.Apply(r.db.WithContext(ctx).Model(&domain.Project{}), "organization_id").Count(&n).Error; err != nil {
		return 0, apperror.Storage(err)
	}
	return n, nil
}

// ---------------------------------------------------------

type PostgresHouseholdRepo struct {
	db *gorm.DB
}

func NewHouseholdRepo(db *gorm.DB) *PostgresHouseholdRepo {
	return &PostgresHouseholdRepo{db: db}
}

// Upsert keys households by (organization, household code). Re-importing a
// household refreshes its reference data and keeps its id.
func (r *PostgresHouseholdRepo) Upsert(ctx context.Context, tx *gorm.DB, h *domain.Household) error {
	var existing domain.Household
	err := tx.WithContext(ctx).
		Where("organization_id = ? AND household_code = ?", h.OrganizationID, h.HouseholdCode).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		if err := tx.WithContext(ctx).Create(h).Error; err != nil {
			return apperror.Storage(err)
		}
		return nil
	case err != nil:
		return apperror.Storage(err)
	}

	h.ID = existing.ID
	err = tx.WithContext(ctx).Model(&domain.Household{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"name":            h.Name,
			"national_id":     h.NationalID,
			"address":         h.Address,
			"land_origin":     h.LandOrigin,
			"land_area":       h.LandArea,
			"decision_number": h.DecisionNumber,
			"decision_date":   h.DecisionDate,
		}).Error
	if err != nil {
		return apperror.Storage(err)
	}
	return nil
}

func (r *PostgresHouseholdRepo) Patch(ctx context.Context, tx *gorm.DB, id string, patch domain.HouseholdPatch) error {
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.NationalID != nil {
		updates["national_id"] = *patch.NationalID
	}
	if patch.Address != nil {
		updates["address"] = *patch.Address
	}
	if patch.DecisionNumber != nil {
		updates["decision_number"] = *patch.DecisionNumber
	}
	if patch.DecisionDate != nil {
		updates["decision_date"] = *patch.DecisionDate
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&domain.Household{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}
