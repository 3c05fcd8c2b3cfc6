package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/interest"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

var maxRate = decimal.NewFromInt(100)

// UpdateRateRequest appends a new rate to the history.
type UpdateRateRequest struct {
	OrganizationID string
	AnnualRate     decimal.Decimal
	EffectiveFrom  *time.Time // defaults to now
	Note           string
}

// CurrentRate is the setting with the most recent effective date, possibly
// scheduled for the future, or the default when none exists.
type CurrentRate struct {
	OrganizationID string          `json:"organizationId"`
	AnnualRate     decimal.Decimal `json:"annualRate"`
	EffectiveFrom  *time.Time      `json:"effectiveFrom"`
	Note           string          `json:"note,omitempty"`
	IsDefault      bool            `json:"isDefault"`
}

// RateChange is one step of the rate history.
type RateChange struct {
	OrganizationID string           `json:"organizationId"`
	Timestamp      time.Time        `json:"timestamp"`
	OldRate        *decimal.Decimal `json:"oldRate"`
	NewRate        decimal.Decimal  `json:"newRate"`
	Note           string           `json:"note"`
	ActorID        string           `json:"actorId"`
	ActorName      string           `json:"actorName"`
}

type RateService struct {
	db          *gorm.DB
	repo        domain.InterestRepository
	audit       AuditRecorder
	logger      *zap.Logger
	defaultRate decimal.Decimal
	now         func() time.Time
}

func NewRateService(db *gorm.DB, repo domain.InterestRepository, recorder AuditRecorder, logger *zap.Logger) *RateService {
	return &RateService{
		db:          db,
		repo:        repo,
		audit:       recorder,
		logger:      logger,
		defaultRate: interest.DefaultRate,
		now:         time.Now,
	}
}

// WithDefaultRate sets the rate used before any setting exists.
func (s *RateService) WithDefaultRate(rate decimal.Decimal) *RateService {
	if rate.IsPositive() {
		s.defaultRate = rate
	}
	return s
}

// WithClock replaces the time source, for tests.
func (s *RateService) WithClock(now func() time.Time) *RateService {
	s.now = now
	return s
}

// Rate returns the organization's current rate: the setting with the most
// recent effective date, or the default. db may be the active transaction
// or nil.
func (s *RateService) Rate(ctx context.Context, db *gorm.DB, organizationID string) (decimal.Decimal, error) {
	setting, err := s.repo.Latest(ctx, db, organizationID)
	if err != nil {
		return decimal.Zero, err
	}
	if setting == nil {
		return s.defaultRate, nil
	}
	return setting.AnnualRate, nil
}

func (s *RateService) Current(ctx context.Context, caller authz.Caller, organizationID string) (*CurrentRate, error) {
	orgID, err := caller.TargetOrganization(organizationID)
	if err != nil {
		return nil, err
	}
	setting, err := s.repo.Latest(ctx, nil, orgID)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		now := s.now()
		return &CurrentRate{OrganizationID: orgID, AnnualRate: s.defaultRate, EffectiveFrom: &now, IsDefault: true}, nil
	}
	from := setting.EffectiveFrom
	return &CurrentRate{
		OrganizationID: orgID,
		AnnualRate:     setting.AnnualRate,
		EffectiveFrom:  &from,
		Note:           setting.Note,
	}, nil
}

// Update appends a rate setting. Disbursed records keep the rate stored at
// settlement, so a new setting only affects open records.
func (s *RateService) Update(ctx context.Context, caller authz.Caller, req UpdateRateRequest) (*domain.InterestSetting, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("changing the interest rate requires an administrator")
	}
	orgID, err := caller.TargetOrganization(req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !req.AnnualRate.IsPositive() || req.AnnualRate.GreaterThan(maxRate) {
		return nil, apperror.Validation("annualRate", "must be greater than 0 and at most 100")
	}

	now := s.now()
	effectiveFrom := now
	if req.EffectiveFrom != nil {
		effectiveFrom = *req.EffectiveFrom
	}

	var setting *domain.InterestSetting
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		previous, err := s.Rate(ctx, tx, orgID)
		if err != nil {
			return err
		}
		note := req.Note
		if note == "" {
			note = fmt.Sprintf("changed from %s%% to %s%%", previous.String(), req.AnnualRate.String())
		}

		setting = &domain.InterestSetting{
			OrganizationID: orgID,
			AnnualRate:     req.AnnualRate,
			EffectiveFrom:  effectiveFrom,
			Note:           note,
			CreatedByID:    caller.UserID,
			CreatedByName:  caller.Name,
			CreatedAt:      now,
		}
		if err := s.repo.Create(ctx, tx, setting); err != nil {
			return err
		}
		details := fmt.Sprintf("interest rate %s%% -> %s%% effective %s", previous.String(), req.AnnualRate.String(), effectiveFrom.Format(time.RFC3339))
		return s.audit.Record(ctx, tx, caller, orgID, audit.ActionUpdateInterestRate, "interest rate", details)
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.logger.Info("Interest rate updated",
		zap.String("organization_id", orgID),
		zap.String("annual_rate", req.AnnualRate.String()),
		zap.Time("effective_from", effectiveFrom),
	)
	return setting, nil
}

// History lists rate changes oldest first, each paired with the rate it
// replaced within the same organization.
func (s *RateService) History(ctx context.Context, caller authz.Caller) ([]RateChange, error) {
	settings, err := s.repo.List(ctx, caller.Scope())
	if err != nil {
		return nil, err
	}
	last := make(map[string]decimal.Decimal)
	changes := make([]RateChange, 0, len(settings))
	for _, st := range settings {
		c := RateChange{
			OrganizationID: st.OrganizationID,
			Timestamp:      st.EffectiveFrom,
			NewRate:        st.AnnualRate,
			Note:           st.Note,
			ActorID:        st.CreatedByID,
			ActorName:      st.CreatedByName,
		}
		if prev, ok := last[st.OrganizationID]; ok {
			c.OldRate = &prev
		} else {
			def := s.defaultRate
			c.OldRate = &def
		}
		last[st.OrganizationID] = st.AnnualRate
		changes = append(changes, c)
	}
	return changes, nil
}
