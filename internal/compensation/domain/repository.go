package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

// TransactionFilter narrows record listings.
type TransactionFilter struct {
	Status    Status
	ProjectID string
	Search    string // household name, national id or record id
}

// StatusTotals aggregates records of one status.
type StatusTotals struct {
	ProjectID     string `json:"projectId,omitempty"`
	Status        Status `json:"status"`
	Count         int64  `json:"count"`
	TotalApproved int64  `json:"totalApproved"`
}

// HouseholdPatch lists the reference fields an edit may change.
type HouseholdPatch struct {
	Name           *string
	NationalID     *string
	Address        *string
	DecisionNumber *string
	DecisionDate   *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p HouseholdPatch) IsEmpty() bool {
	return p.Name == nil && p.NationalID == nil && p.Address == nil && p.DecisionNumber == nil && p.DecisionDate == nil
}

// ProjectPatch lists the project fields an edit may change. Money fields and
// the interest start date are not editable.
type ProjectPatch struct {
	Name     *string
	Location *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProjectPatch) IsEmpty() bool {
	return p.Name == nil && p.Location == nil
}

// Settlement is what a disbursement fixes on a record.
type Settlement struct {
	At       time.Time
	Interest int64
	Rate     decimal.Decimal
}

// ProjectRepository persists projects. Methods taking a db handle must
// receive the active transaction when called inside one.
type ProjectRepository interface {
	Create(ctx context.Context, db *gorm.DB, p *Project) error
	CodeExists(ctx context.Context, db *gorm.DB, organizationID, code string) (bool, error)
	FindScoped(ctx context.Context, db *gorm.DB, scope authz.Scope, id string) (*Project, error)
	List(ctx context.Context, scope authz.Scope) ([]Project, error)
	Update(ctx context.Context, db *gorm.DB, id string, patch ProjectPatch) error
	Delete(ctx context.Context, db *gorm.DB, id string) error
	Count(ctx context.Context, scope authz.Scope) (int64, error)
}

// HouseholdRepository persists household reference data.
type HouseholdRepository interface {
	// Upsert matches on (organization, household code), updates the
	// reference fields of an existing row or inserts a new one, and leaves
	// the stored id on h.
	Upsert(ctx context.Context, db *gorm.DB, h *Household) error
	Patch(ctx context.Context, db *gorm.DB, id string, patch HouseholdPatch) error
}

// TransactionRepository persists compensation records and their history.
type TransactionRepository interface {
	Create(ctx context.Context, db *gorm.DB, t *Transaction) error

	// FindScoped loads a record with its household and project, or a
	// not-found error when it is absent or outside scope.
	FindScoped(ctx context.Context, db *gorm.DB, scope authz.Scope, id string) (*Transaction, error)
	// FindForUpdate is FindScoped holding the record's row lock until the
	// transaction ends. Every mutating workflow loads through it.
	FindForUpdate(ctx context.Context, tx *gorm.DB, scope authz.Scope, id string) (*Transaction, error)
	List(ctx context.Context, scope authz.Scope, filter TransactionFilter) ([]Transaction, error)

	// The transition writes below are conditional on the current status and
	// report whether the row moved. MarkDisbursed also requires the principal
	// and supplementary amount of the snapshot the settlement was computed
	// from.
	MarkDisbursed(ctx context.Context, db *gorm.DB, snapshot *Transaction, s Settlement) (bool, error)
	MarkRefunded(ctx context.Context, db *gorm.DB, id string, principal int64, at time.Time) (bool, error)
	AddSupplementary(ctx context.Context, db *gorm.DB, id string, amount int64, note *string) (bool, error)
	UpdateNotes(ctx context.Context, db *gorm.DB, id, notes string) error

	DeleteByProject(ctx context.Context, db *gorm.DB, projectID string) error

	AppendHistory(ctx context.Context, db *gorm.DB, h *HistoryEntry) error
	History(ctx context.Context, db *gorm.DB, transactionIDs ...string) (map[string][]HistoryEntry, error)

	Totals(ctx context.Context, scope authz.Scope, projectIDs ...string) ([]StatusTotals, error)
}

// InterestRepository persists the rate history.
type InterestRepository interface {
	Create(ctx context.Context, db *gorm.DB, s *InterestSetting) error

	// Latest returns the setting with the most recent EffectiveFrom, or nil
	// when none exists.
	Latest(ctx context.Context, db *gorm.DB, organizationID string) (*InterestSetting, error)
	List(ctx context.Context, scope authz.Scope) ([]InterestSetting, error)
}
