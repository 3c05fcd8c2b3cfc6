// Package audit keeps the append-only trail of state-changing actions.
// Entries are always written with the caller's transaction handle so they
// commit or roll back together with the change they describe.
package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

// Action names recorded in the log.
const (
	ActionDisburse           = "DISBURSE"
	ActionRefund             = "REFUND"
	ActionSupplementary      = "ADD_SUPPLEMENTARY"
	ActionUpdateDetails      = "UPDATE_TRANSACTION"
	ActionImportProject      = "IMPORT_PROJECT"
	ActionUpdateProject      = "UPDATE_PROJECT"
	ActionDeleteProject      = "DELETE_PROJECT"
	ActionManualDeposit      = "MANUAL_DEPOSIT"
	ActionManualWithdraw     = "MANUAL_WITHDRAW"
	ActionManualAdjustment   = "MANUAL_ADJUSTMENT"
	ActionAdjustOpening      = "ADJUST_OPENING_BALANCE"
	ActionUpdateInterestRate = "UPDATE_INTEREST_RATE"
)

// DefaultListLimit caps audit log reads.
const DefaultListLimit = 1000

// Entry is one audit log row.
type Entry struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID string    `gorm:"type:varchar(64);not null;index" json:"organizationId"`
	ActorID        string    `gorm:"type:varchar(64);not null" json:"actorId"`
	ActorName      string    `gorm:"type:varchar(200)" json:"actorName"`
	ActorRole      string    `gorm:"type:varchar(50)" json:"actorRole"`
	Action         string    `gorm:"type:varchar(50);not null" json:"action"`
	Target         string    `gorm:"type:varchar(200)" json:"target"`
	Details        string    `gorm:"type:text" json:"details"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
}

func (Entry) TableName() string {
	return "audit_logs"
}

// Recorder writes and reads audit entries.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends an entry for caller within tx. organizationID is the
// organization that owns the changed data, which differs from the caller's
// own organization when a super admin acts across organizations.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, caller authz.Caller, organizationID, action, target, details string) error {
	e := &Entry{
		OrganizationID: organizationID,
		ActorID:        caller.UserID,
		ActorName:      caller.Name,
		ActorRole:      caller.Role,
		Action:         action,
		Target:         target,
		Details:        details,
		Timestamp:      r.now(),
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

// List returns the newest entries visible in scope.
func (r *Recorder) List(ctx context.Context, scope authz.Scope, limit int) ([]Entry, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	var entries []Entry
	q := scope.Apply(r.db.WithContext(ctx), "organization_id")
	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, apperror.Storage(err)
	}
	return entries, nil
}

// AutoMigrate creates the audit table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}
