// Package service implements the compensation workflows: project import,
// disbursement, refund, supplementary payments and interest settings. Every
// money-moving action runs as one gorm transaction spanning the record, the
// bank ledger and the audit log.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	ledgerdomain "github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

// Ledger appends entries to an organization's bank ledger inside the
// caller's transaction.
type Ledger interface {
	ApplyEntry(ctx context.Context, tx *gorm.DB, e ledgerdomain.Entry) (*ledgerdomain.BankTransaction, error)
}

// AuditRecorder appends audit entries inside a transaction.
type AuditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, caller authz.Caller, organizationID, action, target, details string) error
}

// RateSource resolves an organization's current annual rate.
type RateSource interface {
	Rate(ctx context.Context, db *gorm.DB, organizationID string) (decimal.Decimal, error)
}

// TransactionView is a record together with its history and the interest
// figures derived for display.
type TransactionView struct {
	domain.Transaction
	History          []domain.HistoryEntry `json:"history"`
	InterestBaseDate *time.Time            `json:"interestBaseDate"`
	InterestRate     decimal.Decimal       `json:"interestRate"`
	DaysAccrued      int64                 `json:"daysAccrued"`
	Interest         int64                 `json:"interest"`
	InterestFrozen   bool                  `json:"interestFrozen"`
	TotalPayable     int64                 `json:"totalPayable"`
}

func householdLabel(t *domain.Transaction) string {
	if t.Household.Name == "" {
		return t.HouseholdID
	}
	return t.Household.Name + " (" + t.Household.HouseholdCode + ")"
}

func int64Ptr(v int64) *int64 { return &v }
