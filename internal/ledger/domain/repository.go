package domain

import (
	"context"

	"gorm.io/gorm"
)

// AccountRepository persists bank accounts.
// Methods taking a db handle must receive the active transaction.
type AccountRepository interface {
	// FindByOrganization reads an account without locking it.
	FindByOrganization(ctx context.Context, organizationID string) (*BankAccount, error)

	// LockByOrganization returns the organization's account with a row lock
	// held until db commits, creating a zero-balance account first if needed.
	LockByOrganization(ctx context.Context, db *gorm.DB, organizationID string) (*BankAccount, error)

	// LockExisting is LockByOrganization for readers: a missing account is
	// NotFound rather than created.
	LockExisting(ctx context.Context, db *gorm.DB, organizationID string) (*BankAccount, error)

	// UpdateBalance writes the new balances, guarded by version.
	UpdateBalance(ctx context.Context, db *gorm.DB, acc *BankAccount) error

	// ResetOpening sets opening, current and reconciled balances to value
	// and moves the baseline to baselineEntryID.
	ResetOpening(ctx context.Context, db *gorm.DB, acc *BankAccount, value, baselineEntryID int64) error
}

// TransactionRepository persists ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, db *gorm.DB, t *BankTransaction) error

	// ListByOrganization returns entries in creation order.
	ListByOrganization(ctx context.Context, organizationID string) ([]BankTransaction, error)

	// ListAfter returns entries with id > afterID in creation order.
	ListAfter(ctx context.Context, db *gorm.DB, organizationID string, afterID int64) ([]BankTransaction, error)

	// LastID returns the newest entry id of an organization, 0 when empty.
	LastID(ctx context.Context, db *gorm.DB, organizationID string) (int64, error)
}
