package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
)

type PostgresAccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

func (r *PostgresAccountRepo) FindByOrganization(ctx context.Context, organizationID string) (*domain.BankAccount, error) {
	var account domain.BankAccount
	err := r.db.WithContext(ctx).Where("organization_id = ?", organizationID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("bank account")
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return &account, nil
}

// LockByOrganization is the serialization point of every balance change:
// SELECT ... FOR UPDATE on the account row, inside the caller's transaction.
func (r *PostgresAccountRepo) LockByOrganization(ctx context.Context, tx *gorm.DB, organizationID string) (*domain.BankAccount, error) {
	acc, err := lockAccount(ctx, tx, organizationID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Storage(err)
	}

	// first ledger write of this organization; a concurrent creator wins quietly
	create := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}},
		DoNothing: true,
	}).Create(&domain.BankAccount{OrganizationID: organizationID, Version: 1})
	if create.Error != nil {
		return nil, apperror.Storage(create.Error)
	}

	acc, err = lockAccount(ctx, tx, organizationID)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return acc, nil
}

// LockExisting locks the organization's account without creating one.
func (r *PostgresAccountRepo) LockExisting(ctx context.Context, tx *gorm.DB, organizationID string) (*domain.BankAccount, error) {
	acc, err := lockAccount(ctx, tx, organizationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("bank account")
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return acc, nil
}

func lockAccount(ctx context.Context, tx *gorm.DB, organizationID string) (*domain.BankAccount, error) {
	q := tx.WithContext(ctx)
	// SQLite serializes writers on its own and has no row locks
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account domain.BankAccount
	if err := q.Where("organization_id = ?", organizationID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateBalance applies an optimistic version check on top of the row lock:
// UPDATE bank_accounts SET ..., version = version + 1 WHERE id = ? AND version = ?
func (r *PostgresAccountRepo) UpdateBalance(ctx context.Context, tx *gorm.DB, acc *domain.BankAccount) error {
	result := tx.WithContext(ctx).Model(&domain.BankAccount{}).
		Where("id = ? AND version = ?", acc.ID, acc.Version).
		Updates(map[string]interface{}{
			"current_balance":    acc.CurrentBalance,
			"reconciled_balance": acc.ReconciledBalance,
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return apperror.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("bank account %d modified concurrently", acc.ID)
	}
	acc.Version++
	return nil
}

func (r *PostgresAccountRepo) ResetOpening(ctx context.Context, tx *gorm.DB, acc *domain.BankAccount, value, baselineEntryID int64) error {
	result := tx.WithContext(ctx).Model(&domain.BankAccount{}).
		Where("id = ? AND version = ?", acc.ID, acc.Version).
		Updates(map[string]interface{}{
			"opening_balance":    value,
			"current_balance":    value,
			"reconciled_balance": value,
			"baseline_entry_id":  baselineEntryID,
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return apperror.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("bank account %d modified concurrently", acc.ID)
	}
	acc.OpeningBalance = value
	acc.CurrentBalance = value
	acc.ReconciledBalance = value
	acc.BaselineEntryID = baselineEntryID
	acc.Version++
	return nil
}

// ---------------------------------------------------------

type PostgresTransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

func (r *PostgresTransactionRepo) Create(ctx context.Context, tx *gorm.DB, t *domain.BankTransaction) error {
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

func (r *PostgresTransactionRepo) ListByOrganization(ctx context.Context, organizationID string) ([]domain.BankTransaction, error) {
	return r.ListAfter(ctx, r.db, organizationID, 0)
}

func (r *PostgresTransactionRepo) ListAfter(ctx context.Context, db *gorm.DB, organizationID string, afterID int64) ([]domain.BankTransaction, error) {
	var entries []domain.BankTransaction
	err := db.WithContext(ctx).
		Where("organization_id = ? AND id > ?", organizationID, afterID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return entries, nil
}

func (r *PostgresTransactionRepo) LastID(ctx context.Context, db *gorm.DB, organizationID string) (int64, error) {
	var last int64
	err := db.WithContext(ctx).Model(&domain.BankTransaction{}).
		Where("organization_id = ?", organizationID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, apperror.Storage(err)
	}
	return last, nil
}

// AutoMigrate creates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.BankAccount{}, &domain.BankTransaction{})
}
