package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

type PostgresTransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

func (r *PostgresTransactionRepo) Create(ctx context.Context, tx *gorm.DB, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	// associations are written by their own repositories
	if err := tx.WithContext(ctx).Omit("Household", "Project").Create(t).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

func (r *PostgresTransactionRepo) FindScoped(ctx context.Context, db *gorm.DB, scope authz.Scope, id string) (*domain.Transaction, error) {
	if db == nil {
		db = r.db
	}
	return findScoped(db.WithContext(ctx), scope, id)
}

// FindForUpdate serializes writers of one record:
// SELECT ... FROM transactions WHERE id = ? FOR UPDATE
func (r *PostgresTransactionRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, scope authz.Scope, id string) (*domain.Transaction, error) {
	q := tx.WithContext(ctx)
	// SQLite serializes writers on its own and has no row locks
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return findScoped(q, scope, id)
}

func findScoped(q *gorm.DB, scope authz.Scope, id string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := scope.Apply(q, "transactions.organization_id").
		Preload("Household").Preload("Project").
		Where("transactions.id = ?", id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("transaction")
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return &t, nil
}

func (r *PostgresTransactionRepo) List(ctx context.Context, scope authz.Scope, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	q := scope.Apply(r.db.WithContext(ctx).Model(&domain.Transaction{}), "transactions.organization_id").
		Joins("JOIN households ON households.id = transactions.household_id")

	if filter.Status != "" {
		q = q.Where("transactions.status = ?", filter.Status)
	}
	if filter.ProjectID != "" {
		q = q.Where("transactions.project_id = ?", filter.ProjectID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(households.name) LIKE ? OR households.national_id LIKE ? OR transactions.id LIKE ?", like, like, like)
	}

	var list []domain.Transaction
	err := q.Preload("Household").Preload("Project").
		Order("transactions.created_at ASC, transactions.id ASC").
		Find(&list).Error
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return list, nil
}

// MarkDisbursed moves a PENDING or HOLD record to DISBURSED and stores the
// settlement:
// UPDATE transactions SET status = 'DISBURSED', ... WHERE id = ? AND status = ?
//   AND total_approved = ? AND supplementary_amount = ?
// It reports false when the row no longer matches the snapshot.
func (r *PostgresTransactionRepo) MarkDisbursed(ctx context.Context, tx *gorm.DB, snapshot *domain.Transaction, s domain.Settlement) (bool, error) {
	result := tx.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ? AND total_approved = ? AND supplementary_amount = ?",
			snapshot.ID, snapshot.Status, snapshot.TotalApproved, snapshot.SupplementaryAmount).
		Updates(map[string]interface{}{
			"status":            domain.StatusDisbursed,
			"disbursement_date": s.At,
			"settled_interest":  s.Interest,
			"settled_rate":      decimal.NewNullDecimal(s.Rate),
			"updated_at":        s.At,
		})
	if result.Error != nil {
		return false, apperror.Storage(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkRefunded resets a DISBURSED record to HOLD with a new principal and
// restarts interest at the refund time.
func (r *PostgresTransactionRepo) MarkRefunded(ctx context.Context, tx *gorm.DB, id string, principal int64, at time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, domain.StatusDisbursed).
		Updates(map[string]interface{}{
			"status":                  domain.StatusHold,
			"total_approved":          principal,
			"disbursement_date":       nil,
			"effective_interest_date": at,
			"supplementary_amount":    0,
			"supplementary_note":      nil,
			"settled_interest":        0,
			"settled_rate":            decimal.NullDecimal{},
			"updated_at":              at,
		})
	if result.Error != nil {
		return false, apperror.Storage(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// AddSupplementary increments the supplementary amount in place so that
// concurrent additions never lose an update. A nil note keeps the old one.
func (r *PostgresTransactionRepo) AddSupplementary(ctx context.Context, tx *gorm.DB, id string, amount int64, note *string) (bool, error) {
	updates := map[string]interface{}{
		"supplementary_amount": gorm.Expr("supplementary_amount + ?", amount),
	}
	if note != nil {
		updates["supplementary_note"] = *note
	}
	result := tx.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status <> ?", id, domain.StatusDisbursed).
		Updates(updates)
	if result.Error != nil {
		return false, apperror.Storage(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresTransactionRepo) UpdateNotes(ctx context.Context, tx *gorm.DB, id, notes string) error {
	err := tx.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ?", id).
		Update("notes", notes).Error
	if err != nil {
		return apperror.Storage(err)
	}
	return nil
}

func (r *PostgresTransactionRepo) DeleteByProject(ctx context.Context, tx *gorm.DB, projectID string) error {
	ids := tx.Model(&domain.Transaction{}).Select("id").Where("project_id = ?", projectID)
	if err := tx.WithContext(ctx).Where("transaction_id IN (?)", ids).Delete(&domain.HistoryEntry{}).Error; err != nil {
		return apperror.Storage(err)
	}
	if err := tx.WithContext(ctx).Where("project_id = ?", projectID).Delete(&domain.Transaction{}).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

func (r *PostgresTransactionRepo) AppendHistory(ctx context.Context, tx *gorm.DB, h *domain.HistoryEntry) error {
	if err := tx.WithContext(ctx).Create(h).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

// History returns the history of each record in insertion order.
func (r *PostgresTransactionRepo) History(ctx context.Context, db *gorm.DB, transactionIDs ...string) (map[string][]domain.HistoryEntry, error) {
	out := make(map[string][]domain.HistoryEntry, len(transactionIDs))
	if len(transactionIDs) == 0 {
		return out, nil
	}
	if db == nil {
		db = r.db
	}
	var rows []domain.HistoryEntry
	err := db.WithContext(ctx).
		Where("transaction_id IN ?", transactionIDs).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperror.Storage(err)
	}
	for _, h := range rows {
		out[h.TransactionID] = append(out[h.TransactionID], h)
	}
	return out, nil
}

// Totals groups record counts and approved amounts by project and status.
func (r *PostgresTransactionRepo) Totals(ctx context.Context, scope authz.Scope, projectIDs ...string) ([]domain.StatusTotals, error) {
	q := scope.Apply(r.db.WithContext(ctx).Model(&domain.Transaction{}), "organization_id")
	if len(projectIDs) > 0 {
		q = q.Where("project_id IN ?", projectIDs)
	}
	var totals []domain.StatusTotals
	err := q.Select("project_id, status, COUNT(*) AS count, COALESCE(SUM(total_approved), 0) AS total_approved").
		Group("project_id, status").
		Scan(&totals).Error
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return totals, nil
}

// AutoMigrate creates the compensation tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Project{},
		&domain.Household{},
		&domain.Transaction{},
		&domain.HistoryEntry{},
		&domain.InterestSetting{},
	)
}
