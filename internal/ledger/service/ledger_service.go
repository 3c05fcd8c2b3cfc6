package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

// AuditRecorder appends audit entries inside a transaction.
type AuditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, caller authz.Caller, organizationID, action, target, details string) error
}

// ManualEntryRequest is a user-initiated ledger movement not tied to a
// compensation record.
type ManualEntryRequest struct {
	OrganizationID string // optional; super admins only
	Type           domain.EntryType
	Amount         int64 // magnitude for DEPOSIT/WITHDRAW, signed for ADJUSTMENT
	Note           string
	Date           *time.Time
}

// LedgerService owns the bank account aggregate. It is the only writer of
// account balances.
type LedgerService struct {
	db          *gorm.DB // opens transactions
	accountRepo domain.AccountRepository
	txRepo      domain.TransactionRepository
	audit       AuditRecorder
	logger      *zap.Logger
	now         func() time.Time
}

func NewLedgerService(db *gorm.DB, accRepo domain.AccountRepository, txRepo domain.TransactionRepository, recorder AuditRecorder, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		db:          db,
		accountRepo: accRepo,
		txRepo:      txRepo,
		audit:       recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// ApplyEntry appends one signed entry and moves the running balance. It must
// run inside tx, the caller's transaction, so the entry commits together with
// whatever business change caused it.
func (s *LedgerService) ApplyEntry(ctx context.Context, tx *gorm.DB, e domain.Entry) (*domain.BankTransaction, error) {
	if !e.Type.IsValid() {
		return nil, apperror.Validation("type", "unknown entry type %q", e.Type)
	}
	if e.OrganizationID == "" {
		return nil, apperror.Validation("organizationId", "is required")
	}

	// 1. Serialize on the account row
	acc, err := s.accountRepo.LockByOrganization(ctx, tx, e.OrganizationID)
	if err != nil {
		return nil, err
	}

	// 2. Derive the new balance from the locked snapshot
	newBalance := acc.CurrentBalance + e.Amount
	date := e.Date
	if date.IsZero() {
		date = s.now()
	}

	entry := &domain.BankTransaction{
		OrganizationID:  e.OrganizationID,
		BankAccountID:   acc.ID,
		Type:            e.Type,
		Amount:          e.Amount,
		Note:            e.Note,
		TransactionDate: date,
		RunningBalance:  newBalance,
		CreatedByID:     e.ActorID,
	}

	// 3. Entry and balance in the same unit of work
	if err := s.txRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}
	acc.CurrentBalance = newBalance
	if e.Type.TouchesReconciled() {
		acc.ReconciledBalance = newBalance
	}
	if err := s.accountRepo.UpdateBalance(ctx, tx, acc); err != nil {
		return nil, fmt.Errorf("failed to update bank account %d: %w", acc.ID, err)
	}

	return entry, nil
}

// CreateManualEntry records a manual deposit, withdrawal or adjustment.
func (s *LedgerService) CreateManualEntry(ctx context.Context, caller authz.Caller, req ManualEntryRequest) (*domain.BankTransaction, error) {
	orgID, err := caller.TargetOrganization(req.OrganizationID)
	if err != nil {
		return nil, err
	}

	// 1. Validate the caller-supplied magnitude before any sign conversion
	signed, action, err := manualAmount(req.Type, req.Amount)
	if err != nil {
		return nil, err
	}

	e := domain.Entry{
		OrganizationID: orgID,
		Type:           req.Type,
		Amount:         signed,
		Note:           req.Note,
		ActorID:        caller.UserID,
	}
	if req.Date != nil {
		e.Date = *req.Date
	}

	var entry *domain.BankTransaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if entry, err = s.ApplyEntry(ctx, tx, e); err != nil {
			return err
		}
		details := fmt.Sprintf("%s %d VND", req.Type, signed)
		if req.Note != "" {
			details += " - " + req.Note
		}
		return s.audit.Record(ctx, tx, caller, orgID, action, "bank ledger", details)
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.logger.Info("Manual ledger entry applied",
		zap.String("organization_id", orgID),
		zap.String("type", string(req.Type)),
		zap.Int64("amount", signed),
		zap.Int64("running_balance", entry.RunningBalance),
	)
	return entry, nil
}

func manualAmount(t domain.EntryType, amount int64) (int64, string, error) {
	switch t {
	case domain.Deposit:
		if amount <= 0 {
			return 0, "", apperror.Validation("amount", "must be a positive integer")
		}
		return amount, audit.ActionManualDeposit, nil
	case domain.Withdraw:
		if amount <= 0 {
			return 0, "", apperror.Validation("amount", "must be a positive integer")
		}
		return -amount, audit.ActionManualWithdraw, nil
	case domain.Adjustment:
		if amount == 0 {
			return 0, "", apperror.Validation("amount", "must not be zero")
		}
		return amount, audit.ActionManualAdjustment, nil
	default:
		return 0, "", apperror.Validation("type", "must be one of DEPOSIT, WITHDRAW, ADJUSTMENT")
	}
}

// AdjustOpeningBalance resets opening, current and reconciled balances to
// value. Existing entries are left untouched; the baseline moves past them.
func (s *LedgerService) AdjustOpeningBalance(ctx context.Context, caller authz.Caller, organizationID string, value int64) (*domain.BankAccount, error) {
	orgID, err := caller.TargetOrganization(organizationID)
	if err != nil {
		return nil, err
	}

	var acc *domain.BankAccount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if acc, err = s.accountRepo.LockByOrganization(ctx, tx, orgID); err != nil {
			return err
		}
		previous := acc.OpeningBalance

		lastID, err := s.txRepo.LastID(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if err := s.accountRepo.ResetOpening(ctx, tx, acc, value, lastID); err != nil {
			return err
		}

		details := fmt.Sprintf("opening balance %d -> %d VND", previous, value)
		return s.audit.Record(ctx, tx, caller, orgID, audit.ActionAdjustOpening, "bank account", details)
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.logger.Info("Opening balance reset",
		zap.String("organization_id", orgID),
		zap.Int64("opening_balance", value),
		zap.Int64("baseline_entry_id", acc.BaselineEntryID),
	)
	return acc, nil
}

// GetAccount returns the organization's bank account.
func (s *LedgerService) GetAccount(ctx context.Context, caller authz.Caller, organizationID string) (*domain.BankAccount, error) {
	orgID, err := caller.TargetOrganization(organizationID)
	if err != nil {
		return nil, err
	}
	return s.accountRepo.FindByOrganization(ctx, orgID)
}

// ListTransactions returns the organization's ledger in creation order.
func (s *LedgerService) ListTransactions(ctx context.Context, caller authz.Caller, organizationID string) ([]domain.BankTransaction, error) {
	orgID, err := caller.TargetOrganization(organizationID)
	if err != nil {
		return nil, err
	}
	return s.txRepo.ListByOrganization(ctx, orgID)
}

// Reconcile checks the conservation rule and the running-balance chain for
// every entry since the last opening-balance reset. An organization without
// an account is NotFound; reconciling never creates one.
func (s *LedgerService) Reconcile(ctx context.Context, caller authz.Caller, organizationID string) (*domain.ReconciliationReport, error) {
	orgID, err := caller.TargetOrganization(organizationID)
	if err != nil {
		return nil, err
	}

	var report *domain.ReconciliationReport
	// one read transaction, so account and entries come from the same snapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := s.accountRepo.LockExisting(ctx, tx, orgID)
		if err != nil {
			return err
		}
		entries, err := s.txRepo.ListAfter(ctx, tx, orgID, acc.BaselineEntryID)
		if err != nil {
			return err
		}
		report = buildReport(acc, entries, s.now())
		return nil
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	if !report.Balanced {
		s.logger.Warn("Ledger reconciliation found drift",
			zap.String("organization_id", orgID),
			zap.Int64("drift", report.Drift),
			zap.Int("chain_breaks", len(report.ChainBreaks)),
		)
	}
	return report, nil
}

func buildReport(acc *domain.BankAccount, entries []domain.BankTransaction, now time.Time) *domain.ReconciliationReport {
	report := &domain.ReconciliationReport{
		OrganizationID:    acc.OrganizationID,
		OpeningBalance:    acc.OpeningBalance,
		CurrentBalance:    acc.CurrentBalance,
		ReconciledBalance: acc.ReconciledBalance,
		EntryCount:        len(entries),
		ChainBreaks:       make([]domain.ChainBreak, 0),
		GeneratedAt:       now,
	}

	running := acc.OpeningBalance
	for _, e := range entries {
		report.EntrySum += e.Amount
		running += e.Amount
		if e.RunningBalance != running {
			report.ChainBreaks = append(report.ChainBreaks, domain.ChainBreak{
				EntryID:  e.ID,
				Expected: running,
				Actual:   e.RunningBalance,
			})
			// continue the chain from what was stored
			running = e.RunningBalance
		}
	}

	report.ExpectedBalance = acc.OpeningBalance + report.EntrySum
	report.Drift = acc.CurrentBalance - report.ExpectedBalance
	report.UnreconciledDelta = acc.CurrentBalance - acc.ReconciledBalance
	report.Balanced = report.Drift == 0 && len(report.ChainBreaks) == 0
	return report
}
