package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/interest"
	ledgerdomain "github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

// SupplementaryRequest adds a signed ad-hoc amount to a record.
type SupplementaryRequest struct {
	Amount int64
	Note   *string // nil keeps the current note
}

// UpdateDetailsRequest edits household reference data and record notes.
// Money fields are not editable.
type UpdateDetailsRequest struct {
	Household domain.HouseholdPatch
	Notes     *string
}

// DisbursementService drives the record state machine.
type DisbursementService struct {
	db         *gorm.DB // opens transactions
	txRepo     domain.TransactionRepository
	households domain.HouseholdRepository
	rates      RateSource
	ledger     Ledger
	audit      AuditRecorder
	calc       *interest.Calculator
	logger     *zap.Logger
	now        func() time.Time
}

func NewDisbursementService(
	db *gorm.DB,
	txRepo domain.TransactionRepository,
	households domain.HouseholdRepository,
	rates RateSource,
	ledger Ledger,
	recorder AuditRecorder,
	calc *interest.Calculator,
	logger *zap.Logger,
) *DisbursementService {
	return &DisbursementService{
		db:         db,
		txRepo:     txRepo,
		households: households,
		rates:      rates,
		ledger:     ledger,
		audit:      recorder,
		calc:       calc,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *DisbursementService) WithClock(now func() time.Time) *DisbursementService {
	s.now = now
	return s
}

// Get returns one record visible to the caller.
func (s *DisbursementService) Get(ctx context.Context, caller authz.Caller, id string) (*TransactionView, error) {
	return s.load(ctx, caller.Scope(), id)
}

// List returns the records visible to the caller, with interest derived as
// of now.
func (s *DisbursementService) List(ctx context.Context, caller authz.Caller, filter domain.TransactionFilter) ([]TransactionView, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation("status", "must be one of PENDING, DISBURSED, HOLD")
	}
	list, err := s.txRepo.List(ctx, caller.Scope(), filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	history, err := s.txRepo.History(ctx, nil, ids...)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rates := s.rateCache()
	views := make([]TransactionView, 0, len(list))
	for i := range list {
		v, err := s.view(ctx, &list[i], history[list[i].ID], rates, now)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Disburse settles a PENDING or HOLD record: interest is computed up to now
// and frozen, and the full payable amount leaves the ledger. Disbursing an
// already DISBURSED record returns it unchanged.
func (s *DisbursementService) Disburse(ctx context.Context, caller authz.Caller, id string) (*TransactionView, error) {
	var (
		settled bool
		total   int64
		accrued int64
		orgID   string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Load and lock within the caller's scope
		t, err := s.txRepo.FindForUpdate(ctx, tx, caller.Scope(), id)
		if err != nil {
			return err
		}
		if !t.Status.CanDisburse() {
			return nil
		}
		orgID = t.OrganizationID

		// 2. Settlement interest at the current rate
		now := s.now()
		rate, err := s.rates.Rate(ctx, tx, t.OrganizationID)
		if err != nil {
			return err
		}
		accrued = s.calc.Calculate(t.TotalApproved, rate, t.InterestBase(), now)
		total = t.TotalApproved + accrued + t.SupplementaryAmount

		// 3. Transition guarded on the snapshot the total was computed from
		moved, err := s.txRepo.MarkDisbursed(ctx, tx, t, domain.Settlement{At: now, Interest: accrued, Rate: rate})
		if err != nil {
			return err
		}
		if !moved {
			current, err := s.txRepo.FindScoped(ctx, tx, caller.Scope(), id)
			if err != nil {
				return err
			}
			if current.Status == domain.StatusDisbursed {
				return nil
			}
			return apperror.Conflict("transaction %s changed while being disbursed", t.ID)
		}

		// 4. History, ledger and audit in the same unit of work
		if err := s.txRepo.AppendHistory(ctx, tx, &domain.HistoryEntry{
			TransactionID: t.ID,
			Timestamp:     now,
			Action:        domain.HistoryDisbursed,
			Details: fmt.Sprintf("Disbursed %d VND (principal %d, interest %d at %s%%, supplementary %d)",
				total, t.TotalApproved, accrued, rate.String(), t.SupplementaryAmount),
			ActorID:   caller.UserID,
			ActorName: caller.Name,
			ActorRole: caller.Role,
			Amount:    int64Ptr(total),
		}); err != nil {
			return err
		}
		if _, err := s.ledger.ApplyEntry(ctx, tx, ledgerdomain.Entry{
			OrganizationID: t.OrganizationID,
			Type:           ledgerdomain.Withdraw,
			Amount:         -total,
			Note:           "Disbursement to " + householdLabel(t),
			Date:           now,
			ActorID:        caller.UserID,
		}); err != nil {
			return err
		}
		details := fmt.Sprintf("disbursed %d VND to %s", total, householdLabel(t))
		if err := s.audit.Record(ctx, tx, caller, t.OrganizationID, audit.ActionDisburse, "transaction "+t.ID, details); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	if settled {
		s.logger.Info("Transaction disbursed",
			zap.String("organization_id", orgID),
			zap.String("transaction_id", id),
			zap.Int64("interest", accrued),
			zap.Int64("amount", total),
		)
	} else {
		s.logger.Debug("Disbursement skipped, already disbursed", zap.String("transaction_id", id))
	}
	return s.load(ctx, caller.Scope(), id)
}

// Refund takes money back from a DISBURSED record. The refunded amount
// becomes the new principal and interest restarts from now.
func (s *DisbursementService) Refund(ctx context.Context, caller authz.Caller, id string, refundedAmount int64) (*TransactionView, error) {
	if refundedAmount <= 0 {
		return nil, apperror.Validation("refundedAmount", "must be a positive integer")
	}

	var orgID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Load, lock and check the transition
		t, err := s.txRepo.FindForUpdate(ctx, tx, caller.Scope(), id)
		if err != nil {
			return err
		}
		if !t.Status.CanRefund() {
			return apperror.Conflict("transaction %s is %s, only DISBURSED records can be refunded", t.ID, t.Status)
		}
		orgID = t.OrganizationID

		// 2. Reset principal and dates
		now := s.now()
		moved, err := s.txRepo.MarkRefunded(ctx, tx, t.ID, refundedAmount, now)
		if err != nil {
			return err
		}
		if !moved {
			return apperror.Conflict("transaction %s changed status concurrently", t.ID)
		}

		// 3. History, ledger and audit
		if err := s.txRepo.AppendHistory(ctx, tx, &domain.HistoryEntry{
			TransactionID: t.ID,
			Timestamp:     now,
			Action:        domain.HistoryRefunded,
			Details:       fmt.Sprintf("Refunded %d VND, record on hold with new principal", refundedAmount),
			ActorID:       caller.UserID,
			ActorName:     caller.Name,
			ActorRole:     caller.Role,
			Amount:        int64Ptr(refundedAmount),
		}); err != nil {
			return err
		}
		if _, err := s.ledger.ApplyEntry(ctx, tx, ledgerdomain.Entry{
			OrganizationID: t.OrganizationID,
			Type:           ledgerdomain.Deposit,
			Amount:         refundedAmount,
			Note:           "Refund from " + householdLabel(t),
			Date:           now,
			ActorID:        caller.UserID,
		}); err != nil {
			return err
		}
		details := fmt.Sprintf("refunded %d VND from %s", refundedAmount, householdLabel(t))
		return s.audit.Record(ctx, tx, caller, t.OrganizationID, audit.ActionRefund, "transaction "+t.ID, details)
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.logger.Info("Transaction refunded",
		zap.String("organization_id", orgID),
		zap.String("transaction_id", id),
		zap.Int64("amount", refundedAmount),
	)
	return s.load(ctx, caller.Scope(), id)
}

// AddSupplementary adds a signed amount to a record that has not been paid
// out yet. The ledger receives a deposit carrying the same sign.
func (s *DisbursementService) AddSupplementary(ctx context.Context, caller authz.Caller, id string, req SupplementaryRequest) (*TransactionView, error) {
	if req.Amount == 0 {
		return nil, apperror.Validation("amount", "must not be zero")
	}

	var orgID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.txRepo.FindForUpdate(ctx, tx, caller.Scope(), id)
		if err != nil {
			return err
		}
		if !t.Status.AcceptsSupplementary() {
			return apperror.Conflict("transaction %s is already disbursed", t.ID)
		}
		orgID = t.OrganizationID

		moved, err := s.txRepo.AddSupplementary(ctx, tx, t.ID, req.Amount, req.Note)
		if err != nil {
			return err
		}
		if !moved {
			return apperror.Conflict("transaction %s changed status concurrently", t.ID)
		}

		now := s.now()
		details := fmt.Sprintf("Supplementary %+d VND", req.Amount)
		if req.Note != nil && *req.Note != "" {
			details += ": " + *req.Note
		}
		if err := s.txRepo.AppendHistory(ctx, tx, &domain.HistoryEntry{
			TransactionID: t.ID,
			Timestamp:     now,
			Action:        domain.HistorySupplementary,
			Details:       details,
			ActorID:       caller.UserID,
			ActorName:     caller.Name,
			ActorRole:     caller.Role,
			Amount:        int64Ptr(req.Amount),
		}); err != nil {
			return err
		}
		if _, err := s.ledger.ApplyEntry(ctx, tx, ledgerdomain.Entry{
			OrganizationID: t.OrganizationID,
			Type:           ledgerdomain.Deposit,
			Amount:         req.Amount,
			Note:           "Supplementary for " + householdLabel(t),
			Date:           now,
			ActorID:        caller.UserID,
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, caller, t.OrganizationID, audit.ActionSupplementary, "transaction "+t.ID, details)
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.logger.Info("Supplementary amount added",
		zap.String("organization_id", orgID),
		zap.String("transaction_id", id),
		zap.Int64("amount", req.Amount),
	)
	return s.load(ctx, caller.Scope(), id)
}

// UpdateDetails edits household reference data and notes.
func (s *DisbursementService) UpdateDetails(ctx context.Context, caller authz.Caller, id string, req UpdateDetailsRequest) (*TransactionView, error) {
	if req.Household.IsEmpty() && req.Notes == nil {
		return nil, apperror.Validation("body", "nothing to update")
	}
	if req.Household.Name != nil && strings.TrimSpace(*req.Household.Name) == "" {
		return nil, apperror.Validation("name", "must not be blank")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.txRepo.FindForUpdate(ctx, tx, caller.Scope(), id)
		if err != nil {
			return err
		}
		if err := s.households.Patch(ctx, tx, t.HouseholdID, req.Household); err != nil {
			return err
		}
		if req.Notes != nil {
			if err := s.txRepo.UpdateNotes(ctx, tx, t.ID, *req.Notes); err != nil {
				return err
			}
		}

		changed := changedFields(req)
		details := "Updated " + strings.Join(changed, ", ")
		if err := s.txRepo.AppendHistory(ctx, tx, &domain.HistoryEntry{
			TransactionID: t.ID,
			Timestamp:     s.now(),
			Action:        domain.HistoryDetailsEdited,
			Details:       details,
			ActorID:       caller.UserID,
			ActorName:     caller.Name,
			ActorRole:     caller.Role,
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, caller, t.OrganizationID, audit.ActionUpdateDetails, "transaction "+t.ID, details)
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return s.load(ctx, caller.Scope(), id)
}

func changedFields(req UpdateDetailsRequest) []string {
	var fields []string
	p := req.Household
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.NationalID != nil {
		fields = append(fields, "national id")
	}
	if p.Address != nil {
		fields = append(fields, "address")
	}
	if p.DecisionNumber != nil {
		fields = append(fields, "decision number")
	}
	if p.DecisionDate != nil {
		fields = append(fields, "decision date")
	}
	if req.Notes != nil {
		fields = append(fields, "notes")
	}
	return fields
}

func (s *DisbursementService) load(ctx context.Context, scope authz.Scope, id string) (*TransactionView, error) {
	t, err := s.txRepo.FindScoped(ctx, nil, scope, id)
	if err != nil {
		return nil, err
	}
	history, err := s.txRepo.History(ctx, nil, t.ID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, t, history[t.ID], s.rateCache(), s.now())
}

type rateLookup func(ctx context.Context, organizationID string) (decimal.Decimal, error)

// rateCache memoizes the current rate per organization for the duration of
// one read.
func (s *DisbursementService) rateCache() rateLookup {
	cache := make(map[string]decimal.Decimal)
	return func(ctx context.Context, organizationID string) (decimal.Decimal, error) {
		if r, ok := cache[organizationID]; ok {
			return r, nil
		}
		r, err := s.rates.Rate(ctx, nil, organizationID)
		if err != nil {
			return decimal.Zero, err
		}
		cache[organizationID] = r
		return r, nil
	}
}

// view derives display interest. DISBURSED records show the interest and
// rate stored at settlement, so the figure matches what left the ledger
// whatever the rate history does afterwards.
func (s *DisbursementService) view(ctx context.Context, t *domain.Transaction, history []domain.HistoryEntry, rates rateLookup, now time.Time) (*TransactionView, error) {
	var (
		rate        decimal.Decimal
		disbursedAt *time.Time
	)
	if t.Status == domain.StatusDisbursed && t.DisbursementDate != nil {
		rate = t.SettledRate.Decimal
		disbursedAt = t.DisbursementDate
	} else {
		var err error
		if rate, err = rates(ctx, t.OrganizationID); err != nil {
			return nil, err
		}
	}

	acc := s.calc.Accrue(t.TotalApproved, rate, t.InterestBase(), disbursedAt, now)
	if disbursedAt != nil {
		acc.Interest = t.SettledInterest
	}

	if history == nil {
		history = []domain.HistoryEntry{}
	}
	return &TransactionView{
		Transaction:      *t,
		History:          history,
		InterestBaseDate: acc.Base,
		InterestRate:     rate,
		DaysAccrued:      acc.Days,
		Interest:         acc.Interest,
		InterestFrozen:   acc.Frozen,
		TotalPayable:     t.TotalApproved + acc.Interest + t.SupplementaryAmount,
	}, nil
}
