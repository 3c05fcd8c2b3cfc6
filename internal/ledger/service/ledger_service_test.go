package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/adapter/repo"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/service"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
	"github.com/namdov3-blip/agribank-crm/internal/platform/database/dbtest"
)

var (
	teller = authz.Caller{UserID: "u-teller", Name: "Teller", Role: "User1", OrganizationID: "org-a"}
	other  = authz.Caller{UserID: "u-other", Name: "Other", Role: "User1", OrganizationID: "org-b"}
)

type fixture struct {
	db       *gorm.DB
	svc      *service.LedgerService
	recorder *audit.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, repo.AutoMigrate, audit.AutoMigrate)
	recorder := audit.NewRecorder(db)
	svc := service.NewLedgerService(db, repo.NewAccountRepo(db), repo.NewTransactionRepo(db), recorder, zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) })
	return &fixture{db: db, svc: svc, recorder: recorder}
}

// assertConserved checks current == opening + sum(entries after baseline).
func assertConserved(t *testing.T, f *fixture, caller authz.Caller) *domain.ReconciliationReport {
	t.Helper()
	report, err := f.svc.Reconcile(context.Background(), caller, "")
	require.NoError(t, err)
	assert.True(t, report.Balanced, "drift=%d breaks=%v", report.Drift, report.ChainBreaks)
	assert.Equal(t, report.ExpectedBalance, report.CurrentBalance)
	return report
}

func TestLedgerService_CreateManualEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dep, err := f.svc.CreateManualEntry(ctx, teller, service.ManualEntryRequest{Type: domain.Deposit, Amount: 5_000_000, Note: "top up"})
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), dep.Amount)
	assert.Equal(t, int64(5_000_000), dep.RunningBalance)

	wd, err := f.svc.CreateManualEntry(ctx, teller, service.ManualEntryRequest{Type: domain.Withdraw, Amount: 2_000_000})
	require.NoError(t, err)
	assert.Equal(t, int64(-2_000_000), wd.Amount)
	assert.Equal(t, int64(3_000_000), wd.RunningBalance)

	acc, err := f.svc.GetAccount(ctx, teller, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), acc.CurrentBalance)
	assert.Equal(t, int64(0), acc.ReconciledBalance, "deposits and withdrawals leave reconciled balance alone")

	adj, err := f.svc.CreateManualEntry(ctx, teller, service.ManualEntryRequest{Type: domain.Adjustment, Amount: -500})
	require.NoError(t, err)
	assert.Equal(t, int64(2_999_500), adj.RunningBalance)

	acc, err = f.svc.GetAccount(ctx, teller, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2_999_500), acc.CurrentBalance)
	assert.Equal(t, int64(2_999_500), acc.ReconciledBalance)

	entries, err := f.recorder.List(ctx, teller.Scope(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	assertConserved(t, f, teller)
}

func TestLedgerService_CreateManualEntry_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  service.ManualEntryRequest
	}{
		{"zero deposit", service.ManualEntryRequest{Type: domain.Deposit, Amount: 0}},
		{"negative deposit", service.ManualEntryRequest{Type: domain.Deposit, Amount: -10}},
		{"negative withdraw", service.ManualEntryRequest{Type: domain.Withdraw, Amount: -10}},
		{"zero adjustment", service.ManualEntryRequest{Type: domain.Adjustment, Amount: 0}},
		{"unknown type", service.ManualEntryRequest{Type: "TRANSFER", Amount: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateManualEntry(ctx, teller, tt.req)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}

	entries, err := f.svc.ListTransactions(ctx, teller, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerService_AdjustOpeningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateManualEntry(ctx, teller, service.ManualEntryRequest{Type: domain.Deposit, Amount: 700})
	require.NoError(t, err)

	acc, err := f.svc.AdjustOpeningBalance(ctx, teller, "", 10_000)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), acc.OpeningBalance)
	assert.Equal(t, int64(10_000), acc.CurrentBalance)
	assert.Equal(t, int64(10_000), acc.ReconciledBalance)

	// history is kept as-is
	entries, err := f.svc.ListTransactions(ctx, teller, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(700), entries[0].RunningBalance)

	_, err = f.svc.CreateManualEntry(ctx, teller, service.ManualEntryRequest{Type: domain.Withdraw, Amount: 2_500})
	require.NoError(t, err)

	report := assertConserved(t, f, teller)
	assert.Equal(t, 1, report.EntryCount, "only entries after the reset count")
	assert.Equal(t, int64(7_500), report.CurrentBalance)
	assert.Equal(t, int64(2_500), report.UnreconciledDelta)
}

func TestLedgerService_ApplyEntryRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if _, err := f.svc.ApplyEntry(ctx, tx, domain.Entry{OrganizationID: "org-a", Type: domain.Deposit, Amount: 900}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	entries, err := f.svc.ListTransactions(ctx, teller, "")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = f.svc.GetAccount(ctx, teller, "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestLedgerService_OrganizationIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateManualEntry(ctx, teller, service.ManualEntryRequest{Type: domain.Deposit, Amount: 100})
	require.NoError(t, err)

	_, err = f.svc.GetAccount(ctx, other, "org-a")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.CreateManualEntry(ctx, other, service.ManualEntryRequest{OrganizationID: "org-a", Type: domain.Withdraw, Amount: 100})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	super := authz.Caller{UserID: "root", OrganizationID: "org-b", Permissions: []string{authz.PermissionSuperAdmin}}
	acc, err := f.svc.GetAccount(ctx, super, "org-a")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acc.CurrentBalance)
}

func TestLedgerService_ConcurrentEntriesStayConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := service.ManualEntryRequest{Type: domain.Deposit, Amount: int64(1_000 + i)}
			if i%3 == 0 {
				req = service.ManualEntryRequest{Type: domain.Withdraw, Amount: int64(500 + i)}
			}
			_, err := f.svc.CreateManualEntry(ctx, teller, req)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	report := assertConserved(t, f, teller)
	assert.Equal(t, workers, report.EntryCount)
}

func TestLedgerService_ReconcileDetectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateManualEntry(ctx, teller, service.ManualEntryRequest{Type: domain.Deposit, Amount: 1_000})
	require.NoError(t, err)

	// direct field mutation bypassing the ledger
	require.NoError(t, f.db.Model(&domain.BankAccount{}).
		Where("organization_id = ?", "org-a").
		Update("current_balance", 1_250).Error)

	report, err := f.svc.Reconcile(ctx, teller, "")
	require.NoError(t, err)
	assert.False(t, report.Balanced)
	assert.Equal(t, int64(250), report.Drift)
}

func TestLedgerService_ReconcileWithoutAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Reconcile(ctx, teller, "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// the read left nothing behind
	_, err = f.svc.GetAccount(ctx, teller, "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	var n int64
	require.NoError(t, f.db.Model(&domain.BankAccount{}).Count(&n).Error)
	assert.Zero(t, n)
}
