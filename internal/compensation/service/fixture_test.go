package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/adapter/repo"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/service"
	"github.com/namdov3-blip/agribank-crm/internal/interest"
	ledgerrepo "github.com/namdov3-blip/agribank-crm/internal/ledger/adapter/repo"
	ledgerdomain "github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	ledgerservice "github.com/namdov3-blip/agribank-crm/internal/ledger/service"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
	"github.com/namdov3-blip/agribank-crm/internal/platform/database/dbtest"
)

var (
	officer = authz.Caller{UserID: "u-officer", Name: "Officer", Role: "User1", OrganizationID: "org-a"}
	admin   = authz.Caller{UserID: "u-admin", Name: "Branch Admin", Role: authz.RoleAdmin, OrganizationID: "org-a"}
	outside = authz.Caller{UserID: "u-outside", Name: "Outsider", Role: "User1", OrganizationID: "org-b"}
	root    = authz.Caller{UserID: "u-root", Name: "Root", Role: "User1", OrganizationID: "org-hq", Permissions: []string{authz.PermissionSuperAdmin}}

	// day0 is both the import day and the interest start date of test projects.
	day0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	db        *gorm.DB
	now       time.Time
	recorder  *audit.Recorder
	ledger    *ledgerservice.LedgerService
	rates     *service.RateService
	disburser *service.DisbursementService
	projects  *service.ProjectService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, ledgerrepo.AutoMigrate, repo.AutoMigrate, audit.AutoMigrate)
	f := &fixture{db: db, now: day0}
	clock := func() time.Time { return f.now }
	logger := zap.NewNop()

	f.recorder = audit.NewRecorder(db).WithClock(clock)
	f.ledger = ledgerservice.NewLedgerService(db, ledgerrepo.NewAccountRepo(db), ledgerrepo.NewTransactionRepo(db), f.recorder, logger).
		WithClock(clock)

	txRepo := repo.NewTransactionRepo(db)
	households := repo.NewHouseholdRepo(db)
	f.rates = service.NewRateService(db, repo.NewInterestRepo(db), f.recorder, logger).WithClock(clock)
	f.disburser = service.NewDisbursementService(db, txRepo, households, f.rates, f.ledger, f.recorder, interest.NewCalculator(time.UTC), logger).
		WithClock(clock)
	f.projects = service.NewProjectService(db, repo.NewProjectRepo(db), households, txRepo, f.ledger, f.recorder, logger).
		WithClock(clock)
	return f
}

// overrides swaps collaborators of the services under test; nil fields keep
// the fixture's own.
type overrides struct {
	txRepo   domain.TransactionRepository
	projects domain.ProjectRepository
	ledger   service.Ledger
	audit    service.AuditRecorder
}

func (f *fixture) with(o overrides) (*service.DisbursementService, *service.ProjectService) {
	if o.txRepo == nil {
		o.txRepo = repo.NewTransactionRepo(f.db)
	}
	if o.projects == nil {
		o.projects = repo.NewProjectRepo(f.db)
	}
	if o.ledger == nil {
		o.ledger = f.ledger
	}
	if o.audit == nil {
		o.audit = f.recorder
	}
	clock := func() time.Time { return f.now }
	households := repo.NewHouseholdRepo(f.db)
	disburser := service.NewDisbursementService(f.db, o.txRepo, households, f.rates, o.ledger, o.audit, interest.NewCalculator(time.UTC), zap.NewNop()).
		WithClock(clock)
	projects := service.NewProjectService(f.db, o.projects, households, o.txRepo, o.ledger, o.audit, zap.NewNop()).
		WithClock(clock)
	return disburser, projects
}

// advance moves the clock forward by whole days.
func (f *fixture) advance(days int) {
	f.now = f.now.AddDate(0, 0, days)
}

func householdRows(amounts ...int64) []service.ImportRow {
	rows := make([]service.ImportRow, len(amounts))
	for i, a := range amounts {
		rows[i] = service.ImportRow{
			HouseholdCode: fmt.Sprintf("HH-%03d", i+1),
			Name:          fmt.Sprintf("Household %d", i+1),
			NationalID:    fmt.Sprintf("0010%08d", i+1),
			Amount:        a,
		}
	}
	return rows
}

func (f *fixture) importProject(t *testing.T, caller authz.Caller, code string, budget int64, rows []service.ImportRow) *service.ImportResult {
	t.Helper()
	start := time.Date(day0.Year(), day0.Month(), day0.Day(), 0, 0, 0, 0, time.UTC)
	res, err := f.projects.Import(context.Background(), caller, service.ImportRequest{
		Project: service.ProjectDefinition{
			Code:              code,
			Name:              "Project " + code,
			Location:          "Ha Noi",
			TotalBudget:       budget,
			InterestStartDate: &start,
		},
		Rows: rows,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) records(t *testing.T, caller authz.Caller, projectID string) []service.TransactionView {
	t.Helper()
	list, err := f.disburser.List(context.Background(), caller, domain.TransactionFilter{ProjectID: projectID})
	require.NoError(t, err)
	return list
}

func (f *fixture) balance(t *testing.T, organizationID string) int64 {
	t.Helper()
	acc, err := f.ledger.GetAccount(context.Background(), root, organizationID)
	require.NoError(t, err)
	return acc.CurrentBalance
}

func (f *fixture) entries(t *testing.T, organizationID string) []ledgerdomain.BankTransaction {
	t.Helper()
	list, err := f.ledger.ListTransactions(context.Background(), root, organizationID)
	require.NoError(t, err)
	return list
}

func (f *fixture) auditActions(t *testing.T, action string) int {
	t.Helper()
	list, err := f.recorder.List(context.Background(), authz.AllOrganizations(), 0)
	require.NoError(t, err)
	n := 0
	for _, e := range list {
		if e.Action == action {
			n++
		}
	}
	return n
}

// assertConserved checks the ledger of an organization still adds up.
func (f *fixture) assertConserved(t *testing.T, organizationID string) {
	t.Helper()
	report, err := f.ledger.Reconcile(context.Background(), root, organizationID)
	require.NoError(t, err)
	assert.True(t, report.Balanced, "drift=%d breaks=%v", report.Drift, report.ChainBreaks)
}
