package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	ledgerdomain "github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

// ProjectDefinition describes the project being imported.
type ProjectDefinition struct {
	Code              string
	Name              string
	Location          string
	TotalBudget       int64
	StartDate         *time.Time // defaults to InterestStartDate
	InterestStartDate *time.Time
}

// ImportRow is one validated household line from the ingestion collaborator.
type ImportRow struct {
	HouseholdCode  string
	Name           string
	NationalID     string
	Address        string
	LandOrigin     string
	LandArea       decimal.Decimal
	DecisionNumber string
	DecisionDate   *time.Time
	Amount         int64
	Notes          string
	Metadata       map[string]interface{}
}

// ImportRequest is a whole project import.
type ImportRequest struct {
	OrganizationID string // optional; super admins only
	Project        ProjectDefinition
	Rows           []ImportRow
}

// ImportResult reports what an import created.
type ImportResult struct {
	Project          domain.Project `json:"project"`
	TransactionCount int            `json:"transactionCount"`
	DepositEntryID   int64          `json:"depositEntryId"`
}

// ProjectSummary is a project with aggregate figures over its records.
type ProjectSummary struct {
	domain.Project
	TransactionCount int64 `json:"transactionCount"`
	PendingCount     int64 `json:"pendingCount"`
	HoldCount        int64 `json:"holdCount"`
	DisbursedCount   int64 `json:"disbursedCount"`
	TotalApproved    int64 `json:"totalApproved"`
	DisbursedAmount  int64 `json:"disbursedPrincipal"`
	PendingAmount    int64 `json:"pendingPrincipal"`
}

// Stats is the dashboard overview.
type Stats struct {
	ProjectCount     int64                 `json:"projectCount"`
	TransactionCount int64                 `json:"transactionCount"`
	ByStatus         []domain.StatusTotals `json:"byStatus"`
}

type ProjectService struct {
	db         *gorm.DB // opens transactions
	projects   domain.ProjectRepository
	households domain.HouseholdRepository
	txRepo     domain.TransactionRepository
	ledger     Ledger
	audit      AuditRecorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewProjectService(
	db *gorm.DB,
	projects domain.ProjectRepository,
	households domain.HouseholdRepository,
	txRepo domain.TransactionRepository,
	ledger Ledger,
	recorder AuditRecorder,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		db:         db,
		projects:   projects,
		households: households,
		txRepo:     txRepo,
		ledger:     ledger,
		audit:      recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *ProjectService) WithClock(now func() time.Time) *ProjectService {
	s.now = now
	return s
}

// Import creates the project, its households and one PENDING record per row,
// and deposits the budget, all in one transaction. Invalid input is rejected
// as a whole before anything is written.
func (s *ProjectService) Import(ctx context.Context, caller authz.Caller, req ImportRequest) (*ImportResult, error) {
	orgID, err := caller.TargetOrganization(req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := validateImport(req); err != nil {
		return nil, err
	}

	def := req.Project
	var rowSum int64
	for _, row := range req.Rows {
		rowSum += row.Amount
	}
	if rowSum != def.TotalBudget {
		s.logger.Warn("Import budget differs from the sum of row amounts",
			zap.String("organization_id", orgID),
			zap.String("project_code", def.Code),
			zap.Int64("total_budget", def.TotalBudget),
			zap.Int64("row_sum", rowSum),
		)
	}

	now := s.now()
	result := &ImportResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Project, with a disambiguated code on collision
		code := strings.TrimSpace(def.Code)
		exists, err := s.projects.CodeExists(ctx, tx, orgID, code)
		if err != nil {
			return err
		}
		if exists {
			code = suffixCode(code, now)
		}
		start := def.InterestStartDate
		if def.StartDate != nil {
			start = def.StartDate
		}
		project := domain.Project{
			OrganizationID:    orgID,
			Code:              code,
			Name:              strings.TrimSpace(def.Name),
			Location:          def.Location,
			TotalBudget:       def.TotalBudget,
			StartDate:         *start,
			InterestStartDate: *def.InterestStartDate,
			CreatedByID:       caller.UserID,
		}
		// a concurrent import can take the code after the check; the savepoint
		// keeps the outer transaction usable for the retry
		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.projects.Create(ctx, sp, &project)
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) && !exists {
			project.Code = suffixCode(code, now)
			err = s.projects.Create(ctx, tx, &project)
		}
		if err != nil {
			return err
		}

		// 2. Households and records
		for _, row := range req.Rows {
			household := domain.Household{
				OrganizationID: orgID,
				HouseholdCode:  strings.TrimSpace(row.HouseholdCode),
				Name:           strings.TrimSpace(row.Name),
				NationalID:     row.NationalID,
				Address:        row.Address,
				LandOrigin:     row.LandOrigin,
				LandArea:       row.LandArea,
				DecisionNumber: row.DecisionNumber,
				DecisionDate:   row.DecisionDate,
			}
			if err := s.households.Upsert(ctx, tx, &household); err != nil {
				return err
			}

			metadata, err := encodeMetadata(row.Metadata)
			if err != nil {
				return err
			}
			record := domain.Transaction{
				OrganizationID: orgID,
				ProjectID:      project.ID,
				HouseholdID:    household.ID,
				TotalApproved:  row.Amount,
				Status:         domain.StatusPending,
				Notes:          row.Notes,
				Metadata:       metadata,
				CreatedByID:    caller.UserID,
			}
			if err := s.txRepo.Create(ctx, tx, &record); err != nil {
				return err
			}
			if err := s.txRepo.AppendHistory(ctx, tx, &domain.HistoryEntry{
				TransactionID: record.ID,
				Timestamp:     now,
				Action:        domain.HistoryImported,
				Details:       fmt.Sprintf("Imported with project %s", project.Code),
				ActorID:       caller.UserID,
				ActorName:     caller.Name,
				ActorRole:     caller.Role,
				Amount:        int64Ptr(row.Amount),
			}); err != nil {
				return err
			}
		}

		// 3. Budget deposit
		entry, err := s.ledger.ApplyEntry(ctx, tx, ledgerdomain.Entry{
			OrganizationID: orgID,
			Type:           ledgerdomain.Deposit,
			Amount:         def.TotalBudget,
			Note:           "Budget of project " + project.Code,
			Date:           now,
			ActorID:        caller.UserID,
		})
		if err != nil {
			return err
		}

		// 4. Audit
		details := fmt.Sprintf("imported project %s with %d households, budget %d VND", project.Code, len(req.Rows), def.TotalBudget)
		if err := s.audit.Record(ctx, tx, caller, orgID, audit.ActionImportProject, "project "+project.ID, details); err != nil {
			return err
		}

		result.Project = project
		result.TransactionCount = len(req.Rows)
		result.DepositEntryID = entry.ID
		return nil
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.logger.Info("Project imported",
		zap.String("organization_id", orgID),
		zap.String("project_id", result.Project.ID),
		zap.String("project_code", result.Project.Code),
		zap.Int("transactions", result.TransactionCount),
		zap.Int64("amount", def.TotalBudget),
	)
	return result, nil
}

func suffixCode(code string, now time.Time) string {
	return fmt.Sprintf("%s_%d", code, now.UnixMilli())
}

func validateImport(req ImportRequest) error {
	verr := &apperror.ValidationError{Message: "invalid import"}
	def := req.Project
	if strings.TrimSpace(def.Code) == "" {
		verr.Add("project.code", "is required")
	}
	if strings.TrimSpace(def.Name) == "" {
		verr.Add("project.name", "is required")
	}
	if def.TotalBudget < 0 {
		verr.Add("project.totalBudget", "must not be negative")
	}
	if def.InterestStartDate == nil {
		verr.Add("project.interestStartDate", "is required")
	}
	if len(req.Rows) == 0 {
		verr.Add("rows", "at least one household row is required")
	}

	for i, row := range req.Rows {
		field := fmt.Sprintf("rows[%d]", i)
		if strings.TrimSpace(row.HouseholdCode) == "" {
			verr.Add(field+".householdId", "is required")
		}
		if strings.TrimSpace(row.Name) == "" {
			verr.Add(field+".name", "is required")
		}
		if row.Amount <= 0 {
			verr.Add(field+".amount", "must be a positive integer")
		}
	}
	return verr.OrNil()
}

func encodeMetadata(m map[string]interface{}) (datatypes.JSON, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, apperror.Validation("metadata", "not serializable: %v", err)
	}
	return datatypes.JSON(b), nil
}

// List returns the projects visible to the caller, newest first.
func (s *ProjectService) List(ctx context.Context, caller authz.Caller) ([]ProjectSummary, error) {
	scope := caller.Scope()
	projects, err := s.projects.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	var totals []domain.StatusTotals
	if len(ids) > 0 {
		if totals, err = s.txRepo.Totals(ctx, scope, ids...); err != nil {
			return nil, err
		}
	}

	byProject := make(map[string][]domain.StatusTotals)
	for _, t := range totals {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, summarize(p, byProject[p.ID]))
	}
	return out, nil
}

func (s *ProjectService) Get(ctx context.Context, caller authz.Caller, id string) (*ProjectSummary, error) {
	scope := caller.Scope()
	p, err := s.projects.FindScoped(ctx, nil, scope, id)
	if err != nil {
		return nil, err
	}
	totals, err := s.txRepo.Totals(ctx, scope, p.ID)
	if err != nil {
		return nil, err
	}
	summary := summarize(*p, totals)
	return &summary, nil
}

// Update edits project metadata. Budget and dates are fixed at import, so no
// ledger entry is involved.
func (s *ProjectService) Update(ctx context.Context, caller authz.Caller, id string, patch domain.ProjectPatch) (*ProjectSummary, error) {
	if patch.IsEmpty() {
		return nil, apperror.Validation("project", "nothing to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.Validation("name", "must not be blank")
		}
		patch.Name = &name
	}

	scope := caller.Scope()
	var project *domain.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if project, err = s.projects.FindScoped(ctx, tx, scope, id); err != nil {
			return err
		}
		if err := s.projects.Update(ctx, tx, project.ID, patch); err != nil {
			return err
		}
		var changes []string
		if patch.Name != nil {
			changes = append(changes, fmt.Sprintf("name %q -> %q", project.Name, *patch.Name))
			project.Name = *patch.Name
		}
		if patch.Location != nil {
			changes = append(changes, fmt.Sprintf("location %q -> %q", project.Location, *patch.Location))
			project.Location = *patch.Location
		}
		details := fmt.Sprintf("updated project %s: %s", project.Code, strings.Join(changes, ", "))
		return s.audit.Record(ctx, tx, caller, project.OrganizationID, audit.ActionUpdateProject, "project "+project.ID, details)
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.logger.Info("Project updated",
		zap.String("organization_id", project.OrganizationID),
		zap.String("project_id", project.ID),
	)

	totals, err := s.txRepo.Totals(ctx, scope, project.ID)
	if err != nil {
		return nil, err
	}
	summary := summarize(*project, totals)
	return &summary, nil
}

func summarize(p domain.Project, totals []domain.StatusTotals) ProjectSummary {
	s := ProjectSummary{Project: p}
	for _, t := range totals {
		s.TransactionCount += t.Count
		s.TotalApproved += t.TotalApproved
		switch t.Status {
		case domain.StatusPending:
			s.PendingCount += t.Count
			s.PendingAmount += t.TotalApproved
		case domain.StatusHold:
			s.HoldCount += t.Count
			s.PendingAmount += t.TotalApproved
		case domain.StatusDisbursed:
			s.DisbursedCount += t.Count
			s.DisbursedAmount += t.TotalApproved
		}
	}
	return s
}

// Delete removes a project with its records and history and withdraws the
// budget that its import deposited.
func (s *ProjectService) Delete(ctx context.Context, caller authz.Caller, id string) error {
	var project *domain.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if project, err = s.projects.FindScoped(ctx, tx, caller.Scope(), id); err != nil {
			return err
		}
		if err := s.txRepo.DeleteByProject(ctx, tx, project.ID); err != nil {
			return err
		}
		if err := s.projects.Delete(ctx, tx, project.ID); err != nil {
			return err
		}
		// the ledger entry belongs to the project's organization, not the caller's
		if _, err := s.ledger.ApplyEntry(ctx, tx, ledgerdomain.Entry{
			OrganizationID: project.OrganizationID,
			Type:           ledgerdomain.Withdraw,
			Amount:         -project.TotalBudget,
			Note:           "Budget reversal for deleted project " + project.Code,
			Date:           s.now(),
			ActorID:        caller.UserID,
		}); err != nil {
			return err
		}
		details := fmt.Sprintf("deleted project %s, withdrew budget %d VND", project.Code, project.TotalBudget)
		return s.audit.Record(ctx, tx, caller, project.OrganizationID, audit.ActionDeleteProject, "project "+project.ID, details)
	})
	if err != nil {
		return apperror.Storage(err)
	}

	s.logger.Info("Project deleted",
		zap.String("organization_id", project.OrganizationID),
		zap.String("project_id", project.ID),
		zap.Int64("amount", -project.TotalBudget),
	)
	return nil
}

// Stats aggregates project and record counts visible to the caller.
func (s *ProjectService) Stats(ctx context.Context, caller authz.Caller) (*Stats, error) {
	scope := caller.Scope()
	count, err := s.projects.Count(ctx, scope)
	if err != nil {
		return nil, err
	}
	totals, err := s.txRepo.Totals(ctx, scope)
	if err != nil {
		return nil, err
	}

	byStatus := map[domain.Status]*domain.StatusTotals{}
	stats := &Stats{ProjectCount: count, ByStatus: make([]domain.StatusTotals, 0, 3)}
	for _, st := range []domain.Status{domain.StatusPending, domain.StatusHold, domain.StatusDisbursed} {
		stats.ByStatus = append(stats.ByStatus, domain.StatusTotals{Status: st})
	}
	for i := range stats.ByStatus {
		byStatus[stats.ByStatus[i].Status] = &stats.ByStatus[i]
	}
	for _, t := range totals {
		agg, ok := byStatus[t.Status]
		if !ok {
			continue
		}
		agg.Count += t.Count
		agg.TotalApproved += t.TotalApproved
		stats.TransactionCount += t.Count
	}
	return stats, nil
}
