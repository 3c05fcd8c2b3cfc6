package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/service"
)

// RefundReq is the body of POST /transactions/:id/refund.
type RefundReq struct {
	RefundedAmount int64 `json:"refundedAmount" binding:"required"`
}

// SupplementaryReq is the body of POST /transactions/:id/supplementary.
type SupplementaryReq struct {
	Amount int64   `json:"amount" binding:"required"` // signed
	Note   *string `json:"note"`
}

// UpdateDetailsReq is the body of PUT /transactions/:id. Absent fields are
// left unchanged.
type UpdateDetailsReq struct {
	Name           *string    `json:"name"`
	NationalID     *string    `json:"cccd"`
	Address        *string    `json:"address"`
	DecisionNumber *string    `json:"decisionNumber"`
	DecisionDate   *time.Time `json:"decisionDate"`
	Notes          *string    `json:"notes"`
}

func (r UpdateDetailsReq) toService() service.UpdateDetailsRequest {
	return service.UpdateDetailsRequest{
		Household: domain.HouseholdPatch{
			Name:           r.Name,
			NationalID:     r.NationalID,
			Address:        r.Address,
			DecisionNumber: r.DecisionNumber,
			DecisionDate:   r.DecisionDate,
		},
		Notes: r.Notes,
	}
}

// ImportReq is the body of POST /projects/import: a project definition and
// the household rows already parsed from the spreadsheet.
type ImportReq struct {
	OrganizationID string         `json:"organizationId"`
	Project        ProjectReq     `json:"project"`
	Rows           []ImportRowReq `json:"rows"`
}

type ProjectReq struct {
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Location          string     `json:"location"`
	TotalBudget       int64      `json:"totalBudget"`
	StartDate         *time.Time `json:"startDate"`
	InterestStartDate *time.Time `json:"interestStartDate"`
}

// UpdateProjectReq is the body of PUT /projects/:id. Absent fields are left
// unchanged.
type UpdateProjectReq struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

func (r UpdateProjectReq) toPatch() domain.ProjectPatch {
	return domain.ProjectPatch{Name: r.Name, Location: r.Location}
}

type ImportRowReq struct {
	HouseholdID    string                 `json:"householdId"`
	Name           string                 `json:"name"`
	NationalID     string                 `json:"cccd"`
	Address        string                 `json:"address"`
	LandOrigin     string                 `json:"landOrigin"`
	LandArea       decimal.Decimal        `json:"landArea"`
	DecisionNumber string                 `json:"decisionNumber"`
	DecisionDate   *time.Time             `json:"decisionDate"`
	Amount         int64                  `json:"amount"`
	Notes          string                 `json:"notes"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (r ImportReq) toService() service.ImportRequest {
	rows := make([]service.ImportRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = service.ImportRow{
			HouseholdCode:  row.HouseholdID,
			Name:           row.Name,
			NationalID:     row.NationalID,
			Address:        row.Address,
			LandOrigin:     row.LandOrigin,
			LandArea:       row.LandArea,
			DecisionNumber: row.DecisionNumber,
			DecisionDate:   row.DecisionDate,
			Amount:         row.Amount,
			Notes:          row.Notes,
			Metadata:       row.Metadata,
		}
	}
	return service.ImportRequest{
		OrganizationID: r.OrganizationID,
		Project: service.ProjectDefinition{
			Code:              r.Project.Code,
			Name:              r.Project.Name,
			Location:          r.Project.Location,
			TotalBudget:       r.Project.TotalBudget,
			StartDate:         r.Project.StartDate,
			InterestStartDate: r.Project.InterestStartDate,
		},
		Rows: rows,
	}
}

// UpdateRateReq is the body of PUT /admin/interest-rate.
type UpdateRateReq struct {
	AnnualRate     decimal.Decimal `json:"annualRate"`
	EffectiveFrom  *time.Time      `json:"effectiveFrom"`
	Note           string          `json:"note"`
	OrganizationID string          `json:"organizationId"`
}

// StatsResp is the body of GET /admin/stats.
type StatsResp struct {
	*service.Stats
	CurrentBalance    int64 `json:"currentBalance"`
	ReconciledBalance int64 `json:"reconciledBalance"`
	OpeningBalance    int64 `json:"openingBalance"`
}
