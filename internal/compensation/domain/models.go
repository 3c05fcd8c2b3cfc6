package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Project groups the compensation records of one resettlement project.
// Table: projects
type Project struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrganizationID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_projects_org_code,priority:1" json:"organizationId"`
	Code              string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_projects_org_code,priority:2" json:"code"`
	Name              string    `gorm:"type:varchar(255);not null" json:"name"`
	Location          string    `gorm:"type:varchar(255)" json:"location"`
	TotalBudget       int64     `gorm:"not null" json:"totalBudget"`
	StartDate         time.Time `gorm:"not null" json:"startDate"`
	InterestStartDate time.Time `gorm:"not null" json:"interestStartDate"`
	CreatedByID       string    `gorm:"type:varchar(64)" json:"createdById"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (Project) TableName() string {
	return "projects"
}

// Household is the land user receiving compensation. Reference data only.
// Table: households
type Household struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrganizationID string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_households_org_code,priority:1" json:"organizationId"`
	HouseholdCode  string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_households_org_code,priority:2" json:"householdId"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	NationalID     string          `gorm:"type:varchar(32)" json:"cccd"`
	Address        string          `gorm:"type:text" json:"address"`
	LandOrigin     string          `gorm:"type:varchar(255)" json:"landOrigin"`
	LandArea       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"landArea"`
	DecisionNumber string          `gorm:"type:varchar(100)" json:"decisionNumber"`
	DecisionDate   *time.Time      `json:"decisionDate"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (Household) TableName() string {
	return "households"
}

// Transaction is the compensation record of one household in one project.
// Interest of an open record is derived from TotalApproved, the interest base
// date and now. A disbursement stores the settled interest and rate, which
// stay fixed until a refund reopens the record.
// Table: transactions
type Transaction struct {
	ID                    string              `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrganizationID        string              `gorm:"type:varchar(64);not null;index" json:"organizationId"`
	ProjectID             string              `gorm:"type:varchar(36);not null;index" json:"projectId"`
	HouseholdID           string              `gorm:"type:varchar(36);not null;index" json:"householdId"`
	TotalApproved         int64               `gorm:"not null" json:"totalApproved"`
	Status                Status              `gorm:"type:varchar(16);not null;index" json:"status"`
	DisbursementDate      *time.Time          `json:"disbursementDate"`
	EffectiveInterestDate *time.Time          `json:"effectiveInterestDate"`
	SupplementaryAmount   int64               `gorm:"not null;default:0" json:"supplementaryAmount"`
	SupplementaryNote     *string             `gorm:"type:text" json:"supplementaryNote"`
	SettledInterest       int64               `gorm:"not null;default:0" json:"settledInterest"`
	SettledRate           decimal.NullDecimal `gorm:"type:numeric(6,3)" json:"settledRate"`
	Notes                 string              `gorm:"type:text" json:"notes"`
	Metadata              datatypes.JSON      `json:"metadata"`
	CreatedByID           string              `gorm:"type:varchar(64)" json:"createdById"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`

	Household Household `gorm:"foreignKey:HouseholdID" json:"household"`
	Project   Project   `gorm:"foreignKey:ProjectID" json:"project"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// InterestBase returns the date interest accrues from: the record's own
// override when set, otherwise the project's interest start date.
func (t *Transaction) InterestBase() *time.Time {
	if t.EffectiveInterestDate != nil {
		return t.EffectiveInterestDate
	}
	if t.Project.InterestStartDate.IsZero() {
		return nil
	}
	base := t.Project.InterestStartDate
	return &base
}

// HistoryEntry is one line of a record's append-only history.
// Table: transaction_history
type HistoryEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID string    `gorm:"type:varchar(36);not null;index" json:"transactionId"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
	Action        string    `gorm:"type:varchar(50);not null" json:"action"`
	Details       string    `gorm:"type:text" json:"details"`
	ActorID       string    `gorm:"type:varchar(64)" json:"actorId"`
	ActorName     string    `gorm:"type:varchar(200)" json:"actorName"`
	ActorRole     string    `gorm:"type:varchar(50)" json:"actorRole"`
	Amount        *int64    `json:"totalAmount,omitempty"`
}

func (HistoryEntry) TableName() string {
	return "transaction_history"
}

// InterestSetting is one entry of an organization's rate history. Rows are
// only ever appended.
// Table: interest_settings
type InterestSetting struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID string          `gorm:"type:varchar(64);not null;index" json:"organizationId"`
	AnnualRate     decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"annualRate"`
	EffectiveFrom  time.Time       `gorm:"not null;index" json:"effectiveFrom"`
	Note           string          `gorm:"type:text" json:"note"`
	CreatedByID    string          `gorm:"type:varchar(64)" json:"createdById"`
	CreatedByName  string          `gorm:"type:varchar(200)" json:"createdByName"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (InterestSetting) TableName() string {
	return "interest_settings"
}

// History actions.
const (
	HistoryImported      = "IMPORTED"
	HistoryDisbursed     = "DISBURSED"
	HistoryRefunded      = "REFUNDED"
	HistorySupplementary = "SUPPLEMENTARY_ADDED"
	HistoryDetailsEdited = "DETAILS_UPDATED"
)
