package domain

import "time"

// BankAccount is the single running-balance account of an organization.
// Table: bank_accounts
type BankAccount struct {
	ID                int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID    string `gorm:"type:varchar(64);uniqueIndex;not null" json:"organizationId"`
	OpeningBalance    int64  `gorm:"not null;default:0" json:"openingBalance"`
	CurrentBalance    int64  `gorm:"not null;default:0" json:"currentBalance"`
	ReconciledBalance int64  `gorm:"not null;default:0" json:"reconciledBalance"`
	// BaselineEntryID is the last ledger entry folded into OpeningBalance by
	// the most recent opening-balance reset; later entries are summed on top.
	BaselineEntryID int64     `gorm:"not null;default:0" json:"baselineEntryId"`
	Version         int64     `gorm:"not null;default:1" json:"-"` // optimistic guard
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (BankAccount) TableName() string {
	return "bank_accounts"
}

// BankTransaction is one append-only signed ledger entry.
// Table: bank_transactions
type BankTransaction struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID  string    `gorm:"type:varchar(64);not null;index" json:"organizationId"`
	BankAccountID   int64     `gorm:"not null;index" json:"bankAccountId"`
	Type            EntryType `gorm:"type:varchar(16);not null" json:"type"`
	Amount          int64     `gorm:"not null" json:"amount"` // positive inflow, negative outflow
	Note            string    `gorm:"type:text" json:"note"`
	TransactionDate time.Time `gorm:"not null" json:"transactionDate"`
	RunningBalance  int64     `gorm:"not null" json:"runningBalance"`
	CreatedByID     string    `gorm:"type:varchar(64)" json:"createdById"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (BankTransaction) TableName() string {
	return "bank_transactions"
}

// Entry is a request to append one signed amount to an organization's ledger.
type Entry struct {
	OrganizationID string
	Type           EntryType
	Amount         int64
	Note           string
	Date           time.Time // zero means now
	ActorID        string
}

// ChainBreak marks a ledger entry whose running balance does not follow
// from its predecessor.
type ChainBreak struct {
	EntryID  int64 `json:"entryId"`
	Expected int64 `json:"expected"`
	Actual   int64 `json:"actual"`
}

// ReconciliationReport compares the stored balance with the ledger entries
// appended since the last opening-balance reset.
type ReconciliationReport struct {
	OrganizationID    string       `json:"organizationId"`
	OpeningBalance    int64        `json:"openingBalance"`
	CurrentBalance    int64        `json:"currentBalance"`
	ReconciledBalance int64        `json:"reconciledBalance"`
	EntryCount        int          `json:"entryCount"`
	EntrySum          int64        `json:"entrySum"`
	ExpectedBalance   int64        `json:"expectedBalance"`
	Drift             int64        `json:"drift"`
	UnreconciledDelta int64        `json:"unreconciledDelta"`
	ChainBreaks       []ChainBreak `json:"chainBreaks"`
	Balanced          bool         `json:"balanced"`
	GeneratedAt       time.Time    `json:"generatedAt"`
}
