package api

import "time"

// CreateEntryReq is the body of POST /bank/transactions.
type CreateEntryReq struct {
	Type            string     `json:"type" binding:"required,oneof=DEPOSIT WITHDRAW ADJUSTMENT"`
	Amount          int64      `json:"amount" binding:"required"` // sign rules live in the service
	Note            string     `json:"note"`
	TransactionDate *time.Time `json:"transactionDate"`
	OrganizationID  string     `json:"organizationId"`
}

// AdjustOpeningReq is the body of PATCH /bank/account/opening-balance.
type AdjustOpeningReq struct {
	OpeningBalance *int64 `json:"openingBalance" binding:"required"`
	OrganizationID string `json:"organizationId"`
}
