package api

import (
	"context"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/service"
	ledgerdomain "github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

// The handlers depend on these interfaces rather than on the concrete
// services, so the HTTP layer is tested against mocks.
//
//go:generate mockgen -destination=mocks/mock_service.go -source=interface.go

type TransactionService interface {
	Get(ctx context.Context, caller authz.Caller, id string) (*service.TransactionView, error)
	List(ctx context.Context, caller authz.Caller, filter domain.TransactionFilter) ([]service.TransactionView, error)
	Disburse(ctx context.Context, caller authz.Caller, id string) (*service.TransactionView, error)
	Refund(ctx context.Context, caller authz.Caller, id string, refundedAmount int64) (*service.TransactionView, error)
	AddSupplementary(ctx context.Context, caller authz.Caller, id string, req service.SupplementaryRequest) (*service.TransactionView, error)
	UpdateDetails(ctx context.Context, caller authz.Caller, id string, req service.UpdateDetailsRequest) (*service.TransactionView, error)
}

type ProjectService interface {
	Import(ctx context.Context, caller authz.Caller, req service.ImportRequest) (*service.ImportResult, error)
	List(ctx context.Context, caller authz.Caller) ([]service.ProjectSummary, error)
	Get(ctx context.Context, caller authz.Caller, id string) (*service.ProjectSummary, error)
	Update(ctx context.Context, caller authz.Caller, id string, patch domain.ProjectPatch) (*service.ProjectSummary, error)
	Delete(ctx context.Context, caller authz.Caller, id string) error
	Stats(ctx context.Context, caller authz.Caller) (*service.Stats, error)
}

type RateService interface {
	Current(ctx context.Context, caller authz.Caller, organizationID string) (*service.CurrentRate, error)
	Update(ctx context.Context, caller authz.Caller, req service.UpdateRateRequest) (*domain.InterestSetting, error)
	History(ctx context.Context, caller authz.Caller) ([]service.RateChange, error)
}

type AuditLog interface {
	List(ctx context.Context, scope authz.Scope, limit int) ([]audit.Entry, error)
}

type AccountReader interface {
	GetAccount(ctx context.Context, caller authz.Caller, organizationID string) (*ledgerdomain.BankAccount, error)
}
