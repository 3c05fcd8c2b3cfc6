package api

import (
	"github.com/gin-gonic/gin"

	"github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/service"
	"github.com/namdov3-blip/agribank-crm/internal/platform/httpx"
)

type LedgerHandler struct {
	svc *service.LedgerService
}

func NewLedgerHandler(svc *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// RegisterRoutes mounts the bank ledger endpoints.
func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	bank := r.Group("/bank")
	{
		bank.GET("/account", h.GetAccount)
		bank.GET("/transactions", h.ListTransactions)
		bank.POST("/transactions", h.PostTransaction)
		bank.PATCH("/account/opening-balance", httpx.RequireAdmin(), h.AdjustOpeningBalance)
		bank.GET("/reconciliation", h.Reconcile)
	}
}

// GetAccount GET /api/v1/bank/account
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	acc, err := h.svc.GetAccount(c.Request.Context(), httpx.Caller(c), c.Query("organizationId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, acc)
}

// ListTransactions GET /api/v1/bank/transactions
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	entries, err := h.svc.ListTransactions(c.Request.Context(), httpx.Caller(c), c.Query("organizationId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, entries)
}

// PostTransaction records a manual ledger entry.
// POST /api/v1/bank/transactions
func (h *LedgerHandler) PostTransaction(c *gin.Context) {
	var req CreateEntryReq

	// 1. Bind and validate the body
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, httpx.BindError(err))
		return
	}

	// 2. DTO -> service request
	svcReq := service.ManualEntryRequest{
		OrganizationID: req.OrganizationID,
		Type:           domain.EntryType(req.Type),
		Amount:         req.Amount,
		Note:           req.Note,
		Date:           req.TransactionDate,
	}

	// 3. Apply
	entry, err := h.svc.CreateManualEntry(c.Request.Context(), httpx.Caller(c), svcReq)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.Created(c, entry)
}

// AdjustOpeningBalance PATCH /api/v1/bank/account/opening-balance
func (h *LedgerHandler) AdjustOpeningBalance(c *gin.Context) {
	var req AdjustOpeningReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, httpx.BindError(err))
		return
	}

	acc, err := h.svc.AdjustOpeningBalance(c.Request.Context(), httpx.Caller(c), req.OrganizationID, *req.OpeningBalance)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, acc)
}

// Reconcile GET /api/v1/bank/reconciliation
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	report, err := h.svc.Reconcile(c.Request.Context(), httpx.Caller(c), c.Query("organizationId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, report)
}
