package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/namdov3-blip/agribank-crm/internal/compensation/domain"
	"github.com/namdov3-blip/agribank-crm/internal/compensation/service"
	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/httpx"
)

type TransactionHandler struct {
	svc TransactionService
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// RegisterRoutes mounts the compensation record endpoints.
func (h *TransactionHandler) RegisterRoutes(r *gin.RouterGroup) {
	txs := r.Group("/transactions")
	{
		txs.GET("", h.List)
		txs.GET("/:id", h.Get)
		txs.PUT("/:id", h.UpdateDetails)
		txs.POST("/:id/disburse", h.Disburse)
		txs.POST("/:id/refund", h.Refund)
		txs.POST("/:id/supplementary", h.AddSupplementary)
	}
}

// List GET /api/v1/transactions?status=&projectId=&search=
func (h *TransactionHandler) List(c *gin.Context) {
	filter := domain.TransactionFilter{
		Status:    domain.Status(c.Query("status")),
		ProjectID: c.Query("projectId"),
		Search:    c.Query("search"),
	}
	list, err := h.svc.List(c.Request.Context(), httpx.Caller(c), filter)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, list)
}

// Get GET /api/v1/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), httpx.Caller(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, v)
}

// UpdateDetails PUT /api/v1/transactions/:id
func (h *TransactionHandler) UpdateDetails(c *gin.Context) {
	var req UpdateDetailsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, httpx.BindError(err))
		return
	}
	v, err := h.svc.UpdateDetails(c.Request.Context(), httpx.Caller(c), c.Param("id"), req.toService())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, v)
}

// Disburse POST /api/v1/transactions/:id/disburse
func (h *TransactionHandler) Disburse(c *gin.Context) {
	v, err := h.svc.Disburse(c.Request.Context(), httpx.Caller(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, v)
}

// Refund POST /api/v1/transactions/:id/refund
func (h *TransactionHandler) Refund(c *gin.Context) {
	var req RefundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, httpx.BindError(err))
		return
	}
	v, err := h.svc.Refund(c.Request.Context(), httpx.Caller(c), c.Param("id"), req.RefundedAmount)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, v)
}

// AddSupplementary POST /api/v1/transactions/:id/supplementary
func (h *TransactionHandler) AddSupplementary(c *gin.Context) {
	var req SupplementaryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, httpx.BindError(err))
		return
	}
	v, err := h.svc.AddSupplementary(c.Request.Context(), httpx.Caller(c), c.Param("id"), service.SupplementaryRequest{
		Amount: req.Amount,
		Note:   req.Note,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, v)
}

// ---------------------------------------------------------

type ProjectHandler struct {
	svc ProjectService
}

func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

func (h *ProjectHandler) RegisterRoutes(r *gin.RouterGroup) {
	projects := r.Group("/projects")
	{
		projects.GET("", h.List)
		projects.GET("/:id", h.Get)
		projects.PUT("/:id", h.Update)
		projects.DELETE("/:id", h.Delete)
		projects.POST("/import", h.Import)
	}
}

// List GET /api/v1/projects
func (h *ProjectHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), httpx.Caller(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, list)
}

// Get GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), httpx.Caller(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, p)
}

// Update PUT /api/v1/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req UpdateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, httpx.BindError(err))
		return
	}

	p, err := h.svc.Update(c.Request.Context(), httpx.Caller(c), c.Param("id"), req.toPatch())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, p)
}

// Delete DELETE /api/v1/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), httpx.Caller(c), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, gin.H{"id": c.Param("id")})
}

// Import creates a project from parsed spreadsheet rows.
// POST /api/v1/projects/import
func (h *ProjectHandler) Import(c *gin.Context) {
	var req ImportReq

	// 1. Bind; row-level checks are left to the service so every bad row is reported
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, httpx.BindError(err))
		return
	}

	// 2. Import atomically
	res, err := h.svc.Import(c.Request.Context(), httpx.Caller(c), req.toService())
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.Created(c, res)
}

// ---------------------------------------------------------

// AdminHandler serves the administrative endpoints. Reading the interest rate
// is open to every caller; the rest requires the admin role or permission.
type AdminHandler struct {
	rates    RateService
	projects ProjectService
	audit    AuditLog
	accounts AccountReader
}

func NewAdminHandler(rates RateService, projects ProjectService, audit AuditLog, accounts AccountReader) *AdminHandler {
	return &AdminHandler{rates: rates, projects: projects, audit: audit, accounts: accounts}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	rates := r.Group("/admin")
	{
		rates.GET("/interest-rate", h.CurrentRate)
		rates.GET("/interest-history", h.RateHistory)
	}

	admin := r.Group("/admin", httpx.RequireAdmin())
	{
		admin.PUT("/interest-rate", h.UpdateRate)
		admin.GET("/audit-logs", h.AuditLogs)
		admin.GET("/stats", h.Stats)
	}
}

// CurrentRate GET /api/v1/admin/interest-rate
func (h *AdminHandler) CurrentRate(c *gin.Context) {
	rate, err := h.rates.Current(c.Request.Context(), httpx.Caller(c), c.Query("organizationId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, rate)
}

// UpdateRate PUT /api/v1/admin/interest-rate
func (h *AdminHandler) UpdateRate(c *gin.Context) {
	var req UpdateRateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, httpx.BindError(err))
		return
	}
	setting, err := h.rates.Update(c.Request.Context(), httpx.Caller(c), service.UpdateRateRequest{
		OrganizationID: req.OrganizationID,
		AnnualRate:     req.AnnualRate,
		EffectiveFrom:  req.EffectiveFrom,
		Note:           req.Note,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, setting)
}

// RateHistory GET /api/v1/admin/interest-history
func (h *AdminHandler) RateHistory(c *gin.Context) {
	history, err := h.rates.History(c.Request.Context(), httpx.Caller(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, history)
}

// AuditLogs GET /api/v1/admin/audit-logs?limit=
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.Error(c, apperror.Validation("limit", "must be a positive integer"))
			return
		}
		limit = n
	}
	entries, err := h.audit.List(c.Request.Context(), httpx.Caller(c).Scope(), limit)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, entries)
}

// Stats GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	caller := httpx.Caller(c)

	stats, err := h.projects.Stats(ctx, caller)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	resp := StatsResp{Stats: stats}

	// an organization without ledger activity has no account yet
	acc, err := h.accounts.GetAccount(ctx, caller, c.Query("organizationId"))
	switch {
	case err == nil:
		resp.CurrentBalance = acc.CurrentBalance
		resp.ReconciledBalance = acc.ReconciledBalance
		resp.OpeningBalance = acc.OpeningBalance
	case !errors.Is(err, apperror.ErrNotFound):
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, resp)
}
