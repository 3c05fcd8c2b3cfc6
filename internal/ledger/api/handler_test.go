package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/adapter/repo"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/api"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/domain"
	"github.com/namdov3-blip/agribank-crm/internal/ledger/service"
	"github.com/namdov3-blip/agribank-crm/internal/platform/database/dbtest"
	"github.com/namdov3-blip/agribank-crm/internal/platform/httpx"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	db := dbtest.Open(t, repo.AutoMigrate, audit.AutoMigrate)
	svc := service.NewLedgerService(db, repo.NewAccountRepo(db), repo.NewTransactionRepo(db), audit.NewRecorder(db), zap.NewNop())

	r := gin.New()
	api.NewLedgerHandler(svc).RegisterRoutes(r.Group("/api/v1", httpx.Identity()))
	return r
}

func call(t *testing.T, r *gin.Engine, role, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpx.HeaderUserID, "u1")
	req.Header.Set(httpx.HeaderUserRole, role)
	req.Header.Set(httpx.HeaderOrganizationID, "org-a")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return w.Code
}

func TestLedgerHandler_ManualEntries(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusNotFound, call(t, r, "User1", http.MethodGet, "/api/v1/bank/account", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, r, "User1", http.MethodGet, "/api/v1/bank/reconciliation", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, r, "User1", http.MethodGet, "/api/v1/bank/account", nil, nil))

	var entry domain.BankTransaction
	code := call(t, r, "User1", http.MethodPost, "/api/v1/bank/transactions",
		map[string]interface{}{"type": "DEPOSIT", "amount": 1_000_000, "note": "top up"}, &entry)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, int64(1_000_000), entry.RunningBalance)

	code = call(t, r, "User1", http.MethodPost, "/api/v1/bank/transactions",
		map[string]interface{}{"type": "WITHDRAW", "amount": 250_000}, &entry)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, int64(-250_000), entry.Amount)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown type", map[string]interface{}{"type": "TRANSFER", "amount": 1}},
		{"missing amount", map[string]interface{}{"type": "DEPOSIT"}},
		{"negative deposit", map[string]interface{}{"type": "DEPOSIT", "amount": -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, call(t, r, "User1", http.MethodPost, "/api/v1/bank/transactions", tt.body, nil))
		})
	}

	var acc domain.BankAccount
	require.Equal(t, http.StatusOK, call(t, r, "User1", http.MethodGet, "/api/v1/bank/account", nil, &acc))
	assert.Equal(t, int64(750_000), acc.CurrentBalance)

	var entries []domain.BankTransaction
	require.Equal(t, http.StatusOK, call(t, r, "User1", http.MethodGet, "/api/v1/bank/transactions", nil, &entries))
	assert.Len(t, entries, 2)
}

func TestLedgerHandler_OpeningBalanceAndReconciliation(t *testing.T) {
	r := newRouter(t)

	require.Equal(t, http.StatusCreated, call(t, r, "User1", http.MethodPost, "/api/v1/bank/transactions",
		map[string]interface{}{"type": "DEPOSIT", "amount": 400}, nil))

	body := map[string]interface{}{"openingBalance": 10_000}
	assert.Equal(t, http.StatusForbidden, call(t, r, "User1", http.MethodPatch, "/api/v1/bank/account/opening-balance", body, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, r, "Admin", http.MethodPatch, "/api/v1/bank/account/opening-balance", map[string]interface{}{}, nil))

	var acc domain.BankAccount
	require.Equal(t, http.StatusOK, call(t, r, "Admin", http.MethodPatch, "/api/v1/bank/account/opening-balance", body, &acc))
	assert.Equal(t, int64(10_000), acc.OpeningBalance)
	assert.Equal(t, int64(10_000), acc.CurrentBalance)

	require.Equal(t, http.StatusCreated, call(t, r, "User1", http.MethodPost, "/api/v1/bank/transactions",
		map[string]interface{}{"type": "WITHDRAW", "amount": 3_000}, nil))

	var report domain.ReconciliationReport
	require.Equal(t, http.StatusOK, call(t, r, "User1", http.MethodGet, "/api/v1/bank/reconciliation", nil, &report))
	assert.True(t, report.Balanced)
	assert.Equal(t, 1, report.EntryCount)
	assert.Equal(t, int64(7_000), report.CurrentBalance)
}
