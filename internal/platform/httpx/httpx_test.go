package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIdentity(t *testing.T) {
	r := gin.New()
	r.Use(Identity())
	r.GET("/whoami", func(c *gin.Context) {
		caller := Caller(c)
		fromCtx, _ := authz.FromContext(c.Request.Context())
		assert.Equal(t, caller.UserID, fromCtx.UserID)
		OK(c, gin.H{"user": caller.UserID, "org": caller.OrganizationID, "super": caller.Has(authz.PermissionSuperAdmin)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderOrganizationID, "org-a")
	req.Header.Set(HeaderPermissions, "transactions, super_admin")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body.Data["user"])
	assert.Equal(t, true, body.Data["super"])
}

func TestError_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperror.Validation("amount", "must be positive"), http.StatusBadRequest},
		{apperror.NotFound("transaction"), http.StatusNotFound},
		{apperror.Conflict("already disbursed"), http.StatusConflict},
		{apperror.Forbidden("admin required"), http.StatusForbidden},
		{apperror.Storage(assert.AnError), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tt.err)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}

func TestError_HidesStorageDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, apperror.Storage(assert.AnError))
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestRequireAdmin(t *testing.T) {
	r := gin.New()
	r.Use(Identity(), RequireAdmin())
	r.GET("/admin", func(c *gin.Context) { OK(c, nil) })

	for role, want := range map[string]int{"Admin": http.StatusOK, "User1": http.StatusForbidden} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set(HeaderUserID, "u1")
		req.Header.Set(HeaderOrganizationID, "org-a")
		req.Header.Set(HeaderUserRole, role)
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}
