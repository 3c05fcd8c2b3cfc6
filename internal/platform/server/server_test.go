package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/namdov3-blip/agribank-crm/internal/platform/httpx"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type whoami struct{}

func (whoami) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/whoami", func(c *gin.Context) {
		httpx.OK(c, httpx.Caller(c).UserID)
	})
}

func TestServer_Routes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv := NewServer(zap.New(core), "0", "test", whoami{})

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"health is public", http.MethodGet, "/api/v1/health", nil, http.StatusOK},
		{"api requires identity", http.MethodGet, "/api/v1/whoami", nil, http.StatusUnauthorized},
		{"identified", http.MethodGet, "/api/v1/whoami", map[string]string{httpx.HeaderUserID: "u1", httpx.HeaderOrganizationID: "org-a"}, http.StatusOK},
		{"preflight", http.MethodOptions, "/api/v1/whoami", nil, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}

	entries := logs.FilterMessage("HTTP Request").All()
	assert.Len(t, entries, len(tests))
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
}

func TestServer_KeepsCallerRequestID(t *testing.T) {
	srv := NewServer(zap.NewNop(), "0", "test")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	srv := NewServer(zap.NewNop(), "0", "test")
	assert.NoError(t, srv.Shutdown(context.Background()))
}
