package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/namdov3-blip/agribank-crm/internal/platform/httpx"
)

// RouteRegistrar is implemented by every module's API handler.
type RouteRegistrar interface {
	RegisterRoutes(r *gin.RouterGroup)
}

// Server wraps the HTTP listener and the gin engine.
type Server struct {
	engine *gin.Engine
	logger *zap.Logger
	port   string
	server *http.Server
}

// NewServer builds the gin engine with the shared middleware chain and
// mounts every handler under /api/v1 behind caller identity.
func NewServer(logger *zap.Logger, port, mode string, handlers ...RouteRegistrar) *Server {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 1. Recovery
	r.Use(gin.Recovery())

	// 2. Request id + access log
	r.Use(accessLog(logger))

	// 3. CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, "+
			httpx.HeaderUserID+", "+httpx.HeaderUserName+", "+httpx.HeaderUserRole+", "+
			httpx.HeaderOrganizationID+", "+httpx.HeaderPermissions)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	v1 := api.Group("", httpx.Identity())
	for _, h := range handlers {
		h.RegisterRoutes(v1)
	}

	return &Server{
		engine: r,
		logger: logger,
		port:   port,
		server: &http.Server{
			Addr:              ":" + port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", requestID)
		reqLogger := logger.With(zap.String("request_id", requestID))
		c.Set(httpx.LoggerKey, reqLogger)

		c.Next()

		reqLogger.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", time.Since(start)),
		)
	}
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run blocks until the listener stops. A graceful Shutdown is not an error.
func (s *Server) Run() error {
	s.logger.Info("Compensation service started", zap.String("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
