// Package httpx holds the gin helpers shared by every module's API layer:
// caller identity, error mapping and response envelopes.
package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
)

// Headers set by the authentication gateway in front of this service.
const (
	HeaderUserID         = "X-User-ID"
	HeaderUserName       = "X-User-Name"
	HeaderUserRole       = "X-User-Role"
	HeaderOrganizationID = "X-Organization-ID"
	HeaderPermissions    = "X-Permissions"

	callerKey = "x-caller"

	// LoggerKey is where the server stores its logger on the gin context.
	LoggerKey = "x-logger"
)

// Identity reads the caller from gateway headers. Requests without a user or
// organization are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := authz.Caller{
			UserID:         c.GetHeader(HeaderUserID),
			Name:           c.GetHeader(HeaderUserName),
			Role:           c.GetHeader(HeaderUserRole),
			OrganizationID: c.GetHeader(HeaderOrganizationID),
			Permissions:    splitList(c.GetHeader(HeaderPermissions)),
		}
		if caller.UserID == "" || caller.OrganizationID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
			return
		}
		c.Set(callerKey, caller)
		c.Request = c.Request.WithContext(authz.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role or permission.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Caller(c).IsAdmin() {
			Error(c, apperror.Forbidden("admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Caller returns the identity set by Identity.
func Caller(c *gin.Context) authz.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(authz.Caller); ok {
			return caller
		}
	}
	return authz.Caller{}
}

// OK writes the success envelope.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes the success envelope with 201.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Error maps an error class onto a status code and writes it.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"success": false, "error": err.Error()}

	var verr *apperror.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body["details"] = verr.Fields
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
	default:
		// storage faults stay opaque to the client
		body["error"] = "internal error"
		if l, ok := c.Get(LoggerKey); ok {
			if logger, ok := l.(*zap.Logger); ok {
				logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
			}
		}
	}
	c.JSON(status, body)
}

// BindError converts a gin binding failure into a ValidationError.
func BindError(err error) error {
	v := &apperror.ValidationError{Message: "invalid request body"}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		for _, fe := range ves {
			v.Add(fe.Field(), "failed %q validation", fe.Tag())
		}
		return v
	}
	v.Add("body", "%s", err.Error())
	return v
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
