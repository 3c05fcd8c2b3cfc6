// Package authz carries the caller identity handed over by the auth gateway
// and turns it into an organization scope for queries.
package authz

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/platform/apperror"
)

const (
	// PermissionSuperAdmin lifts organization scoping for reads.
	PermissionSuperAdmin = "super_admin"
	// PermissionAdmin grants access to administrative operations.
	PermissionAdmin = "admin"
	// RoleAdmin is the organization administrator role.
	RoleAdmin = "Admin"
)

// Caller is the authenticated identity of a request.
type Caller struct {
	UserID         string
	Name           string
	Role           string
	OrganizationID string
	Permissions    []string
}

// Has reports whether the caller holds a permission.
func (c Caller) Has(permission string) bool {
	return slices.Contains(c.Permissions, permission)
}

// IsAdmin reports whether the caller may run administrative operations.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin || c.Has(PermissionAdmin)
}

// Scope returns the organization filter for this caller. It is evaluated
// once per request and passed down to repositories.
func (c Caller) Scope() Scope {
	if c.Has(PermissionSuperAdmin) {
		return Scope{all: true}
	}
	return Scope{organizationID: c.OrganizationID}
}

// Scope restricts queries to one organization, or to none for super admins.
type Scope struct {
	organizationID string
	all            bool
}

// OrganizationScope returns a scope bound to a single organization.
func OrganizationScope(organizationID string) Scope {
	return Scope{organizationID: organizationID}
}

// AllOrganizations returns an unrestricted scope.
func AllOrganizations() Scope {
	return Scope{all: true}
}

// IsAll reports whether the scope crosses organizations.
func (s Scope) IsAll() bool { return s.all }

// OrganizationID returns the scoped organization, empty for unrestricted scopes.
func (s Scope) OrganizationID() string { return s.organizationID }

// Allows reports whether a row owned by organizationID is visible.
func (s Scope) Allows(organizationID string) bool {
	return s.all || s.organizationID == organizationID
}

// Apply adds the organization predicate to a query. column is the
// qualified organization column, e.g. "transactions.organization_id".
func (s Scope) Apply(db *gorm.DB, column string) *gorm.DB {
	if s.all {
		return db
	}
	return db.Where(column+" = ?", s.organizationID)
}

type contextKey struct{}

// WithCaller stores the caller on a context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the caller stored on ctx.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}

// TargetOrganization resolves which organization a write or an
// organization-bound read applies to. Only super admins may name an
// organization other than their own; anyone else gets a not-found error so
// other organizations stay invisible.
func (c Caller) TargetOrganization(requested string) (string, error) {
	if requested == "" || requested == c.OrganizationID {
		return c.OrganizationID, nil
	}
	if c.Has(PermissionSuperAdmin) {
		return requested, nil
	}
	return "", apperror.NotFound("organization")
}
