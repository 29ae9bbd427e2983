// Package auth provides organizations, users with roles, and API key
// authentication for the backend.
package auth

import (
	"context"
	"errors"
)

// Role is a user's permission level.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// ValidRoles is the set of allowed roles.
var ValidRoles = []Role{RoleAgent, RoleSupervisor, RoleAdmin}

// IsValid checks if a role is recognized.
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ErrNotFound is returned when a user, organization or key does not exist.
var ErrNotFound = errors.New("not found")

// CanViewAnalytics reports whether the user may read dashboards, maps and exports.
func (u *User) CanViewAnalytics() bool {
	return u.Role == RoleSupervisor || u.Role == RoleAdmin
}

// CanAccessOrganization reports whether the user may read or write data of orgID.
func (u *User) CanAccessOrganization(orgID string) bool {
	return u.Role == RoleAdmin || u.OrganizationID == orgID
}

// CanManage reports whether the user may create or remove target.
// Admins manage anyone; supervisors manage agents of their own organization.
func (u *User) CanManage(target *User) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleSupervisor:
		return target.Role == RoleAgent && target.OrganizationID == u.OrganizationID
	default:
		return false
	}
}

type contextKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}
