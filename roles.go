package accounts

import "time"

// Role is the computed authorization tier. It is derived on every request
// from the identity flags plus the account profile and is never persisted.
type Role string

const (
	// RoleAnonymous is an unauthenticated visitor.
	RoleAnonymous Role = "anonymous"
	// RolePublic is any authenticated user without elevated profile state.
	RolePublic Role = "public"
	// RoleSiteManager is an approved site manager profile.
	RoleSiteManager Role = "site_manager"
	// RoleAdmin is an approved admin or superadmin profile.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin is the identity-store superuser flag.
	RoleSuperAdmin Role = "superadmin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAnonymous, RolePublic, RoleSiteManager, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	roleHierarchy := map[Role]int{
		RoleAnonymous:   0,
		RolePublic:      1,
		RoleSiteManager: 2,
		RoleAdmin:       3,
		RoleSuperAdmin:  4,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleAnonymous,
		RolePublic,
		RoleSiteManager,
		RoleAdmin,
		RoleSuperAdmin,
	}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// RoleInput is the raw account state the resolver reads. Profile may be nil
// for users the engine has never seen.
type RoleInput struct {
	Authenticated bool
	Superuser     bool
	Profile       *AccountProfile
}

// ResolveRole derives the authorization role from raw account state using
// the wall clock. See ResolveRoleAt for the pure form.
func ResolveRole(in RoleInput) Role {
	return ResolveRoleAt(in, time.Now())
}

// ResolveRoleAt derives the authorization role at a given instant. It is pure
// and deterministic: identical inputs always yield the identical role.
//
// Precedence, first match wins: unauthenticated, superuser flag, approved
// admin-eligible profile, approved site manager profile, public. Elevation
// always requires profile state; a staff tag with no matching profile
// resolves to public, never to an elevated role.
func ResolveRoleAt(in RoleInput, now time.Time) Role {
	if !in.Authenticated {
		return RoleAnonymous
	}

	if in.Superuser {
		return RoleSuperAdmin
	}

	profile := in.Profile
	if profile == nil {
		return RolePublic
	}

	if !eligibleAt(profile, now) {
		return RolePublic
	}

	switch profile.Variant {
	case VariantAdmin, VariantSuperAdmin:
		return RoleAdmin
	case VariantSiteManager:
		return RoleSiteManager
	default:
		return RolePublic
	}
}

// eligibleAt is the shared elevation predicate: approved (which excludes
// suspended and denied), not locked, and carrying a recognized staff tag.
func eligibleAt(profile *AccountProfile, now time.Time) bool {
	profile.EnsureStatus()

	if profile.ApprovalStatus != ApprovalApproved {
		return false
	}

	if profile.LockedAt(now) {
		return false
	}

	return profile.HasStaffTag()
}
