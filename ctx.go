package accounts

import (
	"context"
)

var profileCtxKey = &contextKey{"profile"}
var roleCtxKey = &contextKey{"role"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithProfileContext sets the AccountProfile in the given context
func WithProfileContext(r context.Context, profile *AccountProfile) context.Context {
	return context.WithValue(r, profileCtxKey, profile)
}

// ProfileFromContext finds the profile from the context.
func ProfileFromContext(ctx context.Context) (*AccountProfile, bool) {
	raw, ok := ctx.Value(profileCtxKey).(*AccountProfile)
	return raw, ok
}

// WithRoleContext sets the computed Role in the given context
func WithRoleContext(r context.Context, role Role) context.Context {
	return context.WithValue(r, roleCtxKey, role)
}

// RoleFromContext finds the computed role from the context. Absent a value
// it reports RoleAnonymous, the safe floor.
func RoleFromContext(ctx context.Context) Role {
	if raw, ok := ctx.Value(roleCtxKey).(Role); ok {
		return raw
	}
	return RoleAnonymous
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// AtLeast is a convenience check against the computed role in the context.
func AtLeast(ctx context.Context, minRole Role) bool {
	return RoleFromContext(ctx).IsAtLeast(minRole)
}
