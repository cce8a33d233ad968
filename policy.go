package accounts

import "strings"

// Decision is the outcome of a path policy check. A blocked decision carries
// the redirect target the boundary should send the client to.
type Decision struct {
	Allow    bool
	Redirect string
}

// Allowed is the decision that lets the request continue.
func Allowed() Decision {
	return Decision{Allow: true}
}

// Blocked is the decision that stops the request and redirects.
func Blocked(redirect string) Decision {
	return Decision{Redirect: redirect}
}

// RolePolicy is the per-role slice of the path policy: prefix lists plus the
// redirect target used when this role hits one of its blocked prefixes.
type RolePolicy struct {
	// Allowed prefixes this role may always reach.
	Allowed []string
	// Blocked prefixes this role may never reach. Blocked wins over allowed.
	Blocked []string
	// Redirect is where the role lands after hitting a blocked prefix.
	Redirect string
	// LoginRedirect is where the role is sent when it hits a protected
	// prefix it was not explicitly allowed into. Empty falls back to the
	// policy-wide login path.
	LoginRedirect string
}

// PathPolicyConfig is the raw material for NewPathPolicy.
type PathPolicyConfig struct {
	// Roles maps each role to its prefix lists.
	Roles map[Role]RolePolicy
	// Protected are prefixes that require authentication regardless of
	// role, unless a role's allowed list explicitly covers them.
	Protected []string
	// LoginPath is the generic login redirect for anonymous visitors.
	LoginPath string
	// DefaultRedirect is used for roles with no configured redirect.
	DefaultRedirect string
}

// PathPolicy decides whether a role may reach a request path. It is built
// once at process start and never mutated afterwards, so it is safe to share
// across concurrent requests.
type PathPolicy struct {
	roles           map[Role]RolePolicy
	protected       []string
	loginPath       string
	defaultRedirect string
}

// NewPathPolicy copies the configuration into an immutable policy value.
func NewPathPolicy(cfg PathPolicyConfig) *PathPolicy {
	roles := make(map[Role]RolePolicy, len(cfg.Roles))
	for role, rp := range cfg.Roles {
		roles[role] = RolePolicy{
			Allowed:       append([]string(nil), rp.Allowed...),
			Blocked:       append([]string(nil), rp.Blocked...),
			Redirect:      rp.Redirect,
			LoginRedirect: rp.LoginRedirect,
		}
	}

	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}

	defaultRedirect := cfg.DefaultRedirect
	if defaultRedirect == "" {
		defaultRedirect = "/"
	}

	return &PathPolicy{
		roles:           roles,
		protected:       append([]string(nil), cfg.Protected...),
		loginPath:       loginPath,
		defaultRedirect: defaultRedirect,
	}
}

// LoginPath is the generic login redirect target.
func (p *PathPolicy) LoginPath() string {
	return p.loginPath
}

// Decide evaluates the policy for a role and request path.
//
// Superadmin is allowed unconditionally. Otherwise the role's blocked list is
// consulted first, then its allowed list, then the global protected list;
// anything left over is public content and allowed. Matching is plain string
// prefix, not route patterns.
func (p *PathPolicy) Decide(role Role, path string) Decision {
	if role == RoleSuperAdmin {
		return Allowed()
	}

	rp, hasRole := p.roles[role]

	if hasRole && matchesPrefix(path, rp.Blocked) {
		return Blocked(p.blockRedirect(rp))
	}

	if hasRole && matchesPrefix(path, rp.Allowed) {
		return Allowed()
	}

	if matchesPrefix(path, p.protected) {
		return Blocked(p.loginRedirect(role, rp, hasRole))
	}

	return Allowed()
}

func (p *PathPolicy) blockRedirect(rp RolePolicy) string {
	if rp.Redirect != "" {
		return rp.Redirect
	}
	return p.defaultRedirect
}

func (p *PathPolicy) loginRedirect(role Role, rp RolePolicy, hasRole bool) string {
	if role == RoleAnonymous {
		return p.loginPath
	}
	if hasRole && rp.LoginRedirect != "" {
		return rp.LoginRedirect
	}
	return p.loginPath
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
