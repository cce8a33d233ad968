package accounts

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// OutcomeKind is what the gate tells the HTTP boundary to do.
type OutcomeKind int

const (
	// OutcomeContinue lets the request through to its handler.
	OutcomeContinue OutcomeKind = iota
	// OutcomeRedirect sends the client to Outcome.Redirect.
	OutcomeRedirect
	// OutcomeDeny answers 403 without a redirect.
	OutcomeDeny
)

// Outcome is the gate's per-request decision plus the state it derived.
type Outcome struct {
	Kind     OutcomeKind
	Role     Role
	Redirect string
	Profile  *AccountProfile
}

// AuthorizationGate orchestrates role resolution and the path policy for
// every inbound request. The gate holds no per-request state; one instance
// serves all concurrent requests.
type AuthorizationGate struct {
	auth                   Authenticator
	store                  IdentityStore
	profiles               Profiles
	policy                 *PathPolicy
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	denyPrefixes           []string
	now                    func() time.Time
	Debug                  bool
	Logger                 Logger
	ErrorHandler           func(c router.Context, err error) error
}

// GateOption customizes gate construction.
type GateOption func(*AuthorizationGate)

// WithGateLogger overrides the gate logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *AuthorizationGate) {
		if logger != nil {
			g.Logger = logger
		}
	}
}

// WithGateClock injects a custom clock (useful for tests).
func WithGateClock(clock func() time.Time) GateOption {
	return func(g *AuthorizationGate) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithDenyPrefixes marks path prefixes that should answer 403 instead of
// redirecting when blocked, e.g. JSON API routes where a redirect to a login
// page helps nobody.
func WithDenyPrefixes(prefixes ...string) GateOption {
	return func(g *AuthorizationGate) {
		g.denyPrefixes = append(g.denyPrefixes, prefixes...)
	}
}

// NewAuthorizationGate wires the gate over the authenticator, identity store
// and profile repository.
func NewAuthorizationGate(auth Authenticator, store IdentityStore, profiles Profiles, policy *PathPolicy, cfg Config, opts ...GateOption) *AuthorizationGate {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	g := &AuthorizationGate{
		auth:                   auth,
		store:                  store,
		profiles:               profiles,
		policy:                 policy,
		cfg:                    cfg,
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
		now:                    time.Now,
		Logger:                 defLogger{},
	}

	g.ErrorHandler = g.defaultErrHandler

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Evaluate runs the full pipeline for one request: token to identity,
// identity plus profile to role, role plus path to decision. An absent or
// invalid token degrades to anonymous rather than failing the request; the
// policy decides what anonymous may see.
func (g *AuthorizationGate) Evaluate(ctx context.Context, token, path string) Outcome {
	role := RoleAnonymous
	var profile *AccountProfile

	if token != "" {
		role, profile = g.resolveRole(ctx, token)
	}

	decision := g.policy.Decide(role, path)

	if g.Debug {
		g.Logger.Debug("gate decision %s", print.MaybePrettyJSON(map[string]any{
			"role":     role,
			"path":     path,
			"allow":    decision.Allow,
			"redirect": decision.Redirect,
		}))
	}

	if decision.Allow {
		return Outcome{Kind: OutcomeContinue, Role: role, Profile: profile}
	}

	for _, prefix := range g.denyPrefixes {
		if strings.HasPrefix(path, prefix) {
			return Outcome{Kind: OutcomeDeny, Role: role, Profile: profile}
		}
	}

	return Outcome{Kind: OutcomeRedirect, Role: role, Redirect: decision.Redirect, Profile: profile}
}

// resolveRole recomputes the role from live account state. The token only
// proves who the caller is; elevation always re-reads the profile.
func (g *AuthorizationGate) resolveRole(ctx context.Context, token string) (Role, *AccountProfile) {
	session, err := g.auth.SessionFromToken(token)
	if err != nil {
		g.Logger.Debug("gate session decode failed, treating as anonymous", "error", err)
		return RoleAnonymous, nil
	}

	identity, err := g.store.GetUser(ctx, session.GetUserID())
	if err != nil || identity == nil {
		g.Logger.Debug("gate identity lookup failed, treating as anonymous", "user_id", session.GetUserID())
		return RoleAnonymous, nil
	}

	var profile *AccountProfile
	if userID, err := uuid.Parse(identity.ID()); err == nil {
		if p, err := g.profiles.GetByUserID(ctx, userID); err == nil {
			profile = p
		} else if !IsRecordNotFound(err) {
			g.Logger.Error("gate profile lookup error", "error", err)
		}
	}

	role := ResolveRoleAt(RoleInput{
		Authenticated: identity.Active(),
		Superuser:     identity.Superuser(),
		Profile:       profile,
	}, g.now())

	return role, profile
}

// Middleware mounts the gate on a go-router pipeline. Continue outcomes pass
// through with the role and profile stored on the request context.
func (g *AuthorizationGate) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token := c.Cookies(g.cfg.GetContextKey())
			outcome := g.Evaluate(c.Context(), token, c.Path())

			switch outcome.Kind {
			case OutcomeDeny:
				return c.Status(http.StatusForbidden).SendString("forbidden")
			case OutcomeRedirect:
				g.SetRedirect(c)
				statusCode := http.StatusSeeOther
				if c.Method() == string(router.GET) {
					statusCode = http.StatusFound
				}
				return c.Redirect(outcome.Redirect, statusCode)
			}

			reqCtx := WithRoleContext(c.Context(), outcome.Role)
			if outcome.Profile != nil {
				reqCtx = WithProfileContext(reqCtx, outcome.Profile)
			}
			c.SetContext(reqCtx)

			return next(c)
		}
	}
}

// GetCookieDuration is the default session cookie lifetime.
func (g AuthorizationGate) GetCookieDuration() time.Duration {
	return g.cookieDuration
}

// GetExtendedCookieDuration is the remember-me cookie lifetime.
func (g AuthorizationGate) GetExtendedCookieDuration() time.Duration {
	return g.extendedCookieDuration
}

// Login authenticates the payload and sets the session cookie.
func (g *AuthorizationGate) Login(c router.Context, payload LoginPayload) error {
	token, err := g.auth.Login(c.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		g.Logger.Error("Login error: %s", err)
		return err
	}

	duration := g.cookieDuration
	if payload.GetExtendedSession() {
		duration = g.extendedCookieDuration
	}

	g.setCookieToken(c, token, duration)
	return nil
}

// Logout clears the session cookie.
func (g *AuthorizationGate) Logout(c router.Context) {
	g.cookieDel(c, g.cfg.GetContextKey())
}

// SetRedirect remembers the rejected path so a successful login can land
// the user back where they were headed.
func (g *AuthorizationGate) SetRedirect(c router.Context) {
	rejectedRoute := g.cfg.GetRejectedRouteKey()

	g.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Expires:  g.now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the remembered rejected path, falling back to def.
func (g *AuthorizationGate) GetRedirect(c router.Context, def ...string) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" {
		return def[0]
	}
	g.cookieDel(c, rejectedRoute)
	return r
}

// GetRedirectOrDefault pops the remembered rejected path, falling back to
// the referer and then the configured default.
func (g *AuthorizationGate) GetRedirectOrDefault(c router.Context) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	refererHeader := string(c.Referer())

	r := c.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = g.cfg.GetRejectedRouteDefault()
	}
	g.cookieDel(c, rejectedRoute)
	return r
}

func (g *AuthorizationGate) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     g.cfg.GetContextKey(),
		Value:    val,
		Expires:  g.now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *AuthorizationGate) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  g.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *AuthorizationGate) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	g.Logger.Info(
		"Gate error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		g.SetRedirect(c)
		statusCode := http.StatusSeeOther
		if c.Method() == string(router.GET) {
			statusCode = http.StatusFound
		}
		return c.Redirect(g.policy.LoginPath(), statusCode)
	default:
		return c.Status(richErr.Code).SendString(richErr.Message)
	}
}
