package accounts

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Auther is the default Authenticator. It defers credential verification to
// the external identity store, drives the lockout guard from the result, and
// issues a session token carrying the computed role.
type Auther struct {
	store          IdentityStore
	profiles       Profiles
	lockout        *LockoutGuard
	tokenService   TokenService
	tokenValidator TokenValidator
	sink           LifecycleSink
	logger         Logger
	now            func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store IdentityStore, profiles Profiles, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	a := &Auther{
		store:        store,
		profiles:     profiles,
		tokenService: tokenService,
		sink:         noopLifecycleSink{},
		logger:       defLogger{},
		now:          time.Now,
	}
	a.lockout = NewLockoutGuard(profiles)

	return a
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

// WithLockoutGuard replaces the default guard, e.g. to share a sink or clock.
func (s *Auther) WithLockoutGuard(guard *LockoutGuard) *Auther {
	if guard != nil {
		s.lockout = guard
	}
	return s
}

// WithLifecycleSink configures a sink for login success/failure events.
func (s *Auther) WithLifecycleSink(sink LifecycleSink) *Auther {
	s.sink = normalizeLifecycleSink(sink)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login authenticates an identifier/password pair.
//
// The boundary is deliberately generic: unknown identifiers and wrong
// passwords both come back as ErrInvalidCredentials, revealing nothing about
// whether the account exists. Lockout and approval rejections are explicit
// because they only occur after the caller has proven the credentials.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	identity, err := s.store.FindIdentityByIdentifier(ctx, identifier)
	if err != nil || identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Debug("Login identity lookup failed", "identifier", identifier)
		s.emitLoginEvent(ctx, EventLoginFailure, "", map[string]any{
			"reason": "unknown identifier",
		})
		return "", ErrInvalidCredentials
	}

	profile, err := s.loadProfile(ctx, identity)
	if err != nil {
		return "", err
	}

	if profile != nil && s.lockout.IsLocked(profile) {
		s.emitLoginEvent(ctx, EventLoginFailure, identity.ID(), map[string]any{
			"reason": "account locked",
		})
		return "", ErrAccountLocked.WithMetadata(map[string]any{
			"locked_until": profile.AccountLockedUntil,
		})
	}

	verified, err := s.store.Authenticate(ctx, identifier, password)
	if err != nil || verified == nil || reflect.ValueOf(verified).IsZero() {
		if profile != nil {
			if err2 := s.lockout.RecordFailure(ctx, profile); err2 != nil {
				s.logger.Error("Login failed to record failed attempt", "error", err2)
			}
		}
		s.emitLoginEvent(ctx, EventLoginFailure, identity.ID(), map[string]any{
			"reason": "credential mismatch",
		})
		return "", ErrInvalidCredentials
	}

	if !verified.Active() {
		s.emitLoginEvent(ctx, EventLoginFailure, identity.ID(), map[string]any{
			"reason": "inactive identity",
		})
		return "", ErrInvalidCredentials
	}

	// Clients have no approval gate; privileged variants must be approved.
	if profile != nil && profile.Variant.Privileged() && !profile.IsApproved() {
		s.emitLoginEvent(ctx, EventLoginFailure, identity.ID(), map[string]any{
			"reason": "not approved",
			"status": string(profile.ApprovalStatus),
		})
		return "", NotApprovedError(profile.ApprovalStatus)
	}

	if profile != nil {
		if err := s.lockout.RecordSuccess(ctx, profile); err != nil {
			s.logger.Error("Login failed to reset lockout counters", "error", err)
		}
	}

	role := ResolveRoleAt(RoleInput{
		Authenticated: true,
		Superuser:     verified.Superuser(),
		Profile:       profile,
	}, s.now())

	token, err := s.tokenService.Generate(verified, role)
	if err != nil {
		s.emitLoginEvent(ctx, EventLoginFailure, identity.ID(), map[string]any{
			"reason": "token generation failed",
		})
		return "", err
	}

	s.emitLoginEvent(ctx, EventLoginSuccess, identity.ID(), map[string]any{
		"role": string(role),
	})

	return token, nil
}

// SessionFromToken validates a raw token and materializes a session.
func (s Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Debug("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

// IdentityFromSession resolves the live identity behind a session.
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.store.GetUser(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("IdentityFromSession get user: %s", err)
		return nil, err
	}

	return identity, nil
}

// loadProfile fetches the account profile for an identity. A missing profile
// is not an error; many users never had one created.
func (s *Auther) loadProfile(ctx context.Context, identity Identity) (*AccountProfile, error) {
	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		s.logger.Debug("loadProfile identity has non uuid id", "id", identity.ID())
		return nil, nil
	}

	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return profile, nil
}

func (s *Auther) emitLoginEvent(ctx context.Context, eventType LifecycleEventType, userID string, metadata map[string]any) {
	sink := normalizeLifecycleSink(s.sink)

	actor := ActorRef{Type: "unknown"}
	if userID != "" {
		actor = ActorRef{ID: userID, Type: "user"}
	}

	event := LifecycleEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("login sink record error: %v", err)
	}
}
