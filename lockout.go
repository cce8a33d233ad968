package accounts

import (
	"context"
	"time"
)

// MaxFailedLoginAttempts is the failure count that triggers a lockout.
var MaxFailedLoginAttempts = 5

// LockoutDuration is how long a triggered lockout holds.
var LockoutDuration = 30 * time.Minute

// LockoutGuard maintains the failed-attempt counter and lock timestamp on an
// account profile. Lock expiry is evaluated lazily at read time; nothing
// sweeps expired locks out of storage.
type LockoutGuard struct {
	profiles Profiles
	sink     LifecycleSink
	logger   Logger
	now      func() time.Time
}

// LockoutGuardOption customizes guard construction.
type LockoutGuardOption func(*LockoutGuard)

// WithLockoutClock injects a custom clock (useful for tests).
func WithLockoutClock(clock func() time.Time) LockoutGuardOption {
	return func(g *LockoutGuard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithLockoutSink sets the sink that receives AccountLocked events.
func WithLockoutSink(sink LifecycleSink) LockoutGuardOption {
	return func(g *LockoutGuard) {
		g.sink = normalizeLifecycleSink(sink)
	}
}

// WithLockoutLogger overrides the logger used for sink failures.
func WithLockoutLogger(logger Logger) LockoutGuardOption {
	return func(g *LockoutGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewLockoutGuard returns a guard persisting through the given repository.
func NewLockoutGuard(profiles Profiles, opts ...LockoutGuardOption) *LockoutGuard {
	g := &LockoutGuard{
		profiles: profiles,
		sink:     noopLifecycleSink{},
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// RecordFailure increments the failure counter. When the counter reaches the
// threshold the profile is locked and an AccountLocked event is emitted. The
// increment runs as a single serialized UPDATE so concurrent failures on the
// same profile cannot lose updates.
func (g *LockoutGuard) RecordFailure(ctx context.Context, profile *AccountProfile) error {
	if profile == nil {
		return nil
	}

	attempts, err := g.profiles.IncrementFailedLogins(ctx, profile.ID)
	if err != nil {
		return err
	}

	profile.FailedLoginAttempts = attempts

	if attempts < MaxFailedLoginAttempts {
		return nil
	}

	lockedUntil := g.now().Add(LockoutDuration)
	if err := g.profiles.SetLockedUntil(ctx, profile.ID, &lockedUntil); err != nil {
		return err
	}
	profile.AccountLockedUntil = &lockedUntil

	g.recordEvent(ctx, LifecycleEvent{
		EventType: EventAccountLocked,
		Actor:     ActorRef{Type: "system"},
		UserID:    profile.UserID.String(),
		Template:  templateForEvent(EventAccountLocked),
		Metadata: map[string]any{
			"failed_login_attempts": attempts,
			"locked_until":          lockedUntil,
		},
		OccurredAt: g.now(),
	})

	return nil
}

// RecordSuccess resets the failure counter and clears any lock.
func (g *LockoutGuard) RecordSuccess(ctx context.Context, profile *AccountProfile) error {
	if profile == nil {
		return nil
	}

	if err := g.profiles.ResetFailedLogins(ctx, profile.ID); err != nil {
		return err
	}

	profile.FailedLoginAttempts = 0
	profile.AccountLockedUntil = nil
	return nil
}

// IsLocked reports whether the lockout window is currently open. Pure read.
func (g *LockoutGuard) IsLocked(profile *AccountProfile) bool {
	if profile == nil {
		return false
	}
	return profile.LockedAt(g.now())
}

// CanLogin reports whether the account may authenticate right now: the
// identity is active, the profile is approved, and no lock is open.
func (g *LockoutGuard) CanLogin(active bool, profile *AccountProfile) bool {
	if !active {
		return false
	}

	if profile == nil {
		return false
	}

	return profile.IsApproved() && !g.IsLocked(profile)
}

func (g *LockoutGuard) recordEvent(ctx context.Context, event LifecycleEvent) {
	sink := normalizeLifecycleSink(g.sink)
	if err := sink.Record(ctx, event); err != nil {
		g.logger.Warn("lockout sink record error: %v", err)
	}
}
