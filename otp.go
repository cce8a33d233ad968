package accounts

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OTPLifetime is the verification window of a code.
var OTPLifetime = 10 * time.Minute

// OTPResendCooldown is the minimum gap between codes for the same user.
var OTPResendCooldown = 60 * time.Second

var otpCodeSpace = big.NewInt(1_000_000)

// OneTimePasswordService issues and verifies the single live email
// verification code per user. Generate and Verify for the same user are
// mutually exclusive: a verify in flight can never succeed against a code a
// concurrent resend has just superseded.
type OneTimePasswordService struct {
	otps   OneTimePasswords
	sink   LifecycleSink
	logger Logger
	now    func() time.Time
	locks  userLocks
}

// OTPOption customizes service construction.
type OTPOption func(*OneTimePasswordService)

// WithOTPClock injects a custom clock (useful for tests).
func WithOTPClock(clock func() time.Time) OTPOption {
	return func(s *OneTimePasswordService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithOTPSink sets the sink that receives OTPIssued events.
func WithOTPSink(sink LifecycleSink) OTPOption {
	return func(s *OneTimePasswordService) {
		s.sink = normalizeLifecycleSink(sink)
	}
}

// WithOTPLogger overrides the logger used for sink failures.
func WithOTPLogger(logger Logger) OTPOption {
	return func(s *OneTimePasswordService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewOneTimePasswordService returns a service persisting through the given
// repository.
func NewOneTimePasswordService(otps OneTimePasswords, opts ...OTPOption) *OneTimePasswordService {
	s := &OneTimePasswordService{
		otps:   otps,
		sink:   noopLifecycleSink{},
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Generate produces a uniformly random six digit code for the user and
// replaces any existing code atomically. The destination address rides on
// the emitted OTPIssued event for the notification sink.
func (s *OneTimePasswordService) Generate(ctx context.Context, userID uuid.UUID, destination string) (*OneTimePassword, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	return s.issue(ctx, userID, destination)
}

// Verify checks a submitted code. A missing or different code fails with
// ErrOTPMismatch, a stale one with ErrOTPExpired. On success the code is
// deleted; it is single use. Mismatches are not counted or rate limited,
// unlike login failures.
func (s *OneTimePasswordService) Verify(ctx context.Context, userID uuid.UUID, submitted string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	otp, err := s.otps.GetByUserID(ctx, userID)
	if err != nil {
		if IsRecordNotFound(err) {
			return ErrOTPMismatch
		}
		return err
	}

	// Exact string compare; "001234" and "1234" are different codes.
	if otp.Code != submitted {
		return ErrOTPMismatch
	}

	if otp.ExpiredAt(s.now()) {
		return ErrOTPExpired
	}

	return s.otps.DeleteByUserID(ctx, userID)
}

// CanResend reports whether the cooldown since the last code has elapsed.
func (s *OneTimePasswordService) CanResend(otp *OneTimePassword) bool {
	if otp == nil || otp.CreatedAt == nil {
		return true
	}
	return s.now().After(otp.CreatedAt.Add(OTPResendCooldown))
}

// Resend issues a fresh code once the cooldown has elapsed, rejecting the
// request with ErrResendTooSoon before that.
func (s *OneTimePasswordService) Resend(ctx context.Context, userID uuid.UUID, destination string) (*OneTimePassword, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	existing, err := s.otps.GetByUserID(ctx, userID)
	if err != nil && !IsRecordNotFound(err) {
		return nil, err
	}

	if existing != nil && !s.CanResend(existing) {
		return nil, ErrResendTooSoon
	}

	return s.issue(ctx, userID, destination)
}

func (s *OneTimePasswordService) issue(ctx context.Context, userID uuid.UUID, destination string) (*OneTimePassword, error) {
	code, err := randomCode()
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	otp := &OneTimePassword{
		UserID:    userID,
		Code:      code,
		CreatedAt: &createdAt,
	}

	stored, err := s.otps.Replace(ctx, otp)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, LifecycleEvent{
		EventType:   EventOTPIssued,
		Actor:       ActorRef{ID: userID.String(), Type: "user"},
		UserID:      userID.String(),
		Destination: destination,
		Template:    templateForEvent(EventOTPIssued),
		OccurredAt:  createdAt,
	})

	return stored, nil
}

func (s *OneTimePasswordService) recordEvent(ctx context.Context, event LifecycleEvent) {
	sink := normalizeLifecycleSink(s.sink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("otp sink record error: %v", err)
	}
}

// randomCode draws a uniform value in [0, 1e6) and zero pads it.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// userLocks serializes OTP operations per user id.
type userLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (l *userLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*userLock)
	}
	entry, ok := l.locks[id]
	if !ok {
		entry = &userLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
