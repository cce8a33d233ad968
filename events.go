package accounts

import (
	"context"
	"time"
)

// LifecycleEventType enumerates the events the engine emits.
type LifecycleEventType string

const (
	EventAccountApproved   LifecycleEventType = "account.approved"
	EventAccountDenied     LifecycleEventType = "account.denied"
	EventAccountSuspended  LifecycleEventType = "account.suspended"
	EventAccountReinstated LifecycleEventType = "account.reinstated"
	EventAccountLocked     LifecycleEventType = "account.locked"
	EventOTPIssued         LifecycleEventType = "account.otp.issued"
	EventLoginSuccess      LifecycleEventType = "auth.login.success"
	EventLoginFailure      LifecycleEventType = "auth.login.failure"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// LifecycleEvent captures audit-friendly information about a transition.
// Destination and Template address the notification sink; delivery is
// advisory and never reverses the state change that produced the event.
type LifecycleEvent struct {
	EventType   LifecycleEventType
	Actor       ActorRef
	UserID      string
	FromStatus  ApprovalStatus
	ToStatus    ApprovalStatus
	Reason      string
	Destination string
	Template    string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// LifecycleSink consumes lifecycle events for notifications and auditing.
type LifecycleSink interface {
	Record(ctx context.Context, event LifecycleEvent) error
}

// LifecycleSinkFunc adapts a function to the LifecycleSink interface.
type LifecycleSinkFunc func(ctx context.Context, event LifecycleEvent) error

// Record implements LifecycleSink.
func (f LifecycleSinkFunc) Record(ctx context.Context, event LifecycleEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopLifecycleSink struct{}

func (noopLifecycleSink) Record(context.Context, LifecycleEvent) error {
	return nil
}

func normalizeLifecycleSink(s LifecycleSink) LifecycleSink {
	if s == nil {
		return noopLifecycleSink{}
	}
	return s
}

// templateForEvent selects the notification template for an event type.
func templateForEvent(t LifecycleEventType) string {
	switch t {
	case EventAccountApproved:
		return "account_approved"
	case EventAccountDenied:
		return "account_denied"
	case EventAccountSuspended:
		return "account_suspended"
	case EventAccountReinstated:
		return "account_reinstated"
	case EventAccountLocked:
		return "account_locked"
	case EventOTPIssued:
		return "verification_code"
	default:
		return ""
	}
}
