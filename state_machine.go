package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor   ActorRef
	Profile *AccountProfile
	From    ApprovalStatus
	To      ApprovalStatus
	Meta    TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition call.
type TransitionOption func(*transitionOptions)

// TransitionResult reports what a lifecycle operation did. NoOp is set when
// the profile was already in the target state; no event is emitted then.
type TransitionResult struct {
	Profile *AccountProfile
	NoOp    bool
	Event   *LifecycleEvent
}

// LifecycleManager defines the approval state machine over account profiles.
//
// Legal transitions: pending to approved, pending to denied, approved to
// suspended, suspended to approved. Denying an approved account directly is
// illegal; it must be suspended first. Every operation either performs its
// transition and emits exactly one event, reports a no-op, or fails with
// ErrInvalidTransition without touching state.
type LifecycleManager interface {
	Approve(ctx context.Context, actor ActorRef, profile *AccountProfile, opts ...TransitionOption) (*TransitionResult, error)
	Deny(ctx context.Context, actor ActorRef, profile *AccountProfile, reason string, opts ...TransitionOption) (*TransitionResult, error)
	Suspend(ctx context.Context, actor ActorRef, profile *AccountProfile, reason string, opts ...TransitionOption) (*TransitionResult, error)
	Unsuspend(ctx context.Context, actor ActorRef, profile *AccountProfile, opts ...TransitionOption) (*TransitionResult, error)
	CurrentStatus(profile *AccountProfile) ApprovalStatus
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*profileStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *profileStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineSink sets the LifecycleSink used to publish events.
func WithStateMachineSink(sink LifecycleSink) StateMachineOption {
	return func(sm *profileStateMachine) {
		sm.sink = normalizeLifecycleSink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *profileStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithNotifyAddress sets the destination address carried on the emitted
// event for the notification sink.
func WithNotifyAddress(address string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.destination = address
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewLifecycleManager returns the default implementation backed by the
// provided profile repository.
func NewLifecycleManager(profiles Profiles, opts ...StateMachineOption) LifecycleManager {
	sm := &profileStateMachine{
		profiles: profiles,
		now:      time.Now,
		sink:     noopLifecycleSink{},
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type profileStateMachine struct {
	profiles Profiles
	now      func() time.Time
	sink     LifecycleSink
	logger   Logger
}

type transitionOptions struct {
	metadata    TransitionMetadata
	destination string
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *profileStateMachine) Approve(ctx context.Context, actor ActorRef, profile *AccountProfile, opts ...TransitionOption) (*TransitionResult, error) {
	now := sm.now()
	approverID, hasApprover := actorUUID(actor)

	updateOpts := []ApprovalUpdateOption{WithApprovedAt(&now)}
	if hasApprover {
		updateOpts = append(updateOpts, WithApprovedBy(&approverID))
	}

	return sm.transition(ctx, actor, profile, ApprovalPending, ApprovalApproved, EventAccountApproved, updateOpts, opts)
}

func (sm *profileStateMachine) Deny(ctx context.Context, actor ActorRef, profile *AccountProfile, reason string, opts ...TransitionOption) (*TransitionResult, error) {
	opts = append(opts, WithTransitionReason(reason))
	return sm.transition(ctx, actor, profile, ApprovalPending, ApprovalDenied, EventAccountDenied, nil, opts)
}

func (sm *profileStateMachine) Suspend(ctx context.Context, actor ActorRef, profile *AccountProfile, reason string, opts ...TransitionOption) (*TransitionResult, error) {
	now := sm.now()
	opts = append(opts, WithTransitionReason(reason))
	return sm.transition(ctx, actor, profile, ApprovalApproved, ApprovalSuspended, EventAccountSuspended,
		[]ApprovalUpdateOption{WithSuspendedAt(&now)}, opts)
}

func (sm *profileStateMachine) Unsuspend(ctx context.Context, actor ActorRef, profile *AccountProfile, opts ...TransitionOption) (*TransitionResult, error) {
	// Reinstating also forgives the lockout state accumulated while parked.
	updateOpts := []ApprovalUpdateOption{
		WithSuspendedAt(nil),
		WithLockoutCleared(),
	}
	return sm.transition(ctx, actor, profile, ApprovalSuspended, ApprovalApproved, EventAccountReinstated, updateOpts, opts)
}

func (sm *profileStateMachine) CurrentStatus(profile *AccountProfile) ApprovalStatus {
	if profile == nil {
		return ""
	}
	profile.EnsureStatus()
	return profile.ApprovalStatus
}

// transition is shared by every lifecycle operation. Legality is keyed on
// the operation's source status, not just the target: unsuspend and approve
// both land on approved but only one of them may start from pending.
func (sm *profileStateMachine) transition(
	ctx context.Context,
	actor ActorRef,
	profile *AccountProfile,
	source ApprovalStatus,
	target ApprovalStatus,
	eventType LifecycleEventType,
	updateOpts []ApprovalUpdateOption,
	opts []TransitionOption,
) (*TransitionResult, error) {
	if profile == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "profile is nil",
		})
	}

	profile.EnsureStatus()
	from := profile.ApprovalStatus

	if from == target {
		return &TransitionResult{Profile: profile, NoOp: true}, nil
	}

	if from != source {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	options := sm.buildTransitionOptions(opts...)

	ctxData := TransitionContext{
		Actor:   actor,
		Profile: profile,
		From:    from,
		To:      target,
		Meta:    options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData); err != nil {
		return nil, err
	}

	updated, err := sm.profiles.UpdateApproval(ctx, profile.ID, target, updateOpts...)
	if err != nil {
		return nil, err
	}

	sm.applyUpdates(profile, updated, target)

	if err := sm.runHooks(ctx, options.afterHooks, ctxData); err != nil {
		return nil, err
	}

	event := LifecycleEvent{
		EventType:   eventType,
		Actor:       actor,
		UserID:      profile.UserID.String(),
		FromStatus:  from,
		ToStatus:    target,
		Reason:      options.metadata.Reason,
		Destination: options.destination,
		Template:    templateForEvent(eventType),
		Metadata:    ctxData.Meta.Metadata,
		OccurredAt:  sm.now(),
	}

	sm.recordEvent(ctx, event)

	return &TransitionResult{Profile: profile, Event: &event}, nil
}

func (sm *profileStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *profileStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

func (sm *profileStateMachine) applyUpdates(profile, updated *AccountProfile, target ApprovalStatus) {
	if updated == nil {
		profile.ApprovalStatus = target
		return
	}

	if updated.ApprovalStatus != "" {
		profile.ApprovalStatus = updated.ApprovalStatus
	} else {
		profile.ApprovalStatus = target
	}
	profile.ApprovedByID = updated.ApprovedByID
	profile.ApprovedAt = updated.ApprovedAt
	profile.SuspendedAt = updated.SuspendedAt
	profile.FailedLoginAttempts = updated.FailedLoginAttempts
	profile.AccountLockedUntil = updated.AccountLockedUntil
}

// recordEvent hands the event to the sink. Delivery is advisory: a sink
// failure is logged and discarded, the transition has already committed.
func (sm *profileStateMachine) recordEvent(ctx context.Context, event LifecycleEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	sink := normalizeLifecycleSink(sm.sink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("lifecycle sink record error: %v", err)
	}
}

func actorUUID(actor ActorRef) (uuid.UUID, bool) {
	id, err := uuid.Parse(actor.ID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
