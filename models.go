package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ApprovalStatus is the lifecycle state of a privileged account profile.
type ApprovalStatus string

const (
	// ApprovalPending is the initial state for privileged registrations.
	ApprovalPending ApprovalStatus = "pending"
	// ApprovalApproved means the account passed review and may log in.
	ApprovalApproved ApprovalStatus = "approved"
	// ApprovalDenied is terminal; only reachable from pending.
	ApprovalDenied ApprovalStatus = "denied"
	// ApprovalSuspended means a previously approved account is parked.
	ApprovalSuspended ApprovalStatus = "suspended"
)

// ProfileVariant is the discriminant of the AccountProfile tagged union.
// Exactly one profile variant exists per user; violations surface as
// ErrDuplicateProfile rather than being papered over.
type ProfileVariant string

const (
	// VariantAdmin is back-office staff with tenant-wide access.
	VariantAdmin ProfileVariant = "admin"
	// VariantSiteManager runs individual construction sites.
	VariantSiteManager ProfileVariant = "site_manager"
	// VariantSuperAdmin is platform operations staff.
	VariantSuperAdmin ProfileVariant = "superadmin"
	// VariantClient is a customer account. Clients have no approval gate;
	// they are usable as soon as the email is verified.
	VariantClient ProfileVariant = "client"
)

// IsValid checks the variant is one of the predefined discriminants
func (v ProfileVariant) IsValid() bool {
	switch v {
	case VariantAdmin, VariantSiteManager, VariantSuperAdmin, VariantClient:
		return true
	default:
		return false
	}
}

// Privileged reports whether the variant goes through the approval pipeline.
func (v ProfileVariant) Privileged() bool {
	switch v {
	case VariantAdmin, VariantSiteManager, VariantSuperAdmin:
		return true
	default:
		return false
	}
}

// RoleTag is the staff classification recorded on privileged profiles.
type RoleTag = string

const (
	RoleTagAdmin   RoleTag = "admin"
	RoleTagManager RoleTag = "manager"
	RoleTagStaff   RoleTag = "staff"
)

// AccountProfile is the per-user authorization record. The external identity
// store owns the user row itself; the profile carries everything the engine
// mutates: approval lifecycle, lockout counters and the employee id.
type AccountProfile struct {
	bun.BaseModel `bun:"table:account_profiles,alias:prof"`

	ID                  uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID              uuid.UUID      `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	Variant             ProfileVariant `bun:"variant_tag,notnull" json:"variant_tag,omitempty"`
	ApprovalStatus      ApprovalStatus `bun:"approval_status,notnull" json:"approval_status,omitempty"`
	RoleTag             RoleTag        `bun:"role_tag" json:"role_tag,omitempty"`
	EmployeeID          *string        `bun:"employee_id,unique,nullzero" json:"employee_id,omitempty"`
	EmailVerified       bool           `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	FailedLoginAttempts int            `bun:"failed_login_attempts" json:"failed_login_attempts,omitempty"`
	AccountLockedUntil  *time.Time     `bun:"account_locked_until,nullzero" json:"account_locked_until,omitempty"`
	ApprovedByID        *uuid.UUID     `bun:"approved_by,nullzero,type:uuid" json:"approved_by,omitempty"`
	ApprovedAt          *time.Time     `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	SuspendedAt         *time.Time     `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	Metadata            map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt           *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt           *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults the approval status: privileged variants start
// pending, clients have no approval gate and read as approved.
func (p *AccountProfile) EnsureStatus() {
	if p.ApprovalStatus != "" {
		return
	}
	if p.Variant.Privileged() {
		p.ApprovalStatus = ApprovalPending
		return
	}
	p.ApprovalStatus = ApprovalApproved
}

// IsApproved reports whether the profile passed review.
func (p *AccountProfile) IsApproved() bool {
	p.EnsureStatus()
	return p.ApprovalStatus == ApprovalApproved
}

// IsPending reports whether the profile is awaiting review.
func (p *AccountProfile) IsPending() bool {
	p.EnsureStatus()
	return p.ApprovalStatus == ApprovalPending
}

// IsSuspended reports whether the profile is parked.
func (p *AccountProfile) IsSuspended() bool {
	p.EnsureStatus()
	return p.ApprovalStatus == ApprovalSuspended
}

// IsDenied reports whether the profile was rejected at review.
func (p *AccountProfile) IsDenied() bool {
	p.EnsureStatus()
	return p.ApprovalStatus == ApprovalDenied
}

// LockedAt reports whether the lockout window is open at the given instant.
// Expired locks stay recorded in storage until the next read re-derives them
// as unlocked; there is no background sweep.
func (p *AccountProfile) LockedAt(now time.Time) bool {
	return p.AccountLockedUntil != nil && p.AccountLockedUntil.After(now)
}

// HasStaffTag reports whether the profile carries one of the role tags that
// grant elevated access once the profile is approved.
func (p *AccountProfile) HasStaffTag() bool {
	switch p.RoleTag {
	case RoleTagAdmin, RoleTagManager, RoleTagStaff:
		return true
	default:
		return false
	}
}

// AddMetadata will append information to a metadata attribute
func (p *AccountProfile) AddMetadata(key string, val any) *AccountProfile {
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	p.Metadata[key] = val
	return p
}

// OneTimePassword is the single live email-verification code for a user. A
// new code replaces the old one; there is never more than one per user.
type OneTimePassword struct {
	bun.BaseModel `bun:"table:one_time_passwords,alias:otp"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID    uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	Code      string     `bun:"code,notnull" json:"-"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ExpiresAt is the instant the code stops verifying.
func (o *OneTimePassword) ExpiresAt() time.Time {
	if o.CreatedAt == nil {
		return time.Time{}
	}
	return o.CreatedAt.Add(OTPLifetime)
}

// ExpiredAt reports whether the code is past its window at the given instant.
func (o *OneTimePassword) ExpiredAt(now time.Time) bool {
	if o.CreatedAt == nil {
		return true
	}
	return now.After(o.CreatedAt.Add(OTPLifetime))
}
