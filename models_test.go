package accounts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	accounts "github.com/terragrade/go-accounts"
)

func TestProfileVariant(t *testing.T) {
	assert.True(t, accounts.VariantAdmin.IsValid())
	assert.True(t, accounts.VariantClient.IsValid())
	assert.False(t, accounts.ProfileVariant("intern").IsValid())

	assert.True(t, accounts.VariantAdmin.Privileged())
	assert.True(t, accounts.VariantSiteManager.Privileged())
	assert.True(t, accounts.VariantSuperAdmin.Privileged())
	assert.False(t, accounts.VariantClient.Privileged())
}

func TestEnsureStatus(t *testing.T) {
	privileged := &accounts.AccountProfile{Variant: accounts.VariantSiteManager}
	privileged.EnsureStatus()
	assert.Equal(t, accounts.ApprovalPending, privileged.ApprovalStatus)

	client := &accounts.AccountProfile{Variant: accounts.VariantClient}
	client.EnsureStatus()
	assert.Equal(t, accounts.ApprovalApproved, client.ApprovalStatus)

	// An explicit status is never overwritten.
	denied := &accounts.AccountProfile{
		Variant:        accounts.VariantAdmin,
		ApprovalStatus: accounts.ApprovalDenied,
	}
	denied.EnsureStatus()
	assert.Equal(t, accounts.ApprovalDenied, denied.ApprovalStatus)
}

func TestProfileStatusPredicates(t *testing.T) {
	profile := &accounts.AccountProfile{Variant: accounts.VariantAdmin}

	assert.True(t, profile.IsPending())
	assert.False(t, profile.IsApproved())

	profile.ApprovalStatus = accounts.ApprovalApproved
	assert.True(t, profile.IsApproved())

	profile.ApprovalStatus = accounts.ApprovalSuspended
	assert.True(t, profile.IsSuspended())

	profile.ApprovalStatus = accounts.ApprovalDenied
	assert.True(t, profile.IsDenied())
}

func TestProfileLockedAt(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	until := now.Add(15 * time.Minute)

	profile := &accounts.AccountProfile{}
	assert.False(t, profile.LockedAt(now), "no lock recorded")

	profile.AccountLockedUntil = &until
	assert.True(t, profile.LockedAt(now))
	assert.True(t, profile.LockedAt(until.Add(-time.Second)))
	assert.False(t, profile.LockedAt(until), "boundary instant reads unlocked")
	assert.False(t, profile.LockedAt(until.Add(time.Second)))
}

func TestProfileHasStaffTag(t *testing.T) {
	tests := []struct {
		tag      accounts.RoleTag
		expected bool
	}{
		{accounts.RoleTagAdmin, true},
		{accounts.RoleTagManager, true},
		{accounts.RoleTagStaff, true},
		{"", false},
		{"contractor", false},
	}

	for _, tc := range tests {
		profile := &accounts.AccountProfile{RoleTag: tc.tag}
		assert.Equal(t, tc.expected, profile.HasStaffTag(), "tag %q", tc.tag)
	}
}

func TestProfileAddMetadata(t *testing.T) {
	profile := &accounts.AccountProfile{}
	profile.AddMetadata("source", "import").AddMetadata("batch", 7)

	assert.Equal(t, "import", profile.Metadata["source"])
	assert.Equal(t, 7, profile.Metadata["batch"])
}

func TestOneTimePasswordExpiry(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

	otp := &accounts.OneTimePassword{}
	assert.True(t, otp.ExpiredAt(now), "no creation timestamp reads expired")
	assert.True(t, otp.ExpiresAt().IsZero())

	createdAt := now
	otp.CreatedAt = &createdAt

	assert.Equal(t, now.Add(accounts.OTPLifetime), otp.ExpiresAt())
	assert.False(t, otp.ExpiredAt(now))
	assert.False(t, otp.ExpiredAt(now.Add(accounts.OTPLifetime)), "boundary instant still verifies")
	assert.True(t, otp.ExpiredAt(now.Add(accounts.OTPLifetime+time.Second)))
}
