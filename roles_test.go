package accounts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	accounts "github.com/terragrade/go-accounts"
)

func TestRoleIsAtLeast(t *testing.T) {
	tests := []struct {
		role     accounts.Role
		minRole  accounts.Role
		expected bool
	}{
		{accounts.RoleSuperAdmin, accounts.RoleAdmin, true},
		{accounts.RoleSuperAdmin, accounts.RoleSuperAdmin, true},
		{accounts.RoleAdmin, accounts.RoleSuperAdmin, false},
		{accounts.RoleAdmin, accounts.RoleSiteManager, true},
		{accounts.RoleSiteManager, accounts.RolePublic, true},
		{accounts.RolePublic, accounts.RoleSiteManager, false},
		{accounts.RoleAnonymous, accounts.RoleAnonymous, true},
		{accounts.RoleAnonymous, accounts.RolePublic, false},
		{accounts.Role("bogus"), accounts.RoleAnonymous, false},
		{accounts.RolePublic, accounts.Role("bogus"), false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.role.IsAtLeast(tc.minRole),
			"%s IsAtLeast %s", tc.role, tc.minRole)
	}
}

func TestParseRole(t *testing.T) {
	role, ok := accounts.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, accounts.RoleAdmin, role)

	_, ok = accounts.ParseRole("root")
	assert.False(t, ok)
}

func TestResolveRoleAt(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	approvedAdmin := &accounts.AccountProfile{
		Variant:        accounts.VariantAdmin,
		ApprovalStatus: accounts.ApprovalApproved,
		RoleTag:        accounts.RoleTagAdmin,
	}

	lockedUntil := now.Add(30 * time.Minute)

	tests := []struct {
		name     string
		input    accounts.RoleInput
		at       time.Time
		expected accounts.Role
	}{
		{
			name:     "unauthenticated is anonymous",
			input:    accounts.RoleInput{},
			at:       now,
			expected: accounts.RoleAnonymous,
		},
		{
			name: "unauthenticated superuser is still anonymous",
			input: accounts.RoleInput{
				Superuser: true,
				Profile:   approvedAdmin,
			},
			at:       now,
			expected: accounts.RoleAnonymous,
		},
		{
			name: "superuser flag wins over profile state",
			input: accounts.RoleInput{
				Authenticated: true,
				Superuser:     true,
				Profile: &accounts.AccountProfile{
					Variant:        accounts.VariantAdmin,
					ApprovalStatus: accounts.ApprovalSuspended,
					RoleTag:        accounts.RoleTagAdmin,
				},
			},
			at:       now,
			expected: accounts.RoleSuperAdmin,
		},
		{
			name: "no profile is public",
			input: accounts.RoleInput{
				Authenticated: true,
			},
			at:       now,
			expected: accounts.RolePublic,
		},
		{
			name: "approved admin with staff tag is admin",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile:       approvedAdmin,
			},
			at:       now,
			expected: accounts.RoleAdmin,
		},
		{
			name: "superadmin variant resolves to admin tier",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile: &accounts.AccountProfile{
					Variant:        accounts.VariantSuperAdmin,
					ApprovalStatus: accounts.ApprovalApproved,
					RoleTag:        accounts.RoleTagStaff,
				},
			},
			at:       now,
			expected: accounts.RoleAdmin,
		},
		{
			name: "approved site manager resolves to site manager",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile: &accounts.AccountProfile{
					Variant:        accounts.VariantSiteManager,
					ApprovalStatus: accounts.ApprovalApproved,
					RoleTag:        accounts.RoleTagManager,
				},
			},
			at:       now,
			expected: accounts.RoleSiteManager,
		},
		{
			name: "pending profile degrades to public",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile: &accounts.AccountProfile{
					Variant:        accounts.VariantAdmin,
					ApprovalStatus: accounts.ApprovalPending,
					RoleTag:        accounts.RoleTagAdmin,
				},
			},
			at:       now,
			expected: accounts.RolePublic,
		},
		{
			name: "suspended profile degrades to public",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile: &accounts.AccountProfile{
					Variant:        accounts.VariantSiteManager,
					ApprovalStatus: accounts.ApprovalSuspended,
					RoleTag:        accounts.RoleTagManager,
				},
			},
			at:       now,
			expected: accounts.RolePublic,
		},
		{
			name: "locked profile degrades to public",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile: &accounts.AccountProfile{
					Variant:            accounts.VariantAdmin,
					ApprovalStatus:     accounts.ApprovalApproved,
					RoleTag:            accounts.RoleTagAdmin,
					AccountLockedUntil: &lockedUntil,
				},
			},
			at:       now,
			expected: accounts.RolePublic,
		},
		{
			name: "expired lock elevates again",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile: &accounts.AccountProfile{
					Variant:            accounts.VariantAdmin,
					ApprovalStatus:     accounts.ApprovalApproved,
					RoleTag:            accounts.RoleTagAdmin,
					AccountLockedUntil: &lockedUntil,
				},
			},
			at:       later,
			expected: accounts.RoleAdmin,
		},
		{
			name: "missing staff tag degrades to public",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile: &accounts.AccountProfile{
					Variant:        accounts.VariantAdmin,
					ApprovalStatus: accounts.ApprovalApproved,
					RoleTag:        "contractor",
				},
			},
			at:       now,
			expected: accounts.RolePublic,
		},
		{
			name: "client variant stays public",
			input: accounts.RoleInput{
				Authenticated: true,
				Profile: &accounts.AccountProfile{
					Variant:        accounts.VariantClient,
					ApprovalStatus: accounts.ApprovalApproved,
					RoleTag:        accounts.RoleTagStaff,
				},
			},
			at:       now,
			expected: accounts.RolePublic,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, accounts.ResolveRoleAt(tc.input, tc.at))
		})
	}
}

func TestResolveRoleAtIsDeterministic(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	input := accounts.RoleInput{
		Authenticated: true,
		Profile: &accounts.AccountProfile{
			Variant:        accounts.VariantSiteManager,
			ApprovalStatus: accounts.ApprovalApproved,
			RoleTag:        accounts.RoleTagManager,
		},
	}

	first := accounts.ResolveRoleAt(input, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, accounts.ResolveRoleAt(input, now))
	}
}
