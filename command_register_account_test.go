package accounts_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	accounts "github.com/terragrade/go-accounts"
)

func registrationFixtures() (*MockProfiles, *MockOneTimePasswords, *accounts.RegisterAccountHandler) {
	mockProfiles := new(MockProfiles)
	mockOTPs := new(MockOneTimePasswords)
	repo := &stubRepositoryManager{profiles: mockProfiles, otps: mockOTPs}

	otpService := accounts.NewOneTimePasswordService(mockOTPs)
	handler := accounts.NewRegisterAccountHandler(repo, otpService).
		WithClock(func() time.Time { return time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC) })

	return mockProfiles, mockOTPs, handler
}

func TestRegisterAccountPrivileged(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockProfiles, mockOTPs, handler := registrationFixtures()

	mockProfiles.On("MaxEmployeeSequenceTx", mock.Anything, mock.Anything, "TG", 2025).
		Return(42, nil).Once()
	mockProfiles.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			profile := args.Get(2).(*accounts.AccountProfile)
			assert.Equal(t, userID, profile.UserID)
			assert.Equal(t, accounts.ApprovalPending, profile.ApprovalStatus)
			require.NotNil(t, profile.EmployeeID)
			assert.Equal(t, "TG-2025-0043", *profile.EmployeeID)
		}).
		Return(&accounts.AccountProfile{
			ID:             uuid.New(),
			UserID:         userID,
			Variant:        accounts.VariantSiteManager,
			ApprovalStatus: accounts.ApprovalPending,
		}, nil).Once()
	mockOTPs.On("Replace", mock.Anything, mock.Anything).
		Return(&accounts.OneTimePassword{UserID: userID, Code: "123456"}, nil).Once()

	var acceptedProfile *accounts.AccountProfile
	var acceptedCode *accounts.OneTimePassword
	handler.OnAccepted = func(profile *accounts.AccountProfile, otp *accounts.OneTimePassword) {
		acceptedProfile = profile
		acceptedCode = otp
	}

	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		UserID:  userID,
		Email:   "pm@example.com",
		Variant: accounts.VariantSiteManager,
		RoleTag: accounts.RoleTagManager,
	})

	require.NoError(t, err)
	require.NotNil(t, acceptedProfile)
	assert.Equal(t, accounts.ApprovalPending, acceptedProfile.ApprovalStatus)
	require.NotNil(t, acceptedCode)

	mockProfiles.AssertExpectations(t)
	mockOTPs.AssertExpectations(t)
}

func TestRegisterAccountClient(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockProfiles, mockOTPs, handler := registrationFixtures()

	mockProfiles.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			profile := args.Get(2).(*accounts.AccountProfile)
			assert.Equal(t, accounts.ApprovalApproved, profile.ApprovalStatus,
				"clients have no approval gate")
			assert.Nil(t, profile.EmployeeID, "clients get no employee id")
		}).
		Return(&accounts.AccountProfile{
			ID:             uuid.New(),
			UserID:         userID,
			Variant:        accounts.VariantClient,
			ApprovalStatus: accounts.ApprovalApproved,
		}, nil).Once()
	mockOTPs.On("Replace", mock.Anything, mock.Anything).
		Return(&accounts.OneTimePassword{UserID: userID, Code: "654321"}, nil).Once()

	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		UserID:  userID,
		Email:   "client@example.com",
		Variant: accounts.VariantClient,
	})

	require.NoError(t, err)
	mockProfiles.AssertNotCalled(t, "MaxEmployeeSequenceTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockProfiles.AssertExpectations(t)
}

func TestRegisterAccountValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		message accounts.RegisterAccountMessage
	}{
		{
			name: "missing email",
			message: accounts.RegisterAccountMessage{
				UserID:  uuid.New(),
				Variant: accounts.VariantClient,
			},
		},
		{
			name: "malformed email",
			message: accounts.RegisterAccountMessage{
				UserID:  uuid.New(),
				Email:   "not-an-email",
				Variant: accounts.VariantClient,
			},
		},
		{
			name: "unknown variant",
			message: accounts.RegisterAccountMessage{
				UserID:  uuid.New(),
				Email:   "a@example.com",
				Variant: accounts.ProfileVariant("intern"),
			},
		},
		{
			name: "invalid phone number",
			message: accounts.RegisterAccountMessage{
				UserID:  uuid.New(),
				Email:   "a@example.com",
				Variant: accounts.VariantClient,
				Phone:   "not-a-phone",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockProfiles, _, handler := registrationFixtures()

			err := handler.Execute(ctx, tc.message)

			require.Error(t, err)
			mockProfiles.AssertNotCalled(t, "RegisterTx", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRegisterAccountAcceptsValidPhone(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockProfiles, mockOTPs, handler := registrationFixtures()

	mockProfiles.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&accounts.AccountProfile{ID: uuid.New(), UserID: userID, Variant: accounts.VariantClient}, nil).Once()
	mockOTPs.On("Replace", mock.Anything, mock.Anything).
		Return(&accounts.OneTimePassword{UserID: userID}, nil).Once()

	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		UserID:  userID,
		Email:   "client@example.com",
		Variant: accounts.VariantClient,
		Phone:   "+14155552671",
	})

	assert.NoError(t, err)
}

func TestRegisterAccountRequiresUserID(t *testing.T) {
	ctx := context.Background()
	mockProfiles, _, handler := registrationFixtures()

	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		Email:   "a@example.com",
		Variant: accounts.VariantClient,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "user id")
	mockProfiles.AssertNotCalled(t, "RegisterTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterAccountHashidDerivesUserID(t *testing.T) {
	ctx := context.Background()

	mockProfiles, mockOTPs, handler := registrationFixtures()

	var derived uuid.UUID
	mockProfiles.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			profile := args.Get(2).(*accounts.AccountProfile)
			derived = profile.UserID
		}).
		Return(&accounts.AccountProfile{ID: uuid.New(), Variant: accounts.VariantClient}, nil).Once()
	mockOTPs.On("Replace", mock.Anything, mock.Anything).
		Return(&accounts.OneTimePassword{}, nil).Once()

	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		Email:     "client@example.com",
		Variant:   accounts.VariantClient,
		UseHashid: true,
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, derived, "hashid derives a stable user id from the email")
}

func TestRegisterAccountDuplicateProfile(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockProfiles, _, handler := registrationFixtures()

	mockProfiles.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, accounts.ErrDuplicateProfile).Once()

	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		UserID:  userID,
		Email:   "client@example.com",
		Variant: accounts.VariantClient,
	})

	require.Error(t, err)
	assert.True(t, goerrors.Is(err, accounts.ErrDuplicateProfile))
}

func TestRegisterAccountCancelledContext(t *testing.T) {
	_, _, handler := registrationFixtures()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		UserID:  uuid.New(),
		Email:   "client@example.com",
		Variant: accounts.VariantClient,
	})

	assert.Error(t, err)
}
