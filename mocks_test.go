package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	accounts "github.com/terragrade/go-accounts"
	"github.com/uptrace/bun"
)

// TestIdentity is a simple implementation of the Identity interface for testing
type TestIdentity struct {
	id        string
	username  string
	email     string
	active    bool
	superuser bool
}

func (t TestIdentity) ID() string       { return t.id }
func (t TestIdentity) Username() string { return t.username }
func (t TestIdentity) Email() string    { return t.email }
func (t TestIdentity) Active() bool     { return t.active }
func (t TestIdentity) Superuser() bool  { return t.superuser }

// MockConfig implements accounts.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetSigningMethod() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetContextKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetTokenExpiration() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetExtendedTokenDuration() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAudience() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockConfig) GetRejectedRouteKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetRejectedRouteDefault() string {
	args := m.Called()
	return args.String(0)
}

// MockAuthenticator implements accounts.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, identifier, password string) (string, error) {
	args := m.Called(ctx, identifier, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthenticator) SessionFromToken(token string) (accounts.Session, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(accounts.Session), args.Error(1)
}

func (m *MockAuthenticator) IdentityFromSession(ctx context.Context, session accounts.Session) (accounts.Identity, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(accounts.Identity), args.Error(1)
}

// MockLoginPayload implements accounts.LoginPayload
type MockLoginPayload struct {
	Identifier      string
	Password        string
	ExtendedSession bool
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

func (m MockLoginPayload) GetExtendedSession() bool {
	return m.ExtendedSession
}

// MockIdentityStore implements accounts.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) Authenticate(ctx context.Context, identifier, password string) (accounts.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(accounts.Identity), args.Error(1)
}

func (m *MockIdentityStore) FindIdentityByIdentifier(ctx context.Context, identifier string) (accounts.Identity, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(accounts.Identity), args.Error(1)
}

func (m *MockIdentityStore) GetUser(ctx context.Context, id string) (accounts.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(accounts.Identity), args.Error(1)
}

// MockProfiles implements accounts.Profiles. The embedded interface covers
// the generic repository surface; only the methods the services actually
// call are mocked, anything else panics loudly.
type MockProfiles struct {
	mock.Mock
	accounts.Profiles
}

func (m *MockProfiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*accounts.AccountProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.AccountProfile), args.Error(1)
}

func (m *MockProfiles) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*accounts.AccountProfile, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.AccountProfile), args.Error(1)
}

func (m *MockProfiles) Register(ctx context.Context, profile *accounts.AccountProfile) (*accounts.AccountProfile, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.AccountProfile), args.Error(1)
}

func (m *MockProfiles) RegisterTx(ctx context.Context, tx bun.IDB, profile *accounts.AccountProfile) (*accounts.AccountProfile, error) {
	args := m.Called(ctx, tx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.AccountProfile), args.Error(1)
}

func (m *MockProfiles) UpdateApproval(ctx context.Context, id uuid.UUID, status accounts.ApprovalStatus, opts ...accounts.ApprovalUpdateOption) (*accounts.AccountProfile, error) {
	args := m.Called(ctx, id, status, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.AccountProfile), args.Error(1)
}

func (m *MockProfiles) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockProfiles) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProfiles) SetLockedUntil(ctx context.Context, id uuid.UUID, until *time.Time) error {
	args := m.Called(ctx, id, until)
	return args.Error(0)
}

func (m *MockProfiles) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockProfiles) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	args := m.Called(ctx, tx, userID)
	return args.Error(0)
}

func (m *MockProfiles) MaxEmployeeSequence(ctx context.Context, prefix string, year int) (int, error) {
	args := m.Called(ctx, prefix, year)
	return args.Int(0), args.Error(1)
}

func (m *MockProfiles) MaxEmployeeSequenceTx(ctx context.Context, tx bun.IDB, prefix string, year int) (int, error) {
	args := m.Called(ctx, tx, prefix, year)
	return args.Int(0), args.Error(1)
}

// MockOneTimePasswords implements accounts.OneTimePasswords
type MockOneTimePasswords struct {
	mock.Mock
	accounts.OneTimePasswords
}

func (m *MockOneTimePasswords) GetByUserID(ctx context.Context, userID uuid.UUID) (*accounts.OneTimePassword, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.OneTimePassword), args.Error(1)
}

func (m *MockOneTimePasswords) Replace(ctx context.Context, otp *accounts.OneTimePassword) (*accounts.OneTimePassword, error) {
	args := m.Called(ctx, otp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.OneTimePassword), args.Error(1)
}

func (m *MockOneTimePasswords) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// stubRepositoryManager satisfies RepositoryManager without a database.
// RunInTx runs the closure against a zero transaction handle; the mocked
// repositories never touch it.
type stubRepositoryManager struct {
	profiles accounts.Profiles
	otps     accounts.OneTimePasswords
}

func (s *stubRepositoryManager) Validate() error { return nil }

func (s *stubRepositoryManager) MustValidate() {}

func (s *stubRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (s *stubRepositoryManager) Profiles() accounts.Profiles { return s.profiles }

func (s *stubRepositoryManager) OneTimePasswords() accounts.OneTimePasswords { return s.otps }

// recordingSink captures lifecycle events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []accounts.LifecycleEvent
	fail   error
}

func (s *recordingSink) Record(ctx context.Context, event accounts.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []accounts.LifecycleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.LifecycleEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) Last() (accounts.LifecycleEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return accounts.LifecycleEvent{}, false
	}
	return s.events[len(s.events)-1], true
}

func newMockConfig() *MockConfig {
	mockConfig := new(MockConfig)
	mockConfig.On("GetSigningKey").Return("test-signing-key")
	mockConfig.On("GetTokenExpiration").Return(24)
	mockConfig.On("GetIssuer").Return("test-issuer")
	mockConfig.On("GetAudience").Return([]string{"test:audience"})
	return mockConfig
}
