package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/session"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockAccountStore implements AccountStore for testing
type MockAccountStore struct {
	FindByFieldFunc        func(ctx context.Context, field, value string) (*models.Account, error)
	FindByIDFunc           func(ctx context.Context, id string) (*models.Account, error)
	UpdatePasswordHashFunc func(ctx context.Context, id, hash string) error
	RecordLoginFunc        func(ctx context.Context, id string, at time.Time, ip string) error

	mu          sync.Mutex
	lookups     int
	saves       int
	savedHashes []string
	logins      int
}

func (m *MockAccountStore) FindByField(ctx context.Context, field, value string) (*models.Account, error) {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()
	if m.FindByFieldFunc != nil {
		return m.FindByFieldFunc(ctx, field, value)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	m.saves++
	m.savedHashes = append(m.savedHashes, hash)
	m.mu.Unlock()
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, id, hash)
	}
	return nil
}

func (m *MockAccountStore) RecordLogin(ctx context.Context, id string, at time.Time, ip string) error {
	m.mu.Lock()
	m.logins++
	m.mu.Unlock()
	if m.RecordLoginFunc != nil {
		return m.RecordLoginFunc(ctx, id, at, ip)
	}
	return nil
}

// MockRememberTokenStore implements RememberTokenStore for testing
type MockRememberTokenStore struct {
	FindBySelectorFunc func(ctx context.Context, selector string) (*models.RememberToken, error)
	CreateFunc         func(ctx context.Context, token *models.RememberToken) error
	ReplaceFunc        func(ctx context.Context, accountID, oldSelector string, next *models.RememberToken) error
}

func (m *MockRememberTokenStore) FindBySelector(ctx context.Context, selector string) (*models.RememberToken, error) {
	if m.FindBySelectorFunc != nil {
		return m.FindBySelectorFunc(ctx, selector)
	}
	return nil, models.ErrNotFound
}

func (m *MockRememberTokenStore) Create(ctx context.Context, token *models.RememberToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return nil
}

func (m *MockRememberTokenStore) Replace(ctx context.Context, accountID, oldSelector string, next *models.RememberToken) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, accountID, oldSelector, next)
	}
	return models.ErrNotFound
}

// tokenTable backs a MockRememberTokenStore with a map keyed by selector
type tokenTable struct {
	mu     sync.Mutex
	tokens map[string]models.RememberToken
}

func newTokenTable() *tokenTable {
	return &tokenTable{tokens: make(map[string]models.RememberToken)}
}

func (tt *tokenTable) store() *MockRememberTokenStore {
	return &MockRememberTokenStore{
		FindBySelectorFunc: func(ctx context.Context, selector string) (*models.RememberToken, error) {
			tt.mu.Lock()
			defer tt.mu.Unlock()
			token, ok := tt.tokens[selector]
			if !ok {
				return nil, models.ErrNotFound
			}
			return &token, nil
		},
		CreateFunc: func(ctx context.Context, token *models.RememberToken) error {
			tt.mu.Lock()
			defer tt.mu.Unlock()
			tt.tokens[token.Selector] = *token
			return nil
		},
		ReplaceFunc: func(ctx context.Context, accountID, oldSelector string, next *models.RememberToken) error {
			tt.mu.Lock()
			defer tt.mu.Unlock()
			old, ok := tt.tokens[oldSelector]
			if !ok || old.UserID != accountID {
				return models.ErrNotFound
			}
			delete(tt.tokens, oldSelector)
			tt.tokens[next.Selector] = *next
			return nil
		},
	}
}

func (tt *tokenTable) len() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return len(tt.tokens)
}

// MockAttemptRecorder implements AttemptRecorder for testing
type MockAttemptRecorder struct {
	RecordAttemptFunc func(ctx context.Context, attempt *models.LoginAttempt) error

	mu       sync.Mutex
	attempts []*models.LoginAttempt
}

func (m *MockAttemptRecorder) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	m.mu.Lock()
	m.attempts = append(m.attempts, attempt)
	m.mu.Unlock()
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

// MockAuthorizer implements Authorizer for testing
type MockAuthorizer struct {
	InRoleFunc func(ctx context.Context, role, accountID string) (bool, error)
}

func (m *MockAuthorizer) InRole(ctx context.Context, role, accountID string) (bool, error) {
	if m.InRoleFunc != nil {
		return m.InRoleFunc(ctx, role, accountID)
	}
	return false, nil
}

func rolesOf(roles map[string][]string) *MockAuthorizer {
	return &MockAuthorizer{
		InRoleFunc: func(ctx context.Context, role, accountID string) (bool, error) {
			for _, r := range roles[accountID] {
				if r == role {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy(t *testing.T) *pkgauth.PasswordPolicy {
	t.Helper()
	policy, err := pkgauth.NewPasswordPolicy(pkgauth.AlgorithmBcrypt, bcrypt.MinCost, pkgauth.Argon2Params{})
	require.NoError(t, err)
	return policy
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := testPolicy(t).Hash(password)
	require.NoError(t, err)
	return hash
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New()
	require.NoError(t, err)
	return s
}

// accountsByID serves FindByID and FindByField from a fixed set of accounts
func accountsByID(accounts ...*models.Account) *MockAccountStore {
	return &MockAccountStore{
		FindByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			for _, a := range accounts {
				if a.ID == id {
					copied := *a
					return &copied, nil
				}
			}
			return nil, models.ErrNotFound
		},
		FindByFieldFunc: func(ctx context.Context, field, value string) (*models.Account, error) {
			for _, a := range accounts {
				if (field == "email" && a.Email == value) || (field == "username" && a.Username != nil && *a.Username == value) {
					copied := *a
					return &copied, nil
				}
			}
			return nil, models.ErrNotFound
		},
	}
}

type fixture struct {
	accounts *MockAccountStore
	tokens   *tokenTable
	attempts *MockAttemptRecorder
	sessions *LoginSessionManager
	auth     *Authenticator
}

func newFixture(t *testing.T, cfg Config, accounts *MockAccountStore) *fixture {
	t.Helper()
	logger := testLogger()
	tokens := newTokenTable()
	attempts := &MockAttemptRecorder{}
	tokenStore := tokens.store()

	sessions := NewLoginSessionManager(accounts, tokenStore, 24*time.Hour, logger)
	verifier := NewVerifier(accounts, testPolicy(t), []string{"email", "username"}, logger)
	authenticator := NewAuthenticator(verifier, accounts, tokenStore, attempts, sessions, nil, cfg, logger)

	return &fixture{
		accounts: accounts,
		tokens:   tokens,
		attempts: attempts,
		sessions: sessions,
		auth:     authenticator,
	}
}

func strPtr(s string) *string {
	return &s
}
