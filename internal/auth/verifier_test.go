package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BradenHooton/warden/internal/lang"
	"github.com/BradenHooton/warden/internal/models"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestVerifier(t *testing.T, store *MockAccountStore) *Verifier {
	t.Helper()
	return NewVerifier(store, testPolicy(t), []string{"email", "username"}, testLogger())
}

func TestVerifier_Validate_ShapeFailuresTouchNoStorage(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty", Credentials{}},
		{"password only", Credentials{"password": "secret"}},
		{"no password", Credentials{"email": "a@example.com", "username": "a"}},
		{"empty password", Credentials{"email": "a@example.com", "password": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockAccountStore{}
			v := newTestVerifier(t, store)

			result, err := v.Validate(context.Background(), tt.creds)
			require.NoError(t, err)
			assert.False(t, result.Valid())
			assert.Equal(t, 0, store.lookups)
			assert.Equal(t, 0, store.saves)
		})
	}
}

func TestVerifier_Validate_TooManyCredentials(t *testing.T) {
	store := &MockAccountStore{}
	v := newTestVerifier(t, store)

	_, err := v.Validate(context.Background(), Credentials{
		"email":    "a@example.com",
		"username": "a",
		"password": "secret",
	})
	assert.ErrorIs(t, err, ErrTooManyCredentials)
	assert.True(t, IsCallerError(err))
	assert.Equal(t, 0, store.lookups)
}

func TestVerifier_Validate_InvalidField(t *testing.T) {
	store := &MockAccountStore{}
	v := newTestVerifier(t, store)

	_, err := v.Validate(context.Background(), Credentials{"phone": "555-0100", "password": "secret"})

	var fieldErr *InvalidFieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "phone", fieldErr.Field)
	assert.Contains(t, err.Error(), "phone")
	assert.True(t, IsCallerError(err))
	assert.Equal(t, 0, store.lookups)
}

func TestVerifier_Validate_UnknownAccount(t *testing.T) {
	v := newTestVerifier(t, accountsByID())

	result, err := v.Validate(context.Background(), Credentials{"email": "nobody@example.com", "password": "secret"})
	require.NoError(t, err)
	assert.False(t, result.Valid())
	assert.Equal(t, lang.LoginBadAttempt, result.Reason)
}

func TestVerifier_Validate_Password(t *testing.T) {
	account := &models.Account{ID: "acct-1", Email: "alice@example.com", Username: strPtr("alice"), PasswordHash: hashFor(t, "SecureP@ss123")}
	v := newTestVerifier(t, accountsByID(account))

	t.Run("correct password returns the account", func(t *testing.T) {
		result, err := v.Validate(context.Background(), Credentials{"email": "alice@example.com", "password": "SecureP@ss123"})
		require.NoError(t, err)
		require.True(t, result.Valid())
		assert.Equal(t, "acct-1", result.Account.ID)
		assert.Empty(t, result.Message())
	})

	t.Run("username is an accepted identity", func(t *testing.T) {
		result, err := v.Validate(context.Background(), Credentials{"username": "alice", "password": "SecureP@ss123"})
		require.NoError(t, err)
		assert.True(t, result.Valid())
	})

	t.Run("wrong password", func(t *testing.T) {
		result, err := v.Validate(context.Background(), Credentials{"email": "alice@example.com", "password": "wrong"})
		require.NoError(t, err)
		assert.False(t, result.Valid())
		assert.Equal(t, lang.LoginInvalidPassword, result.Reason)
		assert.Equal(t, lang.Line(lang.LoginInvalidPassword), result.Message())
	})
}

func TestVerifier_Validate_UnknownHashFormatIsInvalidPassword(t *testing.T) {
	account := &models.Account{ID: "acct-1", Email: "alice@example.com", PasswordHash: "5f4dcc3b5aa765d61d8327deb882cf99"}
	v := newTestVerifier(t, accountsByID(account))

	result, err := v.Validate(context.Background(), Credentials{"email": "alice@example.com", "password": "password"})
	require.NoError(t, err)
	assert.Equal(t, lang.LoginInvalidPassword, result.Reason)
}

func TestVerifier_Validate_StorageError(t *testing.T) {
	store := &MockAccountStore{
		FindByFieldFunc: func(ctx context.Context, field, value string) (*models.Account, error) {
			return nil, errors.New("connection refused")
		},
	}
	v := newTestVerifier(t, store)

	_, err := v.Validate(context.Background(), Credentials{"email": "alice@example.com", "password": "x"})
	assert.Error(t, err)
	assert.False(t, IsCallerError(err))
}

func TestVerifier_Validate_RehashesWeakHashOnce(t *testing.T) {
	// stored under a cheaper cost than the verifier's policy
	weak, err := bcrypt.GenerateFromPassword([]byte("SecureP@ss123"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := &models.Account{ID: "acct-1", Email: "alice@example.com", PasswordHash: string(weak)}
	store := &MockAccountStore{
		FindByFieldFunc: func(ctx context.Context, field, value string) (*models.Account, error) {
			copied := *stored
			return &copied, nil
		},
		UpdatePasswordHashFunc: func(ctx context.Context, id, hash string) error {
			stored.PasswordHash = hash
			return nil
		},
	}

	policy, err := pkgauth.NewPasswordPolicy(pkgauth.AlgorithmBcrypt, bcrypt.MinCost+1, pkgauth.Argon2Params{})
	require.NoError(t, err)
	v := NewVerifier(store, policy, []string{"email"}, testLogger())

	creds := Credentials{"email": "alice@example.com", "password": "SecureP@ss123"}

	result, err := v.Validate(context.Background(), creds)
	require.NoError(t, err)
	require.True(t, result.Valid())
	assert.Equal(t, 1, store.saves)
	assert.NotEqual(t, string(weak), stored.PasswordHash)

	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	result, err = v.Validate(context.Background(), creds)
	require.NoError(t, err)
	assert.True(t, result.Valid())
	assert.Equal(t, 1, store.saves, "an upgraded hash must not be rehashed again")
}

func TestVerifier_Validate_RehashSaveFailureKeepsLogin(t *testing.T) {
	weak, err := bcrypt.GenerateFromPassword([]byte("SecureP@ss123"), bcrypt.MinCost)
	require.NoError(t, err)

	store := &MockAccountStore{
		FindByFieldFunc: func(ctx context.Context, field, value string) (*models.Account, error) {
			return &models.Account{ID: "acct-1", Email: value, PasswordHash: string(weak)}, nil
		},
		UpdatePasswordHashFunc: func(ctx context.Context, id, hash string) error {
			return errors.New("read-only replica")
		},
	}

	policy, err := pkgauth.NewPasswordPolicy(pkgauth.AlgorithmArgon2id, 0, pkgauth.Argon2Params{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)
	v := NewVerifier(store, policy, []string{"email"}, testLogger())

	result, err := v.Validate(context.Background(), Credentials{"email": "alice@example.com", "password": "SecureP@ss123"})
	require.NoError(t, err)
	require.True(t, result.Valid())
	assert.Equal(t, string(weak), result.Account.PasswordHash, "failed save must leave the old hash in place")
}

func TestVerifier_Validate_CorruptArgon2HashFailsClosed(t *testing.T) {
	argon, err := pkgauth.NewPasswordPolicy(pkgauth.AlgorithmArgon2id, 0, pkgauth.Argon2Params{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)
	hash, err := argon.Hash("SecureP@ss123")
	require.NoError(t, err)
	corrupt := strings.Replace(hash, "p=1", "p=0", 1)

	store := &MockAccountStore{
		FindByFieldFunc: func(ctx context.Context, field, value string) (*models.Account, error) {
			return &models.Account{ID: "acct-1", Email: value, PasswordHash: corrupt}, nil
		},
	}
	v := newTestVerifier(t, store)

	var result ValidateResult
	require.NotPanics(t, func() {
		result, err = v.Validate(context.Background(), Credentials{"email": "alice@example.com", "password": "SecureP@ss123"})
	})
	require.NoError(t, err)
	assert.False(t, result.Valid())
	assert.Equal(t, lang.LoginInvalidPassword, result.Reason)
	assert.Equal(t, 0, store.saves)
}

func TestCredentials_Identity(t *testing.T) {
	assert.Equal(t, "alice@example.com", Credentials{"email": "alice@example.com", "password": "x"}.Identity())
	assert.Equal(t, "alice", Credentials{"username": "alice", "password": "x"}.Identity())
	assert.Equal(t, "", Credentials{"password": "x"}.Identity())
	// deterministic when several identities are present
	assert.Equal(t, "a@example.com", Credentials{"username": "a", "email": "a@example.com"}.Identity())
}
