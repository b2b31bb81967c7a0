package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BradenHooton/warden/internal/lang"
	"github.com/BradenHooton/warden/internal/models"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
)

// PasswordField is the credentials key holding the plaintext password
const PasswordField = "password"

// ErrTooManyCredentials means the caller passed more than one identity field.
var ErrTooManyCredentials = errors.New("too many credentials: expected a password and exactly one identity field")

// InvalidFieldError names an identity field that is not in the allow-list.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%q is not a valid login field", e.Field)
}

// AccountStore is the persistence contract for accounts
type AccountStore interface {
	FindByField(ctx context.Context, field, value string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	RecordLogin(ctx context.Context, id string, at time.Time, ip string) error
}

// Credentials maps field names to submitted values, e.g. {"email": ..., "password": ...}
type Credentials map[string]string

// Identity returns the first non-password value in key order. It is what the
// audit trail records as the attempted login.
func (c Credentials) Identity() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		if k != PasswordField {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return c[keys[0]]
}

// ValidateResult is either Valid (Account set) or Invalid (Reason set).
type ValidateResult struct {
	Account *models.Account
	Reason  string // lang key
}

// Valid reports whether the credentials identified an account.
func (r ValidateResult) Valid() bool {
	return r.Account != nil
}

// Message is the user-facing text for an invalid result
func (r ValidateResult) Message() string {
	if r.Reason == "" {
		return ""
	}
	return lang.Line(r.Reason)
}

func invalid(reason string) ValidateResult {
	return ValidateResult{Reason: reason}
}

// Verifier checks submitted credentials against stored accounts.
type Verifier struct {
	accounts    AccountStore
	policy      *pkgauth.PasswordPolicy
	validFields map[string]bool
	audit       *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewVerifier creates a Verifier accepting the given identity fields
func NewVerifier(accounts AccountStore, policy *pkgauth.PasswordPolicy, validFields []string, logger *slog.Logger) *Verifier {
	fields := make(map[string]bool, len(validFields))
	for _, f := range validFields {
		fields[f] = true
	}
	return &Verifier{
		accounts:    accounts,
		policy:      policy,
		validFields: fields,
		audit:       pkglogger.NewAuditLogger(logger),
		logger:      logger,
	}
}

// Validate checks the credentials without touching the session. The only
// side effect is an upgraded password hash when the stored one is weaker than
// the current policy.
func (v *Verifier) Validate(ctx context.Context, creds Credentials) (ValidateResult, error) {
	password, ok := creds[PasswordField]
	if !ok || password == "" || len(creds) < 2 {
		return invalid(lang.LoginBadAttempt), nil
	}

	if len(creds) > 2 {
		return ValidateResult{}, ErrTooManyCredentials
	}

	var field, value string
	for k, val := range creds {
		if k != PasswordField {
			field, value = k, val
		}
	}

	if !v.validFields[field] {
		return ValidateResult{}, &InvalidFieldError{Field: field}
	}

	account, err := v.accounts.FindByField(ctx, field, value)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return invalid(lang.LoginBadAttempt), nil
		}
		return ValidateResult{}, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := v.policy.Verify(account.PasswordHash, password); err != nil {
		switch {
		case errors.Is(err, pkgauth.ErrMismatchedPassword):
		case errors.Is(err, pkgauth.ErrUnknownHashFormat):
			v.logger.Warn("stored password hash has an unknown format", slog.String("user_id", account.ID))
		default:
			return ValidateResult{}, fmt.Errorf("failed to verify password: %w", err)
		}
		return invalid(lang.LoginInvalidPassword), nil
	}

	if v.policy.NeedsRehash(account.PasswordHash) {
		v.rehash(ctx, account, password)
	}

	return ValidateResult{Account: account}, nil
}

// rehash stores a new hash under the current policy. Failures leave the old
// hash in place and do not affect the login.
func (v *Verifier) rehash(ctx context.Context, account *models.Account, password string) {
	hash, err := v.policy.Hash(password)
	if err != nil {
		v.logger.Error("failed to rehash password", slog.String("user_id", account.ID), slog.Any("error", err))
		return
	}

	if err := v.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		v.logger.Error("failed to save rehashed password", slog.String("user_id", account.ID), slog.Any("error", err))
		return
	}
	account.PasswordHash = hash

	v.audit.LogPasswordRehash(account.ID, v.policy.Algorithm)
}
