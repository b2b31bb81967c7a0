package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/warden/internal/models"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
)

const (
	selectorBytes  = 12
	validatorBytes = 20
)

// RememberTokenStore is the persistence contract for remember-me tokens
type RememberTokenStore interface {
	FindBySelector(ctx context.Context, selector string) (*models.RememberToken, error)
	Create(ctx context.Context, token *models.RememberToken) error
	// Replace must delete the account's oldSelector row and insert next
	// atomically, returning models.ErrNotFound when the row was already gone.
	Replace(ctx context.Context, accountID, oldSelector string, next *models.RememberToken) error
}

// RememberCookie is the client half of a remember-me token.
type RememberCookie struct {
	Selector  string
	Validator string
}

// String renders the cookie value as selector:validator
func (c RememberCookie) String() string {
	return c.Selector + ":" + c.Validator
}

// ParseRememberCookie splits a cookie value on its first colon. Both halves
// must be present.
func ParseRememberCookie(value string) (RememberCookie, bool) {
	selector, validator, found := strings.Cut(value, ":")
	if !found || selector == "" || validator == "" {
		return RememberCookie{}, false
	}
	return RememberCookie{Selector: selector, Validator: validator}, true
}

// Matches compares the cookie's validator with the token's stored hash in constant time
func (c RememberCookie) Matches(token *models.RememberToken) bool {
	hashed := hashValidator(c.Validator)
	return subtle.ConstantTimeCompare([]byte(hashed), []byte(token.HashedValidator)) == 1
}

func hashValidator(validator string) string {
	sum := sha256.Sum256([]byte(validator))
	return hex.EncodeToString(sum[:])
}

// newRememberToken generates a fresh selector/validator pair for the account.
// Only the hashed validator goes into the returned token.
func newRememberToken(accountID string, expires time.Time) (*models.RememberToken, RememberCookie, error) {
	selector, err := pkgauth.GenerateRandomHex(selectorBytes)
	if err != nil {
		return nil, RememberCookie{}, fmt.Errorf("failed to generate selector: %w", err)
	}
	validator, err := pkgauth.GenerateRandomHex(validatorBytes)
	if err != nil {
		return nil, RememberCookie{}, fmt.Errorf("failed to generate validator: %w", err)
	}

	token := &models.RememberToken{
		Selector:        selector,
		HashedValidator: hashValidator(validator),
		UserID:          accountID,
		Expires:         expires,
	}
	return token, RememberCookie{Selector: selector, Validator: validator}, nil
}
