package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ticketIssuer = "warden-login"

// ErrInvalidTicket is returned for tickets that are malformed, forged or expired
var ErrInvalidTicket = errors.New("invalid login ticket")

// TicketClaims certify that credentials were accepted for an account.
// The ticket is redeemed by the finalize step, which creates the session.
type TicketClaims struct {
	AccountID string `json:"aid"`
	Remember  bool   `json:"rem"`
	jwt.RegisteredClaims
}

// TicketManager signs and verifies short-lived login tickets
type TicketManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTicketManager creates a new TicketManager
func NewTicketManager(secret string, ttl time.Duration) *TicketManager {
	return &TicketManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a signed ticket for the account and returns it with its id
func (tm *TicketManager) Issue(accountID string, remember bool) (string, string, error) {
	now := tm.now()
	claims := &TicketClaims{
		AccountID: accountID,
		Remember:  remember,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    ticketIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign login ticket: %w", err)
	}
	return signed, claims.ID, nil
}

// Verify parses a ticket and returns its claims
func (tm *TicketManager) Verify(ticket string) (*TicketClaims, error) {
	claims := &TicketClaims{}

	token, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithIssuer(ticketIssuer),
		jwt.WithTimeFunc(tm.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	if !token.Valid || claims.AccountID == "" {
		return nil, ErrInvalidTicket
	}

	return claims, nil
}
