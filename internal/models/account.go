package models

import (
	"time"
)

// Account is an identity capable of authenticating.
type Account struct {
	ID             string
	Email          string
	Username       *string // optional second login identifier
	PasswordHash   string
	Banned         bool
	Activated      bool
	ForcePassReset bool
	ResetHash      *string // token handed to the password reset flow
	LastLoginAt    *time.Time
	LastLoginIP    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsBanned reports whether the account has been banned by an administrator.
func (a *Account) IsBanned() bool {
	return a.Banned
}

// IsActivated reports whether the account completed activation.
func (a *Account) IsActivated() bool {
	return a.Activated
}
