package models

import "time"

// RememberToken is the persistent half of a "remember me" login.
// The selector is looked up in the clear; the validator is only ever stored hashed.
type RememberToken struct {
	ID              string    `db:"id"`
	Selector        string    `db:"selector"`
	HashedValidator string    `db:"hashed_validator"`
	UserID          string    `db:"user_id"`
	Expires         time.Time `db:"expires"`
	CreatedAt       time.Time `db:"created_at"`
}

// IsExpired reports whether the token is past its expiry at the given instant.
func (t *RememberToken) IsExpired(now time.Time) bool {
	return !t.Expires.After(now)
}
