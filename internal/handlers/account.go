package handlers

import (
	"net/http"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// AccountResponse is the public view of an account
type AccountResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    *string    `json:"username,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// NewAccountResponse strips an account down to its public fields
func NewAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Email:       a.Email,
		Username:    a.Username,
		LastLoginAt: a.LastLoginAt,
	}
}

// Me returns the logged in account. Routes using it sit behind RequireLogin.
func Me(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccountFromContext(r)
	if account == nil {
		pkghttp.WriteUnauthorized(w, "Not logged in")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, NewAccountResponse(account))
}
