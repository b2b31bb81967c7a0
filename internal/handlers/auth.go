package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/lang"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/session"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// AuthenticatorInterface is the credential side of a login
type AuthenticatorInterface interface {
	Attempt(ctx context.Context, rc *auth.RequestContext, creds auth.Credentials, remember bool) (auth.AttemptResult, error)
}

// SessionLoginInterface finalizes an accepted login
type SessionLoginInterface interface {
	Login(ctx context.Context, rc *auth.RequestContext, account *models.Account, remember bool) (auth.LoginResult, error)
	RememberTTL() time.Duration
}

// AccountFinderInterface reloads the account named by a login ticket
type AccountFinderInterface interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// TicketInterface signs and verifies login tickets
type TicketInterface interface {
	Issue(accountID string, remember bool) (string, string, error)
	Verify(ticket string) (*auth.TicketClaims, error)
}

// RequestContextBuilder extracts the authenticator's view of a request
type RequestContextBuilder interface {
	RequestContext(r *http.Request) *auth.RequestContext
}

// AuthHandler handles the two-step login flow
type AuthHandler struct {
	authenticator AuthenticatorInterface
	sessions      SessionLoginInterface
	accounts      AccountFinderInterface
	tickets       TicketInterface
	requests      RequestContextBuilder
	remember      auth.RememberCookieConfig
	ticketTTL     time.Duration
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	authenticator AuthenticatorInterface,
	sessions SessionLoginInterface,
	accounts AccountFinderInterface,
	tickets TicketInterface,
	requests RequestContextBuilder,
	remember auth.RememberCookieConfig,
	ticketTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		sessions:      sessions,
		accounts:      accounts,
		tickets:       tickets,
		requests:      requests,
		remember:      remember,
		ticketTTL:     ticketTTL,
		logger:        logger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login. Exactly one of Email
// or Username identifies the account.
type LoginRequest struct {
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Username string `json:"username,omitempty" validate:"omitempty,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
	Remember bool   `json:"remember"`
}

// FinalizeRequest represents the request body for the finalize step
type FinalizeRequest struct {
	Ticket string `json:"ticket" validate:"required"`
}

// Response DTOs

// TicketResponse is returned when credentials are accepted
type TicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// FinalizeResponse is returned once the session is established
type FinalizeResponse struct {
	RedirectURL string          `json:"redirect_url"`
	Account     AccountResponse `json:"account"`
}

// credentials turns the request into the verifier's credential map.
// Identifiers are trimmed and e-mail addresses lower-cased.
func (req LoginRequest) credentials() auth.Credentials {
	creds := auth.Credentials{auth.PasswordField: req.Password}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		creds["email"] = email
	}
	if username := strings.TrimSpace(req.Username); username != "" {
		creds["username"] = username
	}
	return creds
}

// Login checks credentials and, when they are accepted, hands out a login
// ticket bound to the caller's session.
// @Summary Verify credentials
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} TicketResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rc := h.requests.RequestContext(r)
	if rc.Session == nil {
		h.logger.Error("login handler used without a session")
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	result, err := h.authenticator.Attempt(r.Context(), rc, req.credentials(), req.Remember)
	if err != nil {
		if auth.IsCallerError(err) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.Error("login attempt failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if !result.Success {
		pkghttp.WriteUnauthorized(w, result.Message)
		return
	}

	ticket, ticketID, err := h.tickets.Issue(result.Account.ID, result.Remember)
	if err != nil {
		h.logger.Error("failed to issue login ticket", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	rc.Session.Set(session.KeyLoginTicket, ticketID)

	pkghttp.WriteJSON(w, http.StatusOK, TicketResponse{
		Ticket:    ticket,
		ExpiresIn: int(h.ticketTTL.Seconds()),
	})
}

// Finalize redeems a login ticket: it re-checks the account, starts the
// authenticated session and issues the remember cookie when one was requested.
// @Summary Finalize login
// @Accept json
// @Param request body FinalizeRequest true "Finalize request"
// @Produce json
// @Success 200 {object} FinalizeResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /login/finalize [post]
func (h *AuthHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rc := h.requests.RequestContext(r)
	if rc.Session == nil {
		h.logger.Error("finalize handler used without a session")
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	claims, err := h.tickets.Verify(req.Ticket)
	if err != nil {
		pkghttp.WriteUnauthorized(w, lang.Line(lang.TicketInvalid))
		return
	}

	// a ticket is redeemable once, and only by the session it was issued to
	pending, ok := rc.Session.Pull(session.KeyLoginTicket)
	if !ok || pending != claims.ID {
		h.logger.Warn("login ticket not bound to this session", slog.String("user_id", claims.AccountID))
		pkghttp.WriteUnauthorized(w, lang.Line(lang.TicketInvalid))
		return
	}

	account, err := h.accounts.FindByID(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, lang.Line(lang.TicketInvalid))
			return
		}
		h.logger.Error("failed to load account", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	// the account may have changed since the ticket was issued
	if account.IsBanned() {
		pkghttp.WriteUnauthorized(w, lang.Line(lang.UserIsBanned))
		return
	}
	if !account.IsActivated() {
		pkghttp.WriteUnauthorized(w, lang.Line(lang.ActivationNotActivated))
		return
	}

	result, err := h.sessions.Login(r.Context(), rc, account, claims.Remember)
	if err != nil {
		h.logger.Error("failed to finalize login", slog.String("user_id", account.ID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if result.RememberCookie != "" {
		auth.SetRememberCookie(w, result.RememberCookie, h.sessions.RememberTTL(), h.remember)
	}

	redirect := result.RedirectURL
	if redirect == "" {
		redirect = "/"
	}

	pkghttp.WriteJSON(w, http.StatusOK, FinalizeResponse{
		RedirectURL: redirect,
		Account:     NewAccountResponse(account),
	})
}
