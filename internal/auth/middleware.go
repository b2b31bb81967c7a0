package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/session"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AccountContextKey is the key for storing the authenticated account in context
	AccountContextKey contextKey = "account"
)

// Middleware adapts the RoleGate to chi-style middleware
type Middleware struct {
	gate     *RoleGate
	remember RememberCookieConfig
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewMiddleware creates a new Middleware. It must run inside the session middleware.
func NewMiddleware(gate *RoleGate, remember RememberCookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *Middleware {
	return &Middleware{
		gate:     gate,
		remember: remember,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// RequestContext builds the authenticator's view of r
func (m *Middleware) RequestContext(r *http.Request) *RequestContext {
	client := pkghttp.ClientInfo(r, m.ipConfig)
	return &RequestContext{
		Session:        session.FromContext(r.Context()),
		IPAddress:      client.IP,
		UserAgent:      client.UserAgent,
		URL:            r.URL.RequestURI(),
		RememberCookie: GetRememberCookie(r, m.remember),
	}
}

// RequireLogin only lets authenticated requests through
func (m *Middleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := m.RequestContext(r)
		if rc.Session == nil {
			m.logger.Error("auth middleware used without a session")
			pkghttp.WriteInternalError(w, "internal server error")
			return
		}

		result, err := m.gate.LoginRequired(r.Context(), rc)
		m.handle(w, r, rc, next, result, err)
	})
}

// RequireRoles lets through authenticated requests whose account holds any of roles
func (m *Middleware) RequireRoles(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := m.RequestContext(r)
			if rc.Session == nil {
				m.logger.Error("auth middleware used without a session")
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}

			result, err := m.gate.Before(r.Context(), rc, roles)
			m.handle(w, r, rc, next, result, err)
			m.gate.After(r.Context(), rc)
		})
	}
}

func (m *Middleware) handle(w http.ResponseWriter, r *http.Request, rc *RequestContext, next http.Handler, result GateResult, err error) {
	if err != nil {
		m.logger.Error("access check failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	if result.RememberCookie != "" {
		SetRememberCookie(w, result.RememberCookie, m.gate.auth.sessions.RememberTTL(), m.remember)
	} else if result.ClearRemember {
		ClearRememberCookie(w, m.remember)
	}

	switch result.Action {
	case GateAllow:
		ctx := r.Context()
		if result.Account != nil {
			ctx = context.WithValue(ctx, AccountContextKey, result.Account)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	case GateRedirect:
		http.Redirect(w, r, result.RedirectURL, http.StatusSeeOther)
	default:
		pkghttp.WriteForbidden(w, result.Err.Message)
	}
}

// GetAccountFromContext returns the account stored by the auth middleware
func GetAccountFromContext(r *http.Request) *models.Account {
	account, ok := r.Context().Value(AccountContextKey).(*models.Account)
	if !ok {
		return nil
	}
	return account
}
