package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/warden/internal/lang"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/session"
)

// Authorizer answers role membership questions
type Authorizer interface {
	InRole(ctx context.Context, role, accountID string) (bool, error)
}

// PermissionError is the reason a request was denied outright
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

// GateAction is the terminal decision of a gate
type GateAction int

const (
	GateAllow GateAction = iota
	GateRedirect
	GateDeny
)

// GateResult is one of Allow, RedirectTo(RedirectURL) or Deny(Err).
type GateResult struct {
	Action         GateAction
	Account        *models.Account // set on Allow for authenticated requests
	RedirectURL    string
	Err            *PermissionError
	RememberCookie string // replacement remember cookie to send, if any
	ClearRemember  bool   // the presented remember cookie is dead
}

// GateConfig holds the destinations a gate redirects to
type GateConfig struct {
	LoginURL string
	ErrorURL string
}

// RoleGate guards routes behind a login and, optionally, a set of roles.
type RoleGate struct {
	auth       *Authenticator
	authorizer Authorizer
	cfg        GateConfig
	logger     *slog.Logger
}

// NewRoleGate creates a new RoleGate
func NewRoleGate(auth *Authenticator, authorizer Authorizer, cfg GateConfig, logger *slog.Logger) *RoleGate {
	return &RoleGate{
		auth:       auth,
		authorizer: authorizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Before decides whether the request may reach a route that requires any of roles.
// An empty role list lets every request through.
func (g *RoleGate) Before(ctx context.Context, rc *RequestContext, roles []string) (GateResult, error) {
	if len(roles) == 0 {
		return GateResult{Action: GateAllow}, nil
	}

	result, err := g.LoginRequired(ctx, rc)
	if err != nil || result.Action != GateAllow {
		return result, err
	}

	for _, role := range roles {
		ok, err := g.authorizer.InRole(ctx, role, result.Account.ID)
		if err != nil {
			return GateResult{}, fmt.Errorf("failed to check role %q: %w", role, err)
		}
		if ok {
			return result, nil
		}
	}

	g.logger.Info("insufficient permissions",
		slog.String("user_id", result.Account.ID),
		slog.Any("required_roles", roles),
	)

	msg := lang.Line(lang.InsufficientPermissions)
	if g.auth.Silent() {
		rc.Session.Delete(session.KeyRedirectURL)
		rc.Session.Set(session.KeyError, msg)
		return GateResult{Action: GateRedirect, RedirectURL: g.cfg.ErrorURL, RememberCookie: result.RememberCookie}, nil
	}

	return GateResult{Action: GateDeny, Err: &PermissionError{Message: msg}, RememberCookie: result.RememberCookie}, nil
}

// After runs once the route handled the request. Role checks need nothing here.
func (g *RoleGate) After(ctx context.Context, rc *RequestContext) {}

// LoginRequired lets authenticated requests through and sends everyone else
// to the login page, remembering where they were headed.
func (g *RoleGate) LoginRequired(ctx context.Context, rc *RequestContext) (GateResult, error) {
	check, err := g.auth.Check(ctx, rc)
	if err != nil {
		return GateResult{}, err
	}

	switch check.Status {
	case CheckAuthenticated:
		return GateResult{Action: GateAllow, Account: check.Account, RememberCookie: check.RememberCookie}, nil
	case CheckMustResetPassword:
		return GateResult{Action: GateRedirect, RedirectURL: check.RedirectURL, RememberCookie: check.RememberCookie}, nil
	default:
		rc.Session.Set(session.KeyRedirectURL, rc.URL)
		return GateResult{
			Action:        GateRedirect,
			RedirectURL:   g.cfg.LoginURL,
			ClearRemember: rc.RememberCookie != "",
		}, nil
	}
}
