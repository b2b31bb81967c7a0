package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/session"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
)

// LoginResult describes what the transport layer has to send after a login
type LoginResult struct {
	RedirectURL    string // stored destination, removed from the session
	RememberCookie string // set when a remember token was issued
}

// LoginSessionManager owns the "logged in account" entry of a session and the
// one-time side effects of logging in.
type LoginSessionManager struct {
	accounts    AccountStore
	tokens      RememberTokenStore
	rememberTTL time.Duration
	now         func() time.Time
	audit       *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewLoginSessionManager creates a new LoginSessionManager
func NewLoginSessionManager(accounts AccountStore, tokens RememberTokenStore, rememberTTL time.Duration, logger *slog.Logger) *LoginSessionManager {
	return &LoginSessionManager{
		accounts:    accounts,
		tokens:      tokens,
		rememberTTL: rememberTTL,
		now:         time.Now,
		audit:       pkglogger.NewAuditLogger(logger),
		logger:      logger,
	}
}

// RememberTTL is how long issued remember cookies stay valid
func (m *LoginSessionManager) RememberTTL() time.Duration {
	return m.rememberTTL
}

// ID returns the account id stored in the session, or "" when nobody is logged in
func (m *LoginSessionManager) ID(s *session.Session) string {
	if s == nil {
		return ""
	}
	id, _ := s.Get(session.KeyLoggedIn)
	return id
}

// Login finalizes a login for an account whose credentials were already
// accepted: it rotates the session id, stores the account, stamps the last
// login and, when asked, issues a remember token.
func (m *LoginSessionManager) Login(ctx context.Context, rc *RequestContext, account *models.Account, remember bool) (LoginResult, error) {
	if err := m.establish(rc.Session, account.ID); err != nil {
		return LoginResult{}, err
	}

	now := m.now()
	ip := rc.IPAddress
	if err := m.accounts.RecordLogin(ctx, account.ID, now, ip); err != nil {
		m.logger.Warn("failed to record last login", slog.String("user_id", account.ID), slog.Any("error", err))
	} else {
		account.LastLoginAt = &now
		account.LastLoginIP = &ip
	}

	var result LoginResult
	if url, ok := rc.Session.Pull(session.KeyRedirectURL); ok {
		result.RedirectURL = url
	}

	if remember {
		cookie, err := m.issueRemember(ctx, account.ID)
		if err != nil {
			return LoginResult{}, err
		}
		result.RememberCookie = cookie
	}

	m.audit.LogAccountAction("login", account.ID, rc.IPAddress, map[string]string{
		"remember": fmt.Sprintf("%t", remember),
	})

	return result, nil
}

// establish rotates the session id and marks the account as logged in
func (m *LoginSessionManager) establish(s *session.Session, accountID string) error {
	if err := s.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	s.Set(session.KeyLoggedIn, accountID)
	return nil
}

// logout removes the account from the session
func (m *LoginSessionManager) logout(s *session.Session) {
	s.Delete(session.KeyLoggedIn)
}

func (m *LoginSessionManager) issueRemember(ctx context.Context, accountID string) (string, error) {
	token, cookie, err := newRememberToken(accountID, m.now().Add(m.rememberTTL))
	if err != nil {
		return "", err
	}
	if err := m.tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to store remember token: %w", err)
	}
	return cookie.String(), nil
}

// rotateRemember consumes oldSelector and issues its replacement. It returns
// models.ErrNotFound when another request consumed the token first.
func (m *LoginSessionManager) rotateRemember(ctx context.Context, accountID, oldSelector string) (string, error) {
	token, cookie, err := newRememberToken(accountID, m.now().Add(m.rememberTTL))
	if err != nil {
		return "", err
	}
	if err := m.tokens.Replace(ctx, accountID, oldSelector, token); err != nil {
		return "", err
	}
	return cookie.String(), nil
}
