package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BradenHooton/warden/internal/lang"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/session"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
)

// RequestContext carries the per-request state the authenticator works on.
type RequestContext struct {
	Session        *session.Session
	IPAddress      string
	UserAgent      string
	URL            string // current URL, remembered as the post-login destination
	RememberCookie string // raw remember cookie value, "" when absent
}

// AttemptRecorder is the sink for login attempt audit rows
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
}

// AttemptResult reports the outcome of a credential attempt.
type AttemptResult struct {
	Success  bool
	Account  *models.Account // set on success
	Remember bool
	Message  string // user-facing reason on failure
}

// CheckStatus is the outcome of Check
type CheckStatus int

const (
	CheckFailed CheckStatus = iota
	CheckAuthenticated
	CheckMustResetPassword
)

// CheckResult reports whether the request is authenticated.
type CheckResult struct {
	Status         CheckStatus
	Account        *models.Account
	RedirectURL    string // password reset destination for CheckMustResetPassword
	RememberCookie string // replacement cookie after a remember-me login
}

// Authenticated reports whether the request may proceed as Account
func (r CheckResult) Authenticated() bool {
	return r.Status == CheckAuthenticated
}

// Config holds the authenticator settings
type Config struct {
	Silent              bool
	ResetPasswordURL    string
	ResendActivationURL string
}

// Authenticator ties credential checks, remember-me tokens and the session together
type Authenticator struct {
	verifier *Verifier
	accounts AccountStore
	tokens   RememberTokenStore
	attempts AttemptRecorder
	sessions *LoginSessionManager
	timing   *TimingDelay
	cfg      Config
	now      func() time.Time
	audit    *pkglogger.AuditLogger
	logger   *slog.Logger
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(
	verifier *Verifier,
	accounts AccountStore,
	tokens RememberTokenStore,
	attempts AttemptRecorder,
	sessions *LoginSessionManager,
	timing *TimingDelay,
	cfg Config,
	logger *slog.Logger,
) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		accounts: accounts,
		tokens:   tokens,
		attempts: attempts,
		sessions: sessions,
		timing:   timing,
		cfg:      cfg,
		now:      time.Now,
		audit:    pkglogger.NewAuditLogger(logger),
		logger:   logger,
	}
}

// Silent reports whether authorization failures redirect instead of erroring
func (a *Authenticator) Silent() bool {
	return a.cfg.Silent
}

// ID returns the logged in account id for the request, or ""
func (a *Authenticator) ID(rc *RequestContext) string {
	return a.sessions.ID(rc.Session)
}

// Validate checks credentials without logging anyone in
func (a *Authenticator) Validate(ctx context.Context, creds Credentials) (ValidateResult, error) {
	return a.verifier.Validate(ctx, creds)
}

// Sessions exposes the login session manager used to finalize logins
func (a *Authenticator) Sessions() *LoginSessionManager {
	return a.sessions
}

// Attempt checks the credentials and account state and records exactly one
// login attempt. A successful attempt does not log the account in; that is
// left to a separate finalize step.
func (a *Authenticator) Attempt(ctx context.Context, rc *RequestContext, creds Credentials, remember bool) (AttemptResult, error) {
	start := time.Now()
	identity := creds.Identity()

	result, err := a.verifier.Validate(ctx, creds)
	if err != nil {
		reason := models.AttemptReasonError
		if IsCallerError(err) {
			reason = models.AttemptReasonInvalidRequest
		}
		// the caller error wins over a recording failure, which record already logs
		_ = a.record(ctx, rc, identity, nil, false, reason)
		return AttemptResult{}, err
	}

	if !result.Valid() {
		return a.fail(ctx, rc, start, identity, nil, models.AttemptReasonUnknown, result.Message())
	}

	account := result.Account

	if account.IsBanned() {
		return a.fail(ctx, rc, start, identity, account, models.AttemptReasonBanned, lang.Line(lang.UserIsBanned))
	}

	if !account.IsActivated() {
		resend := a.cfg.ResendActivationURL + "?" + url.Values{"login": {identity}}.Encode()
		msg := lang.Line(lang.ActivationNotActivated) + " " + lang.Line(lang.ActivationResend, resend)
		return a.fail(ctx, rc, start, identity, account, models.AttemptReasonInactive, msg)
	}

	if err := a.record(ctx, rc, identity, &account.ID, true, models.AttemptReasonOK); err != nil {
		return AttemptResult{}, err
	}

	a.timing.WaitFrom(ctx, start, true)

	return AttemptResult{Success: true, Account: account, Remember: remember}, nil
}

func (a *Authenticator) fail(ctx context.Context, rc *RequestContext, start time.Time, identity string, account *models.Account, reason, message string) (AttemptResult, error) {
	var userID *string
	if account != nil {
		userID = &account.ID
	}
	if err := a.record(ctx, rc, identity, userID, false, reason); err != nil {
		return AttemptResult{}, err
	}

	a.timing.WaitFrom(ctx, start, false)

	return AttemptResult{Message: message}, nil
}

func (a *Authenticator) record(ctx context.Context, rc *RequestContext, identity string, userID *string, success bool, reason string) error {
	attempt := &models.LoginAttempt{
		Identity:  identity,
		IPAddress: rc.IPAddress,
		UserAgent: rc.UserAgent,
		UserID:    userID,
		Success:   success,
		Reason:    reason,
	}

	event := pkglogger.AuditEvent{
		EventType: "login_attempt",
		Identity:  identity,
		IPAddress: rc.IPAddress,
		UserAgent: rc.UserAgent,
		Success:   success,
	}
	if userID != nil {
		event.UserID = *userID
	}
	if !success {
		event.FailureReason = reason
	}
	a.audit.LogAuthAttempt(event)

	if err := a.attempts.RecordAttempt(ctx, attempt); err != nil {
		a.logger.Error("failed to record login attempt", slog.Any("error", err))
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// Check reports whether the request belongs to a logged in account, falling
// back to the remember cookie when the session is empty.
func (a *Authenticator) Check(ctx context.Context, rc *RequestContext) (CheckResult, error) {
	if id := a.sessions.ID(rc.Session); id != "" {
		return a.checkSession(ctx, rc, id)
	}
	return a.checkRemember(ctx, rc)
}

func (a *Authenticator) checkSession(ctx context.Context, rc *RequestContext, id string) (CheckResult, error) {
	account, err := a.accounts.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return CheckResult{}, fmt.Errorf("failed to load session account: %w", err)
		}
		a.logger.Info("session account no longer exists", slog.String("user_id", id))
		a.sessions.logout(rc.Session)
		return CheckResult{}, nil
	}

	if account.IsBanned() {
		a.logger.Info("logging out banned account", slog.String("user_id", id))
		a.sessions.logout(rc.Session)
		rc.Session.Set(session.KeyError, lang.Line(lang.UserIsBanned))
		return CheckResult{}, nil
	}

	if account.ForcePassReset {
		return CheckResult{
			Status:      CheckMustResetPassword,
			Account:     account,
			RedirectURL: a.resetURL(account),
		}, nil
	}

	return CheckResult{Status: CheckAuthenticated, Account: account}, nil
}

func (a *Authenticator) checkRemember(ctx context.Context, rc *RequestContext) (CheckResult, error) {
	if rc.RememberCookie == "" {
		return CheckResult{}, nil
	}

	cookie, ok := ParseRememberCookie(rc.RememberCookie)
	if !ok {
		return CheckResult{}, nil
	}

	token, err := a.tokens.FindBySelector(ctx, cookie.Selector)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return CheckResult{}, nil
		}
		return CheckResult{}, fmt.Errorf("failed to look up remember token: %w", err)
	}

	if token.IsExpired(a.now()) || !cookie.Matches(token) {
		return CheckResult{}, nil
	}

	account, err := a.accounts.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return CheckResult{}, nil
		}
		return CheckResult{}, fmt.Errorf("failed to load remembered account: %w", err)
	}

	if account.IsBanned() {
		return CheckResult{}, nil
	}

	// Consume the token before logging in so a concurrent reuse cannot win too.
	next, err := a.sessions.rotateRemember(ctx, account.ID, cookie.Selector)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			a.logger.Warn("remember token already consumed", slog.String("user_id", account.ID))
			return CheckResult{}, nil
		}
		return CheckResult{}, fmt.Errorf("failed to replace remember token: %w", err)
	}

	if err := a.sessions.establish(rc.Session, account.ID); err != nil {
		return CheckResult{}, err
	}

	a.audit.LogAccountAction("remember_login", account.ID, rc.IPAddress, nil)

	if account.ForcePassReset {
		return CheckResult{
			Status:         CheckMustResetPassword,
			Account:        account,
			RedirectURL:    a.resetURL(account),
			RememberCookie: next,
		}, nil
	}

	return CheckResult{Status: CheckAuthenticated, Account: account, RememberCookie: next}, nil
}

func (a *Authenticator) resetURL(account *models.Account) string {
	token := ""
	if account.ResetHash != nil {
		token = *account.ResetHash
	}
	return a.cfg.ResetPasswordURL + "?" + url.Values{"token": {token}}.Encode()
}

// IsCallerError reports whether err is a misuse of the credentials contract
// rather than bad user input or an infrastructure failure
func IsCallerError(err error) bool {
	var fieldErr *InvalidFieldError
	return errors.Is(err, ErrTooManyCredentials) || errors.As(err, &fieldErr)
}
