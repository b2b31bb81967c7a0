package routes

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/handlers"
	"github.com/BradenHooton/warden/internal/lang"
	"github.com/BradenHooton/warden/internal/middleware"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/session"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// accountTable serves accounts by id; nothing in these tests logs in by password
type accountTable map[string]*models.Account

func (t accountTable) FindByField(ctx context.Context, field, value string) (*models.Account, error) {
	return nil, models.ErrNotFound
}

func (t accountTable) FindByID(ctx context.Context, id string) (*models.Account, error) {
	account, ok := t[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (t accountTable) UpdatePasswordHash(ctx context.Context, id, hash string) error { return nil }

func (t accountTable) RecordLogin(ctx context.Context, id string, at time.Time, ip string) error {
	return nil
}

type noRememberTokens struct{}

func (noRememberTokens) FindBySelector(ctx context.Context, selector string) (*models.RememberToken, error) {
	return nil, models.ErrNotFound
}

func (noRememberTokens) Create(ctx context.Context, token *models.RememberToken) error { return nil }

func (noRememberTokens) Replace(ctx context.Context, accountID, oldSelector string, next *models.RememberToken) error {
	return models.ErrNotFound
}

type discardAttempts struct{}

func (discardAttempts) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	return nil
}

type roleTable map[string]string

func (r roleTable) InRole(ctx context.Context, role, accountID string) (bool, error) {
	return r[accountID] == role, nil
}

type testApp struct {
	router http.Handler
	store  *session.MemoryStore
}

func newTestApp(t *testing.T, accounts accountTable, roles roleTable) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	policy, err := pkgauth.NewPasswordPolicy(pkgauth.AlgorithmBcrypt, bcrypt.MinCost, pkgauth.Argon2Params{})
	require.NoError(t, err)

	logins := auth.NewLoginSessionManager(accounts, noRememberTokens{}, time.Hour, logger)
	verifier := auth.NewVerifier(accounts, policy, []string{"email"}, logger)
	authenticator := auth.NewAuthenticator(verifier, accounts, noRememberTokens{}, discardAttempts{}, logins, nil,
		auth.Config{Silent: true, ResetPasswordURL: "/reset-password"}, logger)
	gate := auth.NewRoleGate(authenticator, roles, auth.GateConfig{LoginURL: "/login", ErrorURL: "/error"}, logger)
	mw := auth.NewMiddleware(gate, auth.RememberCookieConfig{}, nil, logger)

	store := session.NewMemoryStore()
	router := chi.NewRouter()
	RegisterRoutes(router, Dependencies{
		Auth: handlers.NewAuthHandler(&handlers.MockAuthenticator{}, &handlers.MockSessionLogin{TTL: time.Hour},
			&handlers.MockAccountFinder{}, auth.NewTicketManager("routes-test-secret-0123456789", time.Minute),
			mw, auth.RememberCookieConfig{}, time.Minute, logger),
		Admin:      handlers.NewAdminHandler(&handlers.MockLoginActivity{}, logger),
		Health:     handlers.NewHealthHandler(nil, logger),
		Gate:       mw,
		Sessions:   session.NewManager(store, time.Hour, session.CookieConfig{Name: "sid"}, logger),
		LoginLimit: middleware.DefaultLoginRateLimit(),
		ErrorURL:   "/error",
	})

	return &testApp{router: router, store: store}
}

func (a *testApp) sessionFor(t *testing.T, accountID string) *http.Cookie {
	t.Helper()
	id := "session-" + accountID
	require.NoError(t, a.store.Save(context.Background(), id, map[string]string{session.KeyLoggedIn: accountID}, time.Hour))
	return &http.Cookie{Name: "sid", Value: id}
}

func (a *testApp) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func flashOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.FlashResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestSilentDenialMessageIsShownOnceAtErrorURL(t *testing.T) {
	app := newTestApp(t,
		accountTable{"member": {ID: "member", Email: "m@example.com", Activated: true}},
		roleTable{},
	)
	cookie := app.sessionFor(t, "member")

	rec := app.get("/admin", cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/error", rec.Header().Get("Location"))

	assert.Equal(t, lang.Line(lang.InsufficientPermissions), flashOf(t, app.get("/error", cookie)))
	assert.Empty(t, flashOf(t, app.get("/error", cookie)), "the message is consumed by the first read")
}

func TestBannedLogoutMessageIsShownAtErrorURL(t *testing.T) {
	app := newTestApp(t,
		accountTable{"banned": {ID: "banned", Email: "b@example.com", Activated: true, Banned: true}},
		roleTable{},
	)
	cookie := app.sessionFor(t, "banned")

	rec := app.get("/me", cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	assert.Equal(t, lang.Line(lang.UserIsBanned), flashOf(t, app.get("/error", cookie)))
}

func TestAdminReachesOverview(t *testing.T) {
	app := newTestApp(t,
		accountTable{"root": {ID: "root", Email: "root@example.com", Activated: true}},
		roleTable{"root": "admin"},
	)

	rec := app.get("/admin", app.sessionFor(t, "root"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
