package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAccountContext stores account in the request context the way the auth middleware does
func WithAccountContext(req *http.Request, account *models.Account) *http.Request {
	ctx := context.WithValue(req.Context(), auth.AccountContextKey, account)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthenticator implements AuthenticatorInterface for testing
type MockAuthenticator struct {
	AttemptFunc func(ctx context.Context, rc *auth.RequestContext, creds auth.Credentials, remember bool) (auth.AttemptResult, error)
}

func (m *MockAuthenticator) Attempt(ctx context.Context, rc *auth.RequestContext, creds auth.Credentials, remember bool) (auth.AttemptResult, error) {
	if m.AttemptFunc == nil {
		return auth.AttemptResult{Message: "Unable to log you in."}, nil
	}
	return m.AttemptFunc(ctx, rc, creds, remember)
}

// MockSessionLogin implements SessionLoginInterface for testing
type MockSessionLogin struct {
	LoginFunc func(ctx context.Context, rc *auth.RequestContext, account *models.Account, remember bool) (auth.LoginResult, error)
	TTL       time.Duration
}

func (m *MockSessionLogin) Login(ctx context.Context, rc *auth.RequestContext, account *models.Account, remember bool) (auth.LoginResult, error) {
	if m.LoginFunc == nil {
		return auth.LoginResult{}, nil
	}
	return m.LoginFunc(ctx, rc, account, remember)
}

func (m *MockSessionLogin) RememberTTL() time.Duration {
	return m.TTL
}

// MockAccountFinder implements AccountFinderInterface for testing
type MockAccountFinder struct {
	FindByIDFunc func(ctx context.Context, id string) (*models.Account, error)
}

func (m *MockAccountFinder) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if m.FindByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.FindByIDFunc(ctx, id)
}

// MockRequestContextBuilder hands out a fixed request context
type MockRequestContextBuilder struct {
	RC *auth.RequestContext
}

func (m *MockRequestContextBuilder) RequestContext(r *http.Request) *auth.RequestContext {
	return m.RC
}

// MockLoginActivity implements LoginActivityInterface for testing
type MockLoginActivity struct {
	ListRecentFunc func(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
}

func (m *MockLoginActivity) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	if m.ListRecentFunc == nil {
		return []*models.LoginAttempt{}, nil
	}
	return m.ListRecentFunc(ctx, limit)
}
