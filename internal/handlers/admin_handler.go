package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// LoginActivityInterface lists recorded login attempts
type LoginActivityInterface interface {
	ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
}

// AdminHandler serves the admin-only area.
type AdminHandler struct {
	attempts LoginActivityInterface
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(attempts LoginActivityInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{attempts: attempts, logger: logger}
}

// LoginAttemptResponse is one row of the login activity feed
type LoginAttemptResponse struct {
	Identity  string    `json:"identity"`
	IPAddress string    `json:"ip_address"`
	UserID    *string   `json:"user_id,omitempty"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminOverviewResponse is the body of GET /admin
type AdminOverviewResponse struct {
	Account        AccountResponse        `json:"account"`
	RecentAttempts []LoginAttemptResponse `json:"recent_attempts"`
}

// Overview handles GET /admin
// Accepts optional query param ?limit=N (1–50, default 20).
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccountFromContext(r)
	if account == nil {
		pkghttp.WriteUnauthorized(w, "Not logged in")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	attempts, err := h.attempts.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list login attempts", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to retrieve recent activity")
		return
	}

	resp := AdminOverviewResponse{
		Account:        NewAccountResponse(account),
		RecentAttempts: make([]LoginAttemptResponse, 0, len(attempts)),
	}
	for _, a := range attempts {
		resp.RecentAttempts = append(resp.RecentAttempts, LoginAttemptResponse{
			Identity:  a.Identity,
			IPAddress: a.IPAddress,
			UserID:    a.UserID,
			Success:   a.Success,
			Reason:    a.Reason,
			CreatedAt: a.CreatedAt.UTC(),
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
