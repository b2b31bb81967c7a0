package handlers

import (
	"net/http"

	"github.com/BradenHooton/warden/internal/session"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// FlashResponse carries the one-shot message an access check left behind
type FlashResponse struct {
	Error string `json:"error,omitempty"`
}

// Flash serves the error destination the gate redirects to. The message is
// removed from the session as it is read.
func Flash(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if s == nil {
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	msg, _ := s.Pull(session.KeyError)
	pkghttp.WriteJSON(w, http.StatusOK, FlashResponse{Error: msg})
}
