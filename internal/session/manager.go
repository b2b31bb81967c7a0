package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// CookieConfig holds the session cookie settings
type CookieConfig struct {
	Name     string
	Domain   string // Empty string = current host only
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// Manager loads the session named by the request cookie and writes it back
// before the response goes out.
type Manager struct {
	store  Store
	ttl    time.Duration
	cookie CookieConfig
	logger *slog.Logger
}

// NewManager creates a new session manager
func NewManager(store Store, ttl time.Duration, cookie CookieConfig, logger *slog.Logger) *Manager {
	if cookie.Name == "" {
		cookie.Name = "warden_session"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		cookie: cookie,
		logger: logger,
	}
}

// Load returns the session for the request, or a fresh one when the cookie is
// missing or names an expired session
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookie.Name)
	if err != nil || cookie.Value == "" {
		return New()
	}

	values, err := m.store.Load(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return New()
		}
		return nil, err
	}
	return newSession(cookie.Value, values), nil
}

// Commit persists a dirty session, then destroys the id it was regenerated
// from. A failed save leaves the old id untouched.
func (m *Manager) Commit(ctx context.Context, s *Session) error {
	if s.dirty {
		if err := m.store.Save(ctx, s.id, s.values, m.ttl); err != nil {
			return err
		}
		s.dirty = false
	}
	if s.oldID != "" {
		if err := m.store.Delete(ctx, s.oldID); err != nil {
			return err
		}
		s.oldID = ""
	}
	return nil
}

// Middleware attaches the request's session to the context
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Load(r)
		if err != nil {
			m.logger.Error("failed to load session", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "internal server error")
			return
		}

		cw := &commitWriter{ResponseWriter: w, manager: m, session: s, ctx: r.Context()}
		next.ServeHTTP(cw, r.WithContext(NewContext(r.Context(), s)))

		if !cw.committed {
			cw.commit()
			return
		}
		// late changes can still be stored, the cookie is already out
		if s.dirty && !cw.failed {
			if err := m.Commit(r.Context(), s); err != nil {
				m.logger.Error("failed to save session", slog.Any("error", err))
			}
		}
	})
}

func (m *Manager) writeCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    s.id,
		Path:     m.cookie.Path,
		Domain:   m.cookie.Domain,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.cookie.SameSite,
	})
}

// commitWriter saves the session and sets its cookie right before the first
// byte of the response is written. When the save fails the handler's response
// is replaced by a 500 so a state change is never reported as done.
type commitWriter struct {
	http.ResponseWriter
	manager   *Manager
	session   *Session
	ctx       context.Context
	committed bool
	failed    bool
}

func (w *commitWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true

	// cookie only needs to change when the stored state or the id changed
	changed := w.session.dirty || w.session.oldID != ""
	if err := w.manager.Commit(w.ctx, w.session); err != nil {
		w.manager.logger.Error("failed to save session", slog.Any("error", err))
		w.failed = true
		pkghttp.WriteInternalError(w.ResponseWriter, "internal server error")
		return
	}
	if changed {
		w.manager.writeCookie(w.ResponseWriter, w.session)
	}
}

func (w *commitWriter) WriteHeader(statusCode int) {
	w.commit()
	if w.failed {
		return
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	w.commit()
	if w.failed {
		return len(data), nil
	}
	return w.ResponseWriter.Write(data)
}

func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
