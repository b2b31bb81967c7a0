// Package session keeps per-browser key/value state behind a cookie-held id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgauth "github.com/BradenHooton/warden/pkg/auth"
)

// Well-known session keys
const (
	KeyLoggedIn    = "logged_in"
	KeyRedirectURL = "redirect_url"
	KeyError       = "error"
	KeyLoginTicket = "login_ticket" // id of the pending login ticket issued to this browser
)

const idBytes = 32

// ErrNotFound is returned by a Store when no live session exists for an id
var ErrNotFound = errors.New("session not found")

// Store persists session values by id.
type Store interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Session is the state of one browser session for the lifetime of a request.
// It is not safe for concurrent use.
type Session struct {
	id     string
	oldID  string
	values map[string]string
	dirty  bool
}

// New creates an empty session with a fresh id
func New() (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	return &Session{id: id, values: map[string]string{}}, nil
}

func newSession(id string, values map[string]string) *Session {
	if values == nil {
		values = map[string]string{}
	}
	return &Session{id: id, values: values}
}

func newID() (string, error) {
	id, err := pkgauth.GenerateRandomToken(idBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return id, nil
}

// ID returns the current session id
func (s *Session) ID() string {
	return s.id
}

// Get returns the value stored under key
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key
func (s *Session) Set(key, value string) {
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

// Delete removes key
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Pull returns the value under key and removes it. Used for flash data.
func (s *Session) Pull(key string) (string, bool) {
	v, ok := s.values[key]
	if ok {
		s.Delete(key)
	}
	return v, ok
}

// Regenerate moves the session to a new id. The old id is destroyed on commit.
func (s *Session) Regenerate() error {
	id, err := newID()
	if err != nil {
		return err
	}
	if s.oldID == "" {
		s.oldID = s.id
	}
	s.id = id
	s.dirty = true
	return nil
}

// IsDirty reports whether the session has unsaved changes
func (s *Session) IsDirty() bool {
	return s.dirty
}

// Values returns a copy of the stored values
func (s *Session) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or nil
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
