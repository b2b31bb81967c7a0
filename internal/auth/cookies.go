package auth

import (
	"net/http"
	"time"
)

// DefaultRememberCookieName is used when RememberCookieConfig.Name is empty
const DefaultRememberCookieName = "remember"

// RememberCookieConfig holds remember-me cookie settings
type RememberCookieConfig struct {
	Name     string
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite http.SameSite
}

func (c RememberCookieConfig) name() string {
	if c.Name == "" {
		return DefaultRememberCookieName
	}
	return c.Name
}

// SetRememberCookie sets the selector:validator pair in an httpOnly cookie
func SetRememberCookie(w http.ResponseWriter, value string, ttl time.Duration, config RememberCookieConfig) {
	cookie := &http.Cookie{
		Name:     config.name(),
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true, // never readable from JavaScript
		Secure:   config.Secure,
		SameSite: config.SameSite,
	}
	http.SetCookie(w, cookie)
}

// ClearRememberCookie expires the remember cookie
func ClearRememberCookie(w http.ResponseWriter, config RememberCookieConfig) {
	cookie := &http.Cookie{
		Name:     config.name(),
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: config.SameSite,
	}
	http.SetCookie(w, cookie)
}

// GetRememberCookie returns the remember cookie value, or "" when absent
func GetRememberCookie(r *http.Request, config RememberCookieConfig) string {
	cookie, err := r.Cookie(config.name())
	if err != nil {
		return ""
	}
	return cookie.Value
}
