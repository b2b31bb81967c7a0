// Package lang holds the user-facing message catalog.
package lang

import "fmt"

// Message keys
const (
	LoginBadAttempt         = "login.bad_attempt"
	LoginInvalidPassword    = "login.invalid_password"
	UserIsBanned            = "user.is_banned"
	ActivationNotActivated  = "activation.not_activated"
	ActivationResend        = "activation.resend"
	InsufficientPermissions = "exception.insufficient_permissions"
	TicketInvalid           = "login.ticket_invalid"
)

var english = map[string]string{
	LoginBadAttempt:         "Unable to log you in. Please check your credentials.",
	LoginInvalidPassword:    "Unable to log you in. Please check your password.",
	UserIsBanned:            "This account has been banned. Contact the administrator.",
	ActivationNotActivated:  "This account is not yet activated.",
	ActivationResend:        "Resend the activation message: %s",
	InsufficientPermissions: "You do not have sufficient permissions to access that page.",
	TicketInvalid:           "Your login request has expired. Please log in again.",
}

// Line returns the message for key, formatted with args when given.
// Unknown keys are returned verbatim.
func Line(key string, args ...any) string {
	msg, ok := english[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
