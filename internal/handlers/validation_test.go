package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequest_UsesJSONFieldNames(t *testing.T) {
	err := ValidateRequest(LoginRequest{Email: "nope", Password: "x"})
	assert.EqualError(t, err, "validation failed: email: must be a valid email address")

	err = ValidateRequest(LoginRequest{Username: "alice"})
	assert.EqualError(t, err, "validation failed: password: this field is required")

	assert.NoError(t, ValidateRequest(LoginRequest{Username: "alice", Password: "x"}))
}

func TestLoginRequest_Credentials(t *testing.T) {
	creds := LoginRequest{Email: " Bob@Example.COM ", Username: "  ", Password: " spaced "}.credentials()
	assert.Equal(t, map[string]string{"email": "bob@example.com", "password": " spaced "}, map[string]string(creds))
}
