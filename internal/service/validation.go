package service

import (
	"strings"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt input limit
	maxUsernameLength = 64
	maxFieldLength    = 255
)

// validateCreate checks the creation request field by field. A non-empty
// result map means the request is rejected before anything is written.
func validateCreate(req *AdminCreateRequest) map[string]string {
	fieldErrs := make(map[string]string)

	username := strings.TrimSpace(req.Username)
	switch {
	case username == "":
		fieldErrs["username"] = "username is required"
	case len(username) > maxUsernameLength:
		fieldErrs["username"] = "username is too long"
	case strings.ContainsAny(username, " \t"):
		fieldErrs["username"] = "username must not contain whitespace"
	}

	switch {
	case req.Password == "":
		fieldErrs["password"] = "password is required"
	case len(req.Password) < minPasswordLength:
		fieldErrs["password"] = "password must be at least 8 characters"
	case len(req.Password) > maxPasswordLength:
		fieldErrs["password"] = "password is too long"
	case req.Password != req.PasswordConfirm:
		fieldErrs["password_confirm"] = "passwords do not match"
	}

	if req.Email != "" && !strings.Contains(req.Email, "@") {
		fieldErrs["email"] = "email address is invalid"
	}

	if len(req.FullName) > maxFieldLength {
		fieldErrs["full_name"] = "full name is too long"
	}

	if len(fieldErrs) == 0 {
		return nil
	}
	return fieldErrs
}
