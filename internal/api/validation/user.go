package validation

import (
	"strings"

	"github.com/opsboard/opsboard/internal/auth"
)

// CreateUserRequest mirrors the fields needed for create user validation.
type CreateUserRequest struct {
	Name     string
	Email    string
	Role     string
	Password string
}

// ValidateCreateUserRequest validates the fields of a create user request.
func ValidateCreateUserRequest(req CreateUserRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	} else if !emailRegex.MatchString(email) {
		errs = append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
	}

	if !auth.ValidRole(req.Role) {
		errs = append(errs, FieldError{Field: "role", Message: "role must be admin, editor or viewer"})
	}

	if len(req.Password) < 8 {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}

	return errs
}

// UpdateUserRequest mirrors the fields of a user patch; nil means unchanged.
type UpdateUserRequest struct {
	Role   *string
	Active *bool
}

// ValidateUpdateUserRequest validates a user patch.
func ValidateUpdateUserRequest(req UpdateUserRequest) []FieldError {
	var errs []FieldError

	if req.Role == nil && req.Active == nil {
		errs = append(errs, FieldError{Field: "role", Message: "at least one of role or active is required"})
		return errs
	}

	if req.Role != nil && !auth.ValidRole(*req.Role) {
		errs = append(errs, FieldError{Field: "role", Message: "role must be admin, editor or viewer"})
	}

	return errs
}
