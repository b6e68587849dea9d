package validation

import (
	"github.com/google/uuid"

	"github.com/kubarr/kubarr/internal/registration"
)

// CreateUserRequest mirrors the fields needed for admin user creation.
type CreateUserRequest struct {
	Username string
	Email    string
	Password string
}

// ValidateCreateUserRequest validates the fields of a create user request.
func ValidateCreateUserRequest(req CreateUserRequest) []FieldError {
	return fromAccountError(registration.ValidateAccount(req.Username, req.Email, req.Password))
}

// ParseRoleIDs parses role IDs, reporting each malformed entry.
func ParseRoleIDs(raw []string) ([]uuid.UUID, []FieldError) {
	ids := make([]uuid.UUID, 0, len(raw))
	var errs []FieldError
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			errs = append(errs, FieldError{Field: "role_ids", Message: "role_ids must contain valid UUIDs"})
			continue
		}
		ids = append(ids, id)
	}
	return ids, errs
}
