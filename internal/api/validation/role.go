package validation

import (
	"fmt"
	"strings"
)

// RoleRequest mirrors the fields needed for role validation.
// Nil fields are not validated.
type RoleRequest struct {
	Name        *string
	Description *string
	Apps        []string
}

// ValidateRoleRequest validates a role create or update. known reports
// whether an app name exists in the catalog.
func ValidateRoleRequest(req RoleRequest, requireName bool, known func(string) bool) []FieldError {
	var errs []FieldError

	switch {
	case req.Name == nil:
		if requireName {
			errs = append(errs, FieldError{Field: "name", Message: "name is required"})
		}
	case !roleNameRegex.MatchString(strings.TrimSpace(*req.Name)):
		errs = append(errs, FieldError{Field: "name", Message: "name must be 2-50 lowercase letters, digits, '_' or '-', starting with a letter"})
	}

	if req.Description != nil && len(*req.Description) > 500 {
		errs = append(errs, FieldError{Field: "description", Message: "description must be at most 500 characters"})
	}

	for _, app := range req.Apps {
		if !known(app) {
			errs = append(errs, FieldError{Field: "app_names", Message: fmt.Sprintf("unknown app %q", app)})
		}
	}

	return errs
}
