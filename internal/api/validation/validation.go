package validation

import (
	"errors"
	"regexp"

	"github.com/kubarr/kubarr/internal/registration"
)

// roleNameRegex matches role names: lowercase, starting with a letter.
var roleNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,49}$`)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// fromAccountError converts an account validation failure into field errors.
// Errors of other kinds yield nil.
func fromAccountError(err error) []FieldError {
	var verr *registration.ValidationError
	if errors.As(err, &verr) {
		return []FieldError{{Field: verr.Field, Message: verr.Message}}
	}
	return nil
}
