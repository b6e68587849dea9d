package settings

import (
	"strconv"
	"strings"
	"time"
)

// Known setting keys.
const (
	KeyRegistrationEnabled         = "registration_enabled"
	KeyRegistrationRequireApproval = "registration_require_approval"
)

// Setting represents a row in the system_settings table, or a default when
// the row is absent.
type Setting struct {
	Key         string
	Value       string
	Description string
	IsDefault   bool
	UpdatedAt   time.Time
}

// RegistrationSettings is the resolved registration policy.
type RegistrationSettings struct {
	Enabled         bool
	RequireApproval bool
}

// Defaults holds the static fallback values used when no row exists.
type Defaults struct {
	RegistrationEnabled         bool
	RegistrationRequireApproval bool
}

type definition struct {
	key         string
	description string
	value       func(Defaults) string
}

var definitions = []definition{
	{
		key:         KeyRegistrationEnabled,
		description: "Allow new user registration (invites still work when disabled)",
		value:       func(d Defaults) string { return strconv.FormatBool(d.RegistrationEnabled) },
	},
	{
		key:         KeyRegistrationRequireApproval,
		description: "Require admin approval for new registrations",
		value:       func(d Defaults) string { return strconv.FormatBool(d.RegistrationRequireApproval) },
	},
}

func lookup(key string) (definition, bool) {
	for _, d := range definitions {
		if d.key == key {
			return d, true
		}
	}
	return definition{}, false
}

// ParseBool reports whether a stored value means true. "true", "1" and "yes"
// are accepted in any case; everything else is false.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
