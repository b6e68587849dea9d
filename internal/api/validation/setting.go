package validation

import "strings"

var boolValues = map[string]bool{"true": true, "false": true, "1": true, "0": true, "yes": true, "no": true}

// ValidateSettingValue checks a value for a boolean setting.
func ValidateSettingValue(value string) []FieldError {
	if !boolValues[strings.ToLower(strings.TrimSpace(value))] {
		return []FieldError{{Field: "value", Message: "value must be one of true, false, 1, 0, yes, no"}}
	}
	return nil
}
