package validation

// MaxInviteDays bounds invite lifetimes.
const MaxInviteDays = 365

// ValidateInviteExpiry validates the optional expires_in_days field.
func ValidateInviteExpiry(days *int) []FieldError {
	if days == nil {
		return nil
	}
	if *days < 1 || *days > MaxInviteDays {
		return []FieldError{{Field: "expires_in_days", Message: "expires_in_days must be between 1 and 365"}}
	}
	return nil
}
