package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// secretBytes is the entropy carried by authorization codes, client secrets
// and invite codes (256 bits).
const secretBytes = 32

// GenerateRandomString returns n random bytes encoded as unpadded base64url.
func GenerateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateAuthorizationCode returns a new single-use authorization code.
func GenerateAuthorizationCode() (string, error) {
	return GenerateRandomString(secretBytes)
}

// GenerateClientSecret returns a new OAuth2 client secret.
func GenerateClientSecret() (string, error) {
	return GenerateRandomString(secretBytes)
}

// GenerateInviteCode returns a new registration invite code.
func GenerateInviteCode() (string, error) {
	return GenerateRandomString(secretBytes)
}
