package security

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// PKCE challenge methods (RFC 7636).
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// PKCEChallenge derives the S256 code_challenge for verifier:
// BASE64URL-NOPAD(SHA256(verifier)).
func PKCEChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// VerifyPKCE reports whether verifier satisfies challenge under method.
// Unknown methods and empty verifiers fail closed.
func VerifyPKCE(verifier, challenge, method string) bool {
	if verifier == "" || challenge == "" {
		return false
	}

	var computed string
	switch method {
	case PKCEMethodS256:
		computed = PKCEChallenge(verifier)
	case PKCEMethodPlain:
		computed = verifier
	default:
		return false
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// SupportedPKCEMethod reports whether method is one the server accepts.
func SupportedPKCEMethod(method string) bool {
	return method == PKCEMethodS256 || method == PKCEMethodPlain
}
