package response

import "net/http"

// RFC 6749 error codes.
const (
	OAuthInvalidRequest          = "invalid_request"
	OAuthInvalidClient           = "invalid_client"
	OAuthInvalidGrant            = "invalid_grant"
	OAuthUnsupportedGrantType    = "unsupported_grant_type"
	OAuthUnsupportedResponseType = "unsupported_response_type"
	OAuthInvalidToken            = "invalid_token"
	OAuthServerError             = "server_error"
	OAuthSlowDown                = "slow_down"
)

// OAuthError is the RFC 6749 error body.
type OAuthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// OAuthJSON writes an OAuth2 protocol response. Protocol responses carry
// credentials or credential state and are never cached.
func OAuthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, status, body)
}

// OAuthErr writes an RFC 6749 error response.
func OAuthErr(w http.ResponseWriter, status int, code, description string) {
	OAuthJSON(w, status, OAuthError{Error: code, Description: description})
}

// OAuthUnauthorized writes a 401 with a Bearer challenge.
func OAuthUnauthorized(w http.ResponseWriter, code, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	OAuthErr(w, http.StatusUnauthorized, code, description)
}
