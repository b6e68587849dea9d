package token

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kubarr/kubarr/internal/security"
)

// TokenSigner signs claims into a compact JWS and verifies them back.
type TokenSigner interface {
	Sign(claims jwt.Claims) (string, error)
	Verify(raw string, claims jwt.Claims) error
}

// RS256Signer implements TokenSigner with an RSA key pair.
type RS256Signer struct {
	key        *rsa.PrivateKey
	keyID      string
	parserOpts []jwt.ParserOption
}

// NewRS256Signer creates a signer for the given key pair. Extra parser
// options are applied on every Verify.
func NewRS256Signer(kp *security.KeyPair, opts ...jwt.ParserOption) *RS256Signer {
	parserOpts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}, opts...)

	return &RS256Signer{
		key:        kp.Private,
		keyID:      kp.KeyID,
		parserOpts: parserOpts,
	}
}

// Sign returns the signed token with the key ID in its header.
func (s *RS256Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.keyID

	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and time-based claims of raw and decodes it into claims.
func (s *RS256Signer) Verify(raw string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return &s.key.PublicKey, nil
	}, s.parserOpts...)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("token is not valid")
	}
	return nil
}
