package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/go-jose/go-jose/v4"
)

// SigningAlgorithm is the JWS algorithm used for every issued token.
const SigningAlgorithm = "RS256"

const rsaKeyBits = 2048

// ErrKeyMismatch is returned when the configured public key does not belong
// to the configured private key.
var ErrKeyMismatch = errors.New("public key does not match private key")

// KeyPair is the process-wide signing key. It is read-only after load.
type KeyPair struct {
	Private   *rsa.PrivateKey
	KeyID     string
	Ephemeral bool
}

// Public returns the RSA public key.
func (k *KeyPair) Public() *rsa.PublicKey {
	return &k.Private.PublicKey
}

// JWKS returns the public half as a JSON Web Key Set.
func (k *KeyPair) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       k.Public(),
			KeyID:     k.KeyID,
			Algorithm: SigningAlgorithm,
			Use:       "sig",
		}},
	}
}

// LoadOrGenerateKeyPair loads the RSA private key at privatePath. When
// publicPath is set the public key there must match. When the private key
// file does not exist an ephemeral key is generated for this process only.
// An empty keyID is replaced by the RFC 7638 thumbprint of the public key.
func LoadOrGenerateKeyPair(privatePath, publicPath, keyID string) (*KeyPair, error) {
	var (
		priv      *rsa.PrivateKey
		ephemeral bool
		err       error
	)

	if privatePath != "" {
		priv, err = loadPrivateKey(privatePath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if priv == nil {
		priv, err = rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
		ephemeral = true
		slog.Warn("generated ephemeral signing key - tokens will be invalid after restart and across replicas",
			"privateKeyPath", privatePath)
	}

	if publicPath != "" && !ephemeral {
		pub, err := loadPublicKey(publicPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		case !pub.Equal(&priv.PublicKey):
			return nil, ErrKeyMismatch
		}
	}

	if keyID == "" {
		keyID, err = thumbprint(&priv.PublicKey)
		if err != nil {
			return nil, err
		}
	}

	return &KeyPair{Private: priv, KeyID: keyID, Ephemeral: ephemeral}, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decoding private key PEM %s", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", path, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key %s is %T, want RSA", path, parsed)
	}
	return key, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decoding public key PEM %s", path)
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key %s: %w", path, err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key %s is %T, want RSA", path, parsed)
	}
	return key, nil
}

func thumbprint(pub *rsa.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("computing key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
