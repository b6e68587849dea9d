package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubarr/kubarr/internal/k8s/template"
)

func TestBuildNamespace(t *testing.T) {
	ns := template.BuildNamespace("media")

	assert.Equal(t, "v1", ns.GetAPIVersion())
	assert.Equal(t, "Namespace", ns.GetKind())
	assert.Equal(t, "media", ns.GetName())
	assert.Empty(t, ns.GetNamespace())
	assert.Equal(t, "kubarr", ns.GetLabels()["app.kubernetes.io/managed-by"])
}

func TestBuildOAuthSecret(t *testing.T) {
	// Arrange
	params := template.OAuthSecretParams{
		App:          "radarr",
		Namespace:    "media",
		ClientID:     "radarr-oauth",
		ClientSecret: "s3cr3t",
		IssuerURL:    "https://kubarr.example.com/auth",
	}

	// Act
	secret := template.BuildOAuthSecret(params)

	// Assert: GVK and metadata
	assert.Equal(t, "v1", secret.GetAPIVersion())
	assert.Equal(t, "Secret", secret.GetKind())
	assert.Equal(t, "radarr-oauth", secret.GetName())
	assert.Equal(t, "media", secret.GetNamespace())

	labels := secret.GetLabels()
	assert.Equal(t, "kubarr", labels["app.kubernetes.io/managed-by"])
	assert.Equal(t, "radarr", labels["kubarr.io/app"])

	// Assert: payload
	assert.Equal(t, "Opaque", secret.Object["type"])
	data, ok := secret.Object["stringData"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "radarr-oauth", data["client-id"])
	assert.Equal(t, "s3cr3t", data["client-secret"])
	assert.Equal(t, "https://kubarr.example.com/auth", data["issuer-url"])
}

func TestOAuthSecretName(t *testing.T) {
	assert.Equal(t, "sonarr-oauth", template.OAuthSecretName("sonarr"))
}
