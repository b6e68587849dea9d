package template

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// OAuthSecretParams configures the Secret carrying an app's OAuth2 client credentials.
type OAuthSecretParams struct {
	App          string
	Namespace    string
	ClientID     string
	ClientSecret string
	IssuerURL    string
}

// OAuthSecretName returns the name of the credentials Secret for app.
func OAuthSecretName(app string) string {
	return fmt.Sprintf("%s-oauth", app)
}

// BuildOAuthSecret creates an unstructured Opaque Secret holding the client
// credentials an app uses to log users in through kubarr.
func BuildOAuthSecret(params OAuthSecretParams) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": "v1",
			"kind":       "Secret",
			"metadata": map[string]any{
				"name":      OAuthSecretName(params.App),
				"namespace": params.Namespace,
				"labels": map[string]any{
					"app.kubernetes.io/managed-by": "kubarr",
					"kubarr.io/app":                params.App,
				},
			},
			"type": "Opaque",
			"stringData": map[string]any{
				"client-id":     params.ClientID,
				"client-secret": params.ClientSecret,
				"issuer-url":    params.IssuerURL,
			},
		},
	}
}
