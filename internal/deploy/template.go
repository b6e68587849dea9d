package deploy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigsyaml "sigs.k8s.io/yaml"
)

//go:embed manifests.yaml.tmpl
var manifestTemplate string

var manifests = template.Must(template.New("app").Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}).Parse(manifestTemplate))

// templateContext is the data passed to the manifest template.
type templateContext struct {
	Spec
	Namespace   string
	OAuthSecret string
}

// renderManifests executes the manifest template for spec.
func renderManifests(ctx templateContext) (string, error) {
	var buf bytes.Buffer
	if err := manifests.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("executing manifest template: %w", err)
	}
	return buf.String(), nil
}

// splitYAMLDocuments splits a multi-document YAML string on "---" separators.
// Empty documents are discarded.
func splitYAMLDocuments(yaml string) []string {
	parts := strings.Split(yaml, "\n---")
	var docs []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || trimmed == "---" {
			continue
		}
		docs = append(docs, trimmed)
	}
	return docs
}

// parseUnstructured converts a single YAML document into an unstructured object.
func parseUnstructured(yamlDoc string) (*unstructured.Unstructured, error) {
	jsonBytes, err := sigsyaml.YAMLToJSON([]byte(yamlDoc))
	if err != nil {
		return nil, fmt.Errorf("converting YAML to JSON: %w", err)
	}

	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(jsonBytes); err != nil {
		return nil, fmt.Errorf("unmarshalling JSON: %w", err)
	}

	return obj, nil
}
