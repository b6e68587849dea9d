package template

import "k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

// BuildNamespace creates an unstructured Namespace labeled as managed by kubarr.
func BuildNamespace(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": "v1",
			"kind":       "Namespace",
			"metadata": map[string]any{
				"name": name,
				"labels": map[string]any{
					"app.kubernetes.io/managed-by": "kubarr",
				},
			},
		},
	}
}
