package deploy

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const (
	labelApp            = "kubarr.io/app"
	labelManagedBy      = "app.kubernetes.io/managed-by"
	labelManagedByValue = "kubarr"
)

// injectLabels adds the mandatory kubarr labels to an object, preserving
// labels set by the manifest.
func injectLabels(obj *unstructured.Unstructured, app string) {
	labels := obj.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[labelApp] = app
	labels[labelManagedBy] = labelManagedByValue
	obj.SetLabels(labels)
}

func appSelector(app string) string {
	return fmt.Sprintf("%s=%s,%s=%s", labelApp, app, labelManagedBy, labelManagedByValue)
}

func managedSelector() string {
	return fmt.Sprintf("%s=%s", labelManagedBy, labelManagedByValue)
}
