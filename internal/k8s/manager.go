package k8s

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

var (
	NamespaceGVR  = schema.GroupVersionResource{Group: "", Version: "v1", Resource: "namespaces"}
	DeploymentGVR = schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}
	ServiceGVR    = schema.GroupVersionResource{Group: "", Version: "v1", Resource: "services"}
	PVCGVR        = schema.GroupVersionResource{Group: "", Version: "v1", Resource: "persistentvolumeclaims"}
	SecretGVR     = schema.GroupVersionResource{Group: "", Version: "v1", Resource: "secrets"}
)

// kindToGVR maps apiVersion/kind combinations to their GVR.
var kindToGVR = map[string]schema.GroupVersionResource{
	"v1/Namespace":             NamespaceGVR,
	"apps/v1/Deployment":       DeploymentGVR,
	"v1/Service":               ServiceGVR,
	"v1/PersistentVolumeClaim": PVCGVR,
	"v1/Secret":                SecretGVR,
}

// DeploymentStatus summarises a Deployment's rollout.
type DeploymentStatus struct {
	Replicas          int32
	ReadyReplicas     int32
	AvailableReplicas int32
}

// Ready reports whether every desired replica is ready.
func (s DeploymentStatus) Ready() bool {
	return s.Replicas > 0 && s.ReadyReplicas >= s.Replicas
}

// ResourceManager manages kubarr's Kubernetes resources.
type ResourceManager interface {
	Apply(ctx context.Context, obj *unstructured.Unstructured) error
	DeleteByLabel(ctx context.Context, gvr schema.GroupVersionResource, namespace, selector string) (int, error)
	GetDeploymentStatus(ctx context.Context, namespace, name string) (DeploymentStatus, error)
	ListDeploymentNames(ctx context.Context, namespace, selector string) ([]string, error)
	GetSecret(ctx context.Context, namespace, name string) (map[string][]byte, error)
}

// Manager implements ResourceManager using the Kubernetes dynamic client.
type Manager struct {
	dynamic dynamic.Interface
}

// NewManager creates a ResourceManager from the existing Client.
func (c *Client) NewManager() *Manager {
	return &Manager{dynamic: c.dynamic}
}

// NewManagerFor creates a Manager on an arbitrary dynamic client.
func NewManagerFor(client dynamic.Interface) *Manager {
	return &Manager{dynamic: client}
}

// GVRFor derives the GroupVersionResource of a supported object.
func GVRFor(obj *unstructured.Unstructured) (schema.GroupVersionResource, error) {
	key := obj.GetAPIVersion() + "/" + obj.GetKind()
	gvr, ok := kindToGVR[key]
	if !ok {
		return schema.GroupVersionResource{}, fmt.Errorf("unknown resource kind %s (apiVersion: %s)", obj.GetKind(), obj.GetAPIVersion())
	}
	return gvr, nil
}

// Apply creates a resource; if it already exists, it updates it. Namespaces
// are never updated.
func (m *Manager) Apply(ctx context.Context, obj *unstructured.Unstructured) error {
	gvr, err := GVRFor(obj)
	if err != nil {
		return err
	}

	namespace := obj.GetNamespace()
	name := obj.GetName()
	resource := m.resource(gvr, namespace)

	_, err = resource.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return nil
	}

	if !k8serrors.IsAlreadyExists(err) {
		return fmt.Errorf("creating %s %s/%s: %w", gvr.Resource, namespace, name, err)
	}
	if gvr == NamespaceGVR {
		return nil
	}

	existing, err := resource.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("getting existing %s %s/%s: %w", gvr.Resource, namespace, name, err)
	}

	obj.SetResourceVersion(existing.GetResourceVersion())
	_, err = resource.Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("updating %s %s/%s: %w", gvr.Resource, namespace, name, err)
	}

	return nil
}

// DeleteByLabel deletes every resource of gvr in namespace matching selector
// and returns how many were deleted. Resources that vanish concurrently are ignored.
func (m *Manager) DeleteByLabel(ctx context.Context, gvr schema.GroupVersionResource, namespace, selector string) (int, error) {
	resource := m.resource(gvr, namespace)

	list, err := resource.List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing %s in %s: %w", gvr.Resource, namespace, err)
	}

	deleted := 0
	for _, item := range list.Items {
		err := resource.Delete(ctx, item.GetName(), metav1.DeleteOptions{})
		if err != nil {
			if k8serrors.IsNotFound(err) {
				continue
			}
			return deleted, fmt.Errorf("deleting %s %s/%s: %w", gvr.Resource, namespace, item.GetName(), err)
		}
		deleted++
	}
	return deleted, nil
}

// GetDeploymentStatus reads the replica counts of a Deployment.
func (m *Manager) GetDeploymentStatus(ctx context.Context, namespace, name string) (DeploymentStatus, error) {
	obj, err := m.dynamic.Resource(DeploymentGVR).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return DeploymentStatus{}, fmt.Errorf("getting deployment %s/%s: %w", namespace, name, err)
	}

	var deploy appsv1.Deployment
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &deploy); err != nil {
		return DeploymentStatus{}, fmt.Errorf("converting deployment %s/%s: %w", namespace, name, err)
	}

	replicas := int32(1)
	if deploy.Spec.Replicas != nil {
		replicas = *deploy.Spec.Replicas
	}
	return DeploymentStatus{
		Replicas:          replicas,
		ReadyReplicas:     deploy.Status.ReadyReplicas,
		AvailableReplicas: deploy.Status.AvailableReplicas,
	}, nil
}

// ListDeploymentNames returns the names of Deployments in namespace matching selector.
func (m *Manager) ListDeploymentNames(ctx context.Context, namespace, selector string) ([]string, error) {
	list, err := m.dynamic.Resource(DeploymentGVR).Namespace(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("listing deployments in %s: %w", namespace, err)
	}

	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.GetName())
	}
	return names, nil
}

// GetSecret reads a Kubernetes Secret and returns its data.
func (m *Manager) GetSecret(ctx context.Context, namespace, name string) (map[string][]byte, error) {
	obj, err := m.dynamic.Resource(SecretGVR).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting secret %s/%s: %w", namespace, name, err)
	}

	var secret corev1.Secret
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &secret); err != nil {
		return nil, fmt.Errorf("converting secret %s/%s: %w", namespace, name, err)
	}

	return secret.Data, nil
}

func (m *Manager) resource(gvr schema.GroupVersionResource, namespace string) dynamic.ResourceInterface {
	if namespace == "" {
		return m.dynamic.Resource(gvr)
	}
	return m.dynamic.Resource(gvr).Namespace(namespace)
}
