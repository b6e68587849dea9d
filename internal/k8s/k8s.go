package k8s

import (
	"context"
	"errors"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ErrUnavailable is returned by Unavailable for every operation.
var ErrUnavailable = errors.New("kubernetes cluster is not available")

// HealthChecker provides Kubernetes connectivity checking.
type HealthChecker interface {
	CheckConnectivity(ctx context.Context) ConnectivityStatus
}

// Disconnected is a HealthChecker for processes started without cluster access.
type Disconnected struct{}

// CheckConnectivity always reports the cluster as unreachable.
func (Disconnected) CheckConnectivity(context.Context) ConnectivityStatus {
	return ConnectivityStatus{Connected: false}
}

// Unavailable is a ResourceManager for processes started without cluster
// access. Every call fails with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Apply(context.Context, *unstructured.Unstructured) error {
	return ErrUnavailable
}

func (Unavailable) DeleteByLabel(context.Context, schema.GroupVersionResource, string, string) (int, error) {
	return 0, ErrUnavailable
}

func (Unavailable) GetDeploymentStatus(context.Context, string, string) (DeploymentStatus, error) {
	return DeploymentStatus{}, ErrUnavailable
}

func (Unavailable) ListDeploymentNames(context.Context, string, string) ([]string, error) {
	return nil, ErrUnavailable
}

func (Unavailable) GetSecret(context.Context, string, string) (map[string][]byte, error) {
	return nil, ErrUnavailable
}
