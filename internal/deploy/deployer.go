// Package deploy renders and applies the Kubernetes resources of catalog apps.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/kubarr/kubarr/internal/k8s"
	"github.com/kubarr/kubarr/internal/k8s/template"
)

// Health states reported by NamespaceHealth.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthNotFound  = "not_found"
)

// removalGVRs lists every resource kind Deploy creates, in deletion order.
var removalGVRs = []schema.GroupVersionResource{
	k8s.DeploymentGVR,
	k8s.ServiceGVR,
	k8s.PVCGVR,
	k8s.SecretGVR,
}

// Status is the result of a deployment.
type Status struct {
	App       string    `json:"app"`
	Namespace string    `json:"namespace"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Health describes the rollout state of an installed app.
type Health struct {
	Status            string `json:"status"`
	Healthy           bool   `json:"healthy"`
	Message           string `json:"message"`
	Replicas          int32  `json:"replicas"`
	ReadyReplicas     int32  `json:"ready_replicas"`
	AvailableReplicas int32  `json:"available_replicas"`
	// OAuthCredentials reports whether the app's OAuth2 client Secret exists.
	OAuthCredentials bool `json:"oauth_credentials"`
}

// Deployer installs and removes apps on the cluster.
type Deployer interface {
	Deploy(ctx context.Context, spec Spec) (Status, error)
	Remove(ctx context.Context, app string) (bool, error)
	NamespaceHealth(ctx context.Context, app string) (Health, error)
	Installed(ctx context.Context) ([]string, error)
}

// KubeDeployer implements Deployer with a k8s.ResourceManager. All apps
// share a single namespace.
type KubeDeployer struct {
	manager   k8s.ResourceManager
	namespace string
	now       func() time.Time
}

// New creates a KubeDeployer that deploys into namespace.
func New(manager k8s.ResourceManager, namespace string) *KubeDeployer {
	return &KubeDeployer{manager: manager, namespace: namespace, now: time.Now}
}

// Deploy ensures the namespace exists, then applies the OAuth secret (when
// the spec carries credentials) and the rendered PVCs, Deployment and Service.
func (d *KubeDeployer) Deploy(ctx context.Context, spec Spec) (Status, error) {
	if err := d.manager.Apply(ctx, template.BuildNamespace(d.namespace)); err != nil {
		return Status{}, fmt.Errorf("ensuring namespace %s: %w", d.namespace, err)
	}

	tc := templateContext{Spec: spec, Namespace: d.namespace}
	if spec.OAuth != nil {
		secret := template.BuildOAuthSecret(template.OAuthSecretParams{
			App:          spec.Name,
			Namespace:    d.namespace,
			ClientID:     spec.OAuth.ClientID,
			ClientSecret: spec.OAuth.ClientSecret,
			IssuerURL:    spec.OAuth.IssuerURL,
		})
		if err := d.manager.Apply(ctx, secret); err != nil {
			return Status{}, fmt.Errorf("applying oauth secret for %s: %w", spec.Name, err)
		}
		tc.OAuthSecret = secret.GetName()
	}

	rendered, err := renderManifests(tc)
	if err != nil {
		return Status{}, fmt.Errorf("rendering manifests for %s: %w", spec.Name, err)
	}

	docs := splitYAMLDocuments(rendered)
	if len(docs) == 0 {
		return Status{}, fmt.Errorf("manifests for %s produced no documents", spec.Name)
	}

	for i, doc := range docs {
		obj, err := parseUnstructured(doc)
		if err != nil {
			return Status{}, fmt.Errorf("parsing document %d for %s: %w", i, spec.Name, err)
		}

		injectLabels(obj, spec.Name)

		if err := d.manager.Apply(ctx, obj); err != nil {
			return Status{}, fmt.Errorf("applying document %d (%s/%s) for %s: %w",
				i, obj.GetKind(), obj.GetName(), spec.Name, err)
		}
	}

	slog.Info("app deployed", "app", spec.Name, "namespace", d.namespace, "documents", len(docs))

	return Status{
		App:       spec.Name,
		Namespace: d.namespace,
		Status:    "deployed",
		Message:   fmt.Sprintf("%s deployed", spec.Name),
		Timestamp: d.now().UTC(),
	}, nil
}

// Remove deletes every resource labelled for app. It reports whether
// anything was deleted.
func (d *KubeDeployer) Remove(ctx context.Context, app string) (bool, error) {
	selector := appSelector(app)
	total := 0
	for _, gvr := range removalGVRs {
		n, err := d.manager.DeleteByLabel(ctx, gvr, d.namespace, selector)
		if err != nil {
			return total > 0, fmt.Errorf("removing %s for %s: %w", gvr.Resource, app, err)
		}
		total += n
	}

	if total > 0 {
		slog.Info("app removed", "app", app, "namespace", d.namespace, "resources", total)
	}
	return total > 0, nil
}

// NamespaceHealth reports the rollout state of app's Deployment.
func (d *KubeDeployer) NamespaceHealth(ctx context.Context, app string) (Health, error) {
	st, err := d.manager.GetDeploymentStatus(ctx, d.namespace, app)
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return Health{Status: HealthNotFound, Message: "App is not deployed"}, nil
		}
		return Health{}, fmt.Errorf("checking health of %s: %w", app, err)
	}

	h := Health{
		Replicas:          st.Replicas,
		ReadyReplicas:     st.ReadyReplicas,
		AvailableReplicas: st.AvailableReplicas,
	}
	if st.ReadyReplicas >= st.Replicas && st.AvailableReplicas >= st.Replicas {
		h.Status, h.Healthy, h.Message = HealthHealthy, true, "All replicas healthy"
	} else {
		h.Status, h.Message = HealthUnhealthy, "Some replicas are not ready"
	}

	_, err = d.manager.GetSecret(ctx, d.namespace, template.OAuthSecretName(app))
	switch {
	case err == nil:
		h.OAuthCredentials = true
	case !k8serrors.IsNotFound(err):
		slog.Warn("failed to read oauth secret", "app", app, "error", err)
	}
	return h, nil
}

// Installed returns the sorted names of apps with a kubarr-managed Deployment.
func (d *KubeDeployer) Installed(ctx context.Context) ([]string, error) {
	names, err := d.manager.ListDeploymentNames(ctx, d.namespace, managedSelector())
	if err != nil {
		return nil, fmt.Errorf("listing installed apps: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
