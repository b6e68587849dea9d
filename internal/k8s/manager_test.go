package k8s

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	clientgotesting "k8s.io/client-go/testing"

	"github.com/kubarr/kubarr/internal/k8s/template"
)

// newTestManager creates a Manager backed by a fake dynamic client.
func newTestManager(objects ...runtime.Object) (*Manager, *dynamicfake.FakeDynamicClient) {
	scheme := runtime.NewScheme()
	for _, gvk := range []schema.GroupVersionKind{
		{Group: "", Version: "v1", Kind: "Namespace"},
		{Group: "apps", Version: "v1", Kind: "Deployment"},
		{Group: "", Version: "v1", Kind: "Service"},
		{Group: "", Version: "v1", Kind: "PersistentVolumeClaim"},
		{Group: "", Version: "v1", Kind: "Secret"},
	} {
		scheme.AddKnownTypeWithName(gvk, &unstructured.Unstructured{})
		scheme.AddKnownTypeWithName(gvk.GroupVersion().WithKind(gvk.Kind+"List"), &unstructured.UnstructuredList{})
	}

	fakeClient := dynamicfake.NewSimpleDynamicClient(scheme, objects...)
	return NewManagerFor(fakeClient), fakeClient
}

func toUnstructured(t *testing.T, obj runtime.Object, gvk schema.GroupVersionKind) *unstructured.Unstructured {
	t.Helper()
	m, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	require.NoError(t, err)
	u := &unstructured.Unstructured{Object: m}
	u.SetGroupVersionKind(gvk)
	return u
}

func deployment(t *testing.T, name string, replicas, ready int32, labels map[string]string) *unstructured.Unstructured {
	t.Helper()
	d := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "media", Labels: labels},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
		Status:     appsv1.DeploymentStatus{ReadyReplicas: ready, AvailableReplicas: ready},
	}
	return toUnstructured(t, d, schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"})
}

// --- Apply Tests ---

func TestApply_CreateSecret(t *testing.T) {
	mgr, fakeClient := newTestManager()
	ctx := context.Background()

	secret := template.BuildOAuthSecret(template.OAuthSecretParams{
		App:          "radarr",
		Namespace:    "media",
		ClientID:     "radarr-oauth",
		ClientSecret: "s3cret",
	})

	require.NoError(t, mgr.Apply(ctx, secret))

	obj, err := fakeClient.Resource(SecretGVR).Namespace("media").Get(ctx, "radarr-oauth", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Secret", obj.GetKind())
	assert.Equal(t, "radarr", obj.GetLabels()["kubarr.io/app"])
	id, _, _ := unstructured.NestedString(obj.Object, "stringData", "client-id")
	assert.Equal(t, "radarr-oauth", id)
}

func TestApply_UpdateExisting(t *testing.T) {
	ctx := context.Background()

	existing := template.BuildOAuthSecret(template.OAuthSecretParams{
		App: "radarr", Namespace: "media", ClientID: "radarr-oauth", ClientSecret: "old",
	})
	mgr, fakeClient := newTestManager(existing)

	updated := template.BuildOAuthSecret(template.OAuthSecretParams{
		App: "radarr", Namespace: "media", ClientID: "radarr-oauth", ClientSecret: "new",
	})
	require.NoError(t, mgr.Apply(ctx, updated))

	obj, err := fakeClient.Resource(SecretGVR).Namespace("media").Get(ctx, "radarr-oauth", metav1.GetOptions{})
	require.NoError(t, err)
	secret, _, _ := unstructured.NestedString(obj.Object, "stringData", "client-secret")
	assert.Equal(t, "new", secret)
}

func TestApply_NamespaceIsClusterScopedAndIdempotent(t *testing.T) {
	mgr, fakeClient := newTestManager()
	ctx := context.Background()

	require.NoError(t, mgr.Apply(ctx, template.BuildNamespace("media")))
	require.NoError(t, mgr.Apply(ctx, template.BuildNamespace("media")))

	obj, err := fakeClient.Resource(NamespaceGVR).Get(ctx, "media", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "kubarr", obj.GetLabels()["app.kubernetes.io/managed-by"])
}

func TestApply_UnknownKind(t *testing.T) {
	mgr, _ := newTestManager()

	obj := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "postgresql.cnpg.io/v1",
		"kind":       "Cluster",
		"metadata":   map[string]any{"name": "x", "namespace": "media"},
	}}
	err := mgr.Apply(context.Background(), obj)
	assert.ErrorContains(t, err, "unknown resource kind")
}

func TestApply_Error(t *testing.T) {
	mgr, fakeClient := newTestManager()

	fakeClient.PrependReactor("create", "secrets", func(action clientgotesting.Action) (bool, runtime.Object, error) {
		return true, nil, assert.AnError
	})

	err := mgr.Apply(context.Background(), template.BuildOAuthSecret(template.OAuthSecretParams{App: "radarr", Namespace: "media"}))
	assert.Error(t, err)
}

// --- DeleteByLabel Tests ---

func TestDeleteByLabel(t *testing.T) {
	ctx := context.Background()
	mgr, fakeClient := newTestManager(
		deployment(t, "radarr", 1, 1, map[string]string{"kubarr.io/app": "radarr"}),
		deployment(t, "sonarr", 1, 1, map[string]string{"kubarr.io/app": "sonarr"}),
	)

	n, err := mgr.DeleteByLabel(ctx, DeploymentGVR, "media", "kubarr.io/app=radarr")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = fakeClient.Resource(DeploymentGVR).Namespace("media").Get(ctx, "radarr", metav1.GetOptions{})
	assert.Error(t, err)
	_, err = fakeClient.Resource(DeploymentGVR).Namespace("media").Get(ctx, "sonarr", metav1.GetOptions{})
	assert.NoError(t, err)

	n, err = mgr.DeleteByLabel(ctx, DeploymentGVR, "media", "kubarr.io/app=radarr")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteByLabel_Error(t *testing.T) {
	mgr, fakeClient := newTestManager(
		deployment(t, "radarr", 1, 1, map[string]string{"kubarr.io/app": "radarr"}),
	)

	fakeClient.PrependReactor("delete", "deployments", func(action clientgotesting.Action) (bool, runtime.Object, error) {
		return true, nil, assert.AnError
	})

	_, err := mgr.DeleteByLabel(context.Background(), DeploymentGVR, "media", "kubarr.io/app=radarr")
	assert.Error(t, err)
}

// --- GetDeploymentStatus Tests ---

func TestGetDeploymentStatus(t *testing.T) {
	mgr, _ := newTestManager(
		deployment(t, "radarr", 2, 2, nil),
		deployment(t, "sonarr", 1, 0, nil),
	)
	ctx := context.Background()

	status, err := mgr.GetDeploymentStatus(ctx, "media", "radarr")
	require.NoError(t, err)
	assert.True(t, status.Ready())
	assert.Equal(t, int32(2), status.ReadyReplicas)

	status, err = mgr.GetDeploymentStatus(ctx, "media", "sonarr")
	require.NoError(t, err)
	assert.False(t, status.Ready())

	_, err = mgr.GetDeploymentStatus(ctx, "media", "nonexistent")
	assert.Error(t, err)
}

func TestListDeploymentNames(t *testing.T) {
	mgr, _ := newTestManager(
		deployment(t, "radarr", 1, 1, map[string]string{"app.kubernetes.io/managed-by": "kubarr"}),
		deployment(t, "other", 1, 1, map[string]string{"app.kubernetes.io/managed-by": "helm"}),
	)

	names, err := mgr.ListDeploymentNames(context.Background(), "media", "app.kubernetes.io/managed-by=kubarr")
	require.NoError(t, err)
	assert.Equal(t, []string{"radarr"}, names)
}

// --- GetSecret Tests ---

func TestGetSecret_Success(t *testing.T) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "radarr-oauth", Namespace: "media"},
		Data: map[string][]byte{
			"client-id":     []byte("radarr-oauth"),
			"client-secret": []byte("s3cret"),
		},
	}
	mgr, _ := newTestManager(toUnstructured(t, secret, schema.GroupVersionKind{Version: "v1", Kind: "Secret"}))

	data, err := mgr.GetSecret(context.Background(), "media", "radarr-oauth")
	require.NoError(t, err)
	assert.Equal(t, []byte("radarr-oauth"), data["client-id"])
	assert.Equal(t, []byte("s3cret"), data["client-secret"])
}

func TestGetSecret_NotFound(t *testing.T) {
	mgr, _ := newTestManager()

	_, err := mgr.GetSecret(context.Background(), "media", "nonexistent-secret")
	assert.Error(t, err)
}
