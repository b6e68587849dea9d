package deploy

import (
	"fmt"
	"regexp"
	"sort"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/kubarr/kubarr/internal/catalog"
)

const maxReplicas = 10

var envNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Overrides is the typed patch an installer may apply on top of a catalog
// entry. Nil fields keep the catalog value.
type Overrides struct {
	Replicas      *int32            `json:"replicas,omitempty"`
	Image         *string           `json:"image,omitempty"`
	Port          *int              `json:"port,omitempty"`
	CPURequest    *string           `json:"cpu_request,omitempty"`
	CPULimit      *string           `json:"cpu_limit,omitempty"`
	MemoryRequest *string           `json:"memory_request,omitempty"`
	MemoryLimit   *string           `json:"memory_limit,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
}

// FieldError describes an invalid override.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every set field.
func (o Overrides) Validate() error {
	if o.Replicas != nil && (*o.Replicas < 0 || *o.Replicas > maxReplicas) {
		return &FieldError{Field: "replicas", Message: fmt.Sprintf("must be between 0 and %d", maxReplicas)}
	}
	if o.Image != nil && *o.Image == "" {
		return &FieldError{Field: "image", Message: "must not be empty"}
	}
	if o.Port != nil && (*o.Port < 1 || *o.Port > 65535) {
		return &FieldError{Field: "port", Message: "must be between 1 and 65535"}
	}
	quantities := []struct {
		field string
		value *string
	}{
		{"cpu_request", o.CPURequest},
		{"cpu_limit", o.CPULimit},
		{"memory_request", o.MemoryRequest},
		{"memory_limit", o.MemoryLimit},
	}
	for _, q := range quantities {
		if q.value == nil {
			continue
		}
		if _, err := resource.ParseQuantity(*q.value); err != nil {
			return &FieldError{Field: q.field, Message: "must be a Kubernetes quantity"}
		}
	}
	for name := range o.Env {
		if !envNameRegex.MatchString(name) {
			return &FieldError{Field: "env", Message: fmt.Sprintf("invalid variable name %q", name)}
		}
	}
	return nil
}

// EnvVar is one container environment variable.
type EnvVar struct {
	Name  string
	Value string
}

// Spec is a catalog entry with overrides applied, ready to render.
type Spec struct {
	Name      string
	Category  string
	Image     string
	Port      int
	Replicas  int32
	Resources catalog.Resources
	Volumes   []catalog.Volume
	// Env is sorted by name.
	Env []EnvVar
	// OAuth, when set, is written to a Secret the container reads its
	// client credentials from.
	OAuth *OAuthCredentials
}

// OAuthCredentials are the client credentials provisioned for an app.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	IssuerURL    string
}

// NewSpec applies o to app. o must have been validated.
func NewSpec(app catalog.App, o Overrides) Spec {
	spec := Spec{
		Name:      app.Name,
		Category:  app.Category,
		Image:     app.Image,
		Port:      app.Port,
		Replicas:  1,
		Resources: app.Resources,
		Volumes:   app.Volumes,
	}
	if o.Replicas != nil {
		spec.Replicas = *o.Replicas
	}
	if o.Image != nil {
		spec.Image = *o.Image
	}
	if o.Port != nil {
		spec.Port = *o.Port
	}
	if o.CPURequest != nil {
		spec.Resources.CPURequest = *o.CPURequest
	}
	if o.CPULimit != nil {
		spec.Resources.CPULimit = *o.CPULimit
	}
	if o.MemoryRequest != nil {
		spec.Resources.MemoryRequest = *o.MemoryRequest
	}
	if o.MemoryLimit != nil {
		spec.Resources.MemoryLimit = *o.MemoryLimit
	}

	env := make(map[string]string, len(app.Env)+len(o.Env))
	for k, v := range app.Env {
		env[k] = v
	}
	for k, v := range o.Env {
		env[k] = v
	}
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		spec.Env = append(spec.Env, EnvVar{Name: k, Value: env[k]})
	}
	return spec
}
