// Package catalog is the registry of applications kubarr can deploy.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sigsyaml "sigs.k8s.io/yaml"
)

//go:embed catalog.yaml
var embedded []byte

var appNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,61}[a-z0-9]$`)

// ErrAppNotFound is returned when a name is not in the catalog.
var ErrAppNotFound = errors.New("app not found in catalog")

// Resources holds the container resource requests and limits.
type Resources struct {
	CPURequest    string `json:"cpu_request"`
	CPULimit      string `json:"cpu_limit"`
	MemoryRequest string `json:"memory_request"`
	MemoryLimit   string `json:"memory_limit"`
}

// Volume is a persistent volume mounted into the app container.
type Volume struct {
	Name         string `json:"name"`
	MountPath    string `json:"mount_path"`
	Size         string `json:"size"`
	StorageClass string `json:"storage_class,omitempty"`
}

// App describes a deployable application.
type App struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Icon        string            `json:"icon,omitempty"`
	Category    string            `json:"category"`
	Image       string            `json:"image"`
	Port        int               `json:"port"`
	Resources   Resources         `json:"resources"`
	Volumes     []Volume          `json:"volumes,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	// IsSystem apps cannot be removed through the API.
	IsSystem bool `json:"is_system"`
	IsHidden bool `json:"is_hidden"`
	// OAuth apps get a dedicated "{name}-oauth" client when installed.
	OAuth bool `json:"oauth"`
}

// Catalog is an immutable, ordered set of apps.
type Catalog struct {
	apps   []App
	byName map[string]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Load(embedded)
}

// Load parses a YAML list of apps.
func Load(data []byte) (*Catalog, error) {
	var apps []App
	if err := sigsyaml.UnmarshalStrict(data, &apps); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{apps: apps, byName: make(map[string]int, len(apps))}
	for i, app := range apps {
		if !appNameRegex.MatchString(app.Name) {
			return nil, fmt.Errorf("catalog entry %d: invalid name %q", i, app.Name)
		}
		if app.Image == "" || app.Port <= 0 {
			return nil, fmt.Errorf("catalog entry %s: image and port are required", app.Name)
		}
		if app.Category == "" {
			return nil, fmt.Errorf("catalog entry %s: category is required", app.Name)
		}
		if _, dup := c.byName[app.Name]; dup {
			return nil, fmt.Errorf("catalog entry %s: duplicate name", app.Name)
		}
		c.byName[app.Name] = i
	}
	return c, nil
}

// Get returns the app with the given name, ignoring case.
func (c *Catalog) Get(name string) (App, error) {
	i, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return App{}, ErrAppNotFound
	}
	return c.apps[i], nil
}

// Exists reports whether name is in the catalog.
func (c *Catalog) Exists(name string) bool {
	_, ok := c.byName[strings.ToLower(name)]
	return ok
}

// All returns every app in catalog order.
func (c *Catalog) All() []App {
	out := make([]App, len(c.apps))
	copy(out, c.apps)
	return out
}

// Categories returns the sorted distinct categories.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	for _, app := range c.apps {
		seen[app.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the apps in category, in catalog order.
func (c *Catalog) ByCategory(category string) []App {
	out := []App{}
	for _, app := range c.apps {
		if app.Category == category {
			out = append(out, app)
		}
	}
	return out
}
