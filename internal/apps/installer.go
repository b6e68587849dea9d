// Package apps composes the catalog, RBAC, OAuth2 client provisioning and
// the deployer into the install/remove workflow.
package apps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kubarr/kubarr/internal/catalog"
	"github.com/kubarr/kubarr/internal/deploy"
	"github.com/kubarr/kubarr/internal/oauth2"
	"github.com/kubarr/kubarr/internal/rbac"
	"github.com/kubarr/kubarr/internal/user"
)

// ErrForbidden is returned when the principal may not reach the app.
var ErrForbidden = errors.New("access to app denied")

// ErrSystemApp is returned when removing an app the platform depends on.
var ErrSystemApp = errors.New("system apps cannot be removed")

// AccessResolver resolves which apps a user may reach.
type AccessResolver interface {
	AllowedApps(ctx context.Context, u *user.User) (rbac.Access, error)
}

// ClientProvisioner manages the per-app OAuth2 clients.
type ClientProvisioner interface {
	EnsureAppClient(ctx context.Context, app, displayName, baseURL string) (clientID, secret string, err error)
	DeleteClient(ctx context.Context, clientID string) error
}

// InstallRequest is an install call: the app name and optional overrides.
type InstallRequest struct {
	App       string           `json:"app_name"`
	Overrides deploy.Overrides `json:"overrides"`
}

// Installer is the app lifecycle service.
type Installer struct {
	catalog  *catalog.Catalog
	access   AccessResolver
	clients  ClientProvisioner
	deployer deploy.Deployer
	baseURL  string
	issuer   string
}

// NewInstaller creates an Installer. baseURL is the external dashboard URL
// used for per-app redirect URIs and issuer the OAuth2 issuer written to
// app credentials.
func NewInstaller(c *catalog.Catalog, access AccessResolver, clients ClientProvisioner, deployer deploy.Deployer, baseURL, issuer string) *Installer {
	return &Installer{
		catalog:  c,
		access:   access,
		clients:  clients,
		deployer: deployer,
		baseURL:  baseURL,
		issuer:   issuer,
	}
}

// Catalog returns the visible catalog entries u may reach.
func (i *Installer) Catalog(ctx context.Context, u *user.User) ([]catalog.App, error) {
	access, err := i.access.AllowedApps(ctx, u)
	if err != nil {
		return nil, err
	}
	return rbac.Filter(access, visible(i.catalog.All()), appName), nil
}

// ByCategory is Catalog restricted to one category.
func (i *Installer) ByCategory(ctx context.Context, u *user.User, category string) ([]catalog.App, error) {
	access, err := i.access.AllowedApps(ctx, u)
	if err != nil {
		return nil, err
	}
	return rbac.Filter(access, visible(i.catalog.ByCategory(category)), appName), nil
}

// Categories returns the categories that hold at least one visible app.
func (i *Installer) Categories() []string {
	var out []string
	for _, c := range i.catalog.Categories() {
		if len(visible(i.catalog.ByCategory(c))) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// App returns one catalog entry after checking u may reach it.
func (i *Installer) App(ctx context.Context, u *user.User, name string) (catalog.App, error) {
	app, err := i.catalog.Get(name)
	if err != nil {
		return catalog.App{}, err
	}
	if err := i.authorize(ctx, u, app.Name); err != nil {
		return catalog.App{}, err
	}
	return app, nil
}

// Installed returns the deployed apps u may reach.
func (i *Installer) Installed(ctx context.Context, u *user.User) ([]string, error) {
	names, err := i.deployer.Installed(ctx)
	if err != nil {
		return nil, err
	}
	access, err := i.access.AllowedApps(ctx, u)
	if err != nil {
		return nil, err
	}
	return rbac.Filter(access, names, func(s string) string { return s }), nil
}

// Install deploys an app. OAuth-enabled apps get their "{app}-oauth" client
// provisioned first and its credentials mounted from a Secret.
func (i *Installer) Install(ctx context.Context, u *user.User, req InstallRequest) (deploy.Status, error) {
	app, err := i.App(ctx, u, req.App)
	if err != nil {
		return deploy.Status{}, err
	}
	if err := req.Overrides.Validate(); err != nil {
		return deploy.Status{}, err
	}

	spec := deploy.NewSpec(app, req.Overrides)
	if app.OAuth {
		clientID, secret, err := i.clients.EnsureAppClient(ctx, app.Name, app.DisplayName, i.baseURL)
		if err != nil {
			return deploy.Status{}, err
		}
		spec.OAuth = &deploy.OAuthCredentials{
			ClientID:     clientID,
			ClientSecret: secret,
			IssuerURL:    i.issuer,
		}
	}

	status, err := i.deployer.Deploy(ctx, spec)
	if err != nil {
		return deploy.Status{}, fmt.Errorf("deploying %s: %w", app.Name, err)
	}

	slog.Info("app installed", "app", app.Name, "userId", u.ID, "oauth", app.OAuth)
	return status, nil
}

// Remove deletes an app's resources and its OAuth2 client. System apps are
// refused after the access check.
func (i *Installer) Remove(ctx context.Context, u *user.User, name string) (bool, error) {
	app, err := i.App(ctx, u, name)
	if err != nil {
		return false, err
	}
	if app.IsSystem {
		return false, ErrSystemApp
	}

	removed, err := i.deployer.Remove(ctx, app.Name)
	if err != nil {
		return removed, fmt.Errorf("removing %s: %w", app.Name, err)
	}

	if app.OAuth {
		err := i.clients.DeleteClient(ctx, oauth2.AppClientID(app.Name))
		if err != nil && !errors.Is(err, oauth2.ErrClientNotFound) {
			return removed, fmt.Errorf("deleting oauth client for %s: %w", app.Name, err)
		}
	}

	slog.Info("app removed", "app", app.Name, "userId", u.ID, "removed", removed)
	return removed, nil
}

// Health reports the rollout state of an app u may reach.
func (i *Installer) Health(ctx context.Context, u *user.User, name string) (deploy.Health, error) {
	app, err := i.App(ctx, u, name)
	if err != nil {
		return deploy.Health{}, err
	}
	return i.deployer.NamespaceHealth(ctx, app.Name)
}

func (i *Installer) authorize(ctx context.Context, u *user.User, app string) error {
	access, err := i.access.AllowedApps(ctx, u)
	if err != nil {
		return err
	}
	if !access.CanAccess(app) {
		return ErrForbidden
	}
	return nil
}

func visible(apps []catalog.App) []catalog.App {
	out := make([]catalog.App, 0, len(apps))
	for _, a := range apps {
		if !a.IsHidden {
			out = append(out, a)
		}
	}
	return out
}

func appName(a catalog.App) string { return a.Name }
