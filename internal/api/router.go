package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-jose/go-jose/v4"

	"github.com/kubarr/kubarr/internal/api/handler"
	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/k8s"
	"github.com/kubarr/kubarr/internal/obs"
)

// Users is the user service surface the router needs.
type Users interface {
	handler.UserAdmin
	handler.CredentialChecker
}

// Permissions is the RBAC service surface the router needs.
type Permissions interface {
	middleware.AdminChecker
	middleware.AppChecker
	handler.RoleManager
	handler.RoleMembership
	handler.PermissionReader
}

// Registration is the registration gate surface the router needs.
type Registration interface {
	handler.Registrar
	handler.InviteManager
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	K8sChecker k8s.HealthChecker
	DBPinger   handler.Pinger
	Version    string
	Metrics    *obs.Metrics

	Resolver     middleware.PrincipalResolver
	OAuth        handler.AuthorizationServer
	Users        Users
	Permissions  Permissions
	Registration Registration
	Settings     handler.SettingStore
	Apps         handler.AppService
	Catalog      handler.AppDirectory
	Setup        handler.Bootstrapper

	JWKS        jose.JSONWebKeySet
	Issuer      string
	LoginURL    string
	RegisterURL string

	// AuthRateLimit and AuthRateBurst bound the credential endpoints per client IP.
	AuthRateLimit float64
	AuthRateBurst int
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(deps.Metrics.Instrument)
	r.Use(middleware.Identify(deps.Resolver))

	healthHandler := handler.NewHealthHandler(deps.K8sChecker, deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", deps.Metrics.Handler())

	oauthHandler := handler.NewOAuthHandler(deps.OAuth, deps.Users, deps.Metrics, deps.JWKS, handler.OAuthConfig{
		Issuer:   deps.Issuer,
		LoginURL: deps.LoginURL,
	})
	registerHandler := handler.NewRegisterHandler(deps.Registration, deps.RegisterURL)

	limiter := middleware.NewRateLimiter(deps.AuthRateLimit, deps.AuthRateBurst)
	oauthLimit := limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		response.OAuthErr(w, http.StatusTooManyRequests, response.OAuthSlowDown, "Too many requests")
	})
	formLimit := limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", middleware.GetRequestID(r.Context()))
	})

	r.Get("/.well-known/openid-configuration", oauthHandler.Discovery)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/.well-known/openid-configuration", oauthHandler.Discovery)
		r.Get("/jwks", oauthHandler.JWKS)
		r.Get("/authorize", oauthHandler.Authorize)
		r.Get("/userinfo", oauthHandler.UserInfo)
		r.Post("/introspect", oauthHandler.Introspect)
		r.Post("/revoke", oauthHandler.Revoke)
		r.Post("/logout", oauthHandler.Logout)
		r.With(oauthLimit).Post("/token", oauthHandler.Token)
		r.With(formLimit).Post("/login", oauthHandler.Login)
		r.With(formLimit).Post("/register", registerHandler.Register)
		r.Get("/register/status", registerHandler.Status)
	})

	setupHandler := handler.NewSetupHandler(deps.Setup)
	appHandler := handler.NewAppHandler(deps.Apps)
	meHandler := handler.NewMeHandler(deps.Permissions)
	roleHandler := handler.NewRoleHandler(deps.Permissions, deps.Catalog)
	userHandler := handler.NewUserHandler(deps.Users, deps.Permissions)
	inviteHandler := handler.NewInviteHandler(deps.Registration, deps.RegisterURL)
	settingHandler := handler.NewSettingHandler(deps.Settings)

	r.Route("/api", func(r chi.Router) {
		r.Get("/setup/status", setupHandler.Status)
		r.Post("/setup", setupHandler.Bootstrap)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Resolver))

			r.Get("/me", meHandler.ServeHTTP)

			r.Route("/apps", func(r chi.Router) {
				r.Get("/catalog", appHandler.Catalog)
				r.Get("/catalog/{name}", appHandler.CatalogApp)
				r.Get("/categories", appHandler.Categories)
				r.Get("/category/{category}", appHandler.Category)
				r.Get("/installed", appHandler.Installed)
				r.Post("/install", appHandler.Install)
				r.Delete("/{name}", appHandler.Remove)
				r.With(middleware.RequireApp(deps.Permissions, "name")).Get("/{name}/health", appHandler.Health)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(deps.Permissions))

				r.Route("/roles", func(r chi.Router) {
					r.Get("/", roleHandler.List)
					r.Post("/", roleHandler.Create)
					r.Get("/{id}", roleHandler.Get)
					r.Patch("/{id}", roleHandler.Update)
					r.Delete("/{id}", roleHandler.Delete)
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
					r.Get("/pending", userHandler.ListPending)
					r.Get("/{id}", userHandler.Get)
					r.Delete("/{id}", userHandler.Delete)
					r.Post("/{id}/approve", userHandler.Approve)
					r.Post("/{id}/reject", userHandler.Reject)
					r.Patch("/{id}/active", userHandler.SetActive)
					r.Get("/{id}/roles", userHandler.Roles)
					r.Put("/{id}/roles", userHandler.SetRoles)
				})

				r.Route("/invites", func(r chi.Router) {
					r.Get("/", inviteHandler.List)
					r.Post("/", inviteHandler.Create)
					r.Delete("/{id}", inviteHandler.Delete)
				})

				r.Route("/settings", func(r chi.Router) {
					r.Get("/", settingHandler.List)
					r.Get("/{key}", settingHandler.Get)
					r.Put("/{key}", settingHandler.Set)
				})
			})
		})
	})

	return r
}
