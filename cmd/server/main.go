package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kubarr/kubarr/internal/api"
	"github.com/kubarr/kubarr/internal/apps"
	"github.com/kubarr/kubarr/internal/catalog"
	"github.com/kubarr/kubarr/internal/config"
	"github.com/kubarr/kubarr/internal/db"
	"github.com/kubarr/kubarr/internal/deploy"
	"github.com/kubarr/kubarr/internal/identity"
	"github.com/kubarr/kubarr/internal/janitor"
	"github.com/kubarr/kubarr/internal/k8s"
	"github.com/kubarr/kubarr/internal/oauth2"
	"github.com/kubarr/kubarr/internal/obs"
	"github.com/kubarr/kubarr/internal/rbac"
	"github.com/kubarr/kubarr/internal/registration"
	"github.com/kubarr/kubarr/internal/security"
	"github.com/kubarr/kubarr/internal/settings"
	"github.com/kubarr/kubarr/internal/setup"
	"github.com/kubarr/kubarr/internal/token"
	"github.com/kubarr/kubarr/internal/user"
)

// dbConnectTries bounds startup retries while PostgreSQL comes up.
const dbConnectTries = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL, dbConnectTries)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	keys, err := security.LoadOrGenerateKeyPair(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTKeyID)
	if err != nil {
		return fmt.Errorf("loading signing keys: %w", err)
	}

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("loading app catalog: %w", err)
	}

	pool := database.Pool()
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	codec := token.NewCodec(token.NewRS256Signer(keys), cfg.Issuer())
	metrics := obs.New(cfg.Version)

	userRepo := user.NewRepository(pool)
	oauthSvc := oauth2.NewService(oauth2.NewRepository(pool), userRepo, codec, hasher,
		oauth2.WithAccessTTL(cfg.AccessTokenTTL),
		oauth2.WithRefreshTTL(cfg.RefreshTokenTTL),
		oauth2.WithCodeTTL(cfg.AuthCodeTTL),
	)
	userSvc := user.NewService(userRepo, hasher, oauthSvc)
	rbacSvc := rbac.NewService(rbac.NewRepository(pool))
	settingsSvc := settings.NewService(settings.NewRepository(pool), settings.Defaults{
		RegistrationEnabled:         cfg.RegistrationEnabled,
		RegistrationRequireApproval: cfg.RegistrationRequireApproval,
	})
	gate := registration.NewGate(registration.NewRepository(pool), settingsSvc, hasher)

	if err := rbacSvc.SeedSystemRoles(ctx); err != nil {
		return fmt.Errorf("seeding system roles: %w", err)
	}

	var checker k8s.HealthChecker = k8s.Disconnected{}
	var manager k8s.ResourceManager = k8s.Unavailable{}
	if k8sClient, err := initK8sClient(cfg); err != nil {
		slog.Warn("kubernetes client initialization failed; app management disabled", "error", err)
	} else {
		checker = k8sClient
		manager = k8sClient.NewManager()
	}

	installer := apps.NewInstaller(cat, rbacSvc, oauthSvc, deploy.New(manager, cfg.Namespace), cfg.BaseURL, cfg.Issuer())

	router := api.NewRouter(api.RouterDeps{
		K8sChecker:    checker,
		DBPinger:      database,
		Version:       cfg.Version,
		Metrics:       metrics,
		Resolver:      identity.NewResolver(oauthSvc, userRepo, cfg.TrustedUserHeader),
		OAuth:         oauthSvc,
		Users:         userSvc,
		Permissions:   rbacSvc,
		Registration:  gate,
		Settings:      settingsSvc,
		Apps:          installer,
		Catalog:       cat,
		Setup:         setup.NewService(userSvc, rbacSvc, oauthSvc),
		JWKS:          keys.JWKS(),
		Issuer:        cfg.Issuer(),
		LoginURL:      cfg.LoginURL,
		RegisterURL:   cfg.RegisterURL,
		AuthRateLimit: cfg.AuthRateLimit,
		AuthRateBurst: cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting kubarr server", "port", cfg.Port, "version", cfg.Version, "issuer", cfg.Issuer())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return janitor.New(oauthSvc, metrics, cfg.PurgeInterval).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func initK8sClient(cfg *config.Config) (*k8s.Client, error) {
	opts := []k8s.ClientOption{k8s.WithUserAgent("kubarr/" + cfg.Version)}
	if cfg.KubeconfigPath != "" {
		opts = append(opts, k8s.WithKubeconfig(cfg.KubeconfigPath))
	}
	return k8s.NewClient(opts...)
}
