package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	httpapi "github.com/mercuryedu/mercury-sso/internal/sso/http"
	"github.com/mercuryedu/mercury-sso/internal/sso/ies"
	"github.com/mercuryedu/mercury-sso/internal/sso/oidc"
	"github.com/mercuryedu/mercury-sso/internal/sso/service"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/internal/sso/store/drivers/sqlite"
	"github.com/mercuryedu/mercury-sso/pkg/cryptox"
	"github.com/mercuryedu/mercury-sso/pkg/idx"
	"github.com/mercuryedu/mercury-sso/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the SSO service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	discovery *oidc.DiscoveryCache

	sessionService      *service.WebSessionService
	openidService       *service.OpenIDConnectService
	ltiService          *service.LTI11Service
	credentialService   *service.CredentialService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mercury-sso",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set master key path for secret sealing at rest
	cryptox.SetMasterKeyPath(cfg.MasterKeyPath)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("sso service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down sso service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("sso service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.discovery = oidc.NewDiscoveryCache(nil, app.cfg.DiscoveryCacheSize, app.cfg.DiscoveryCacheTTL)

	callbackURL := strings.TrimSuffix(app.cfg.CallbackBaseURL, "/") + "/v1/sso/oidc/callback"

	app.sessionService = &service.WebSessionService{
		Store:    app.db,
		TokenTTL: app.cfg.SessionTTL,
	}

	app.openidService = &service.OpenIDConnectService{
		Store:     app.db,
		Discovery: app.discovery,
		Exchanger: &oidc.TokenExchanger{
			Discovery:   app.discovery,
			CallbackURL: callbackURL,
			Audit:       app.auditWriter(),
		},
		Sessions:          app.sessionService,
		CallbackURL:       callbackURL,
		LogoutRedirectURL: app.cfg.LogoutRedirectURL,
		StateTTL:          app.cfg.StateTTL,
	}

	app.ltiService = &service.LTI11Service{
		Store:    app.db,
		Sessions: app.sessionService,
		Bridge:   ies.NewClient(app.cfg.IESBaseURL, nil),
		Enroller: service.NopEnroller{},
	}

	app.credentialService = &service.CredentialService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// auditWriter adapts the audit-event repository into the exchanger's audit
// hook. Failures are logged and swallowed; auditing never blocks a flow.
func (app *Application) auditWriter() oidc.AuditFunc {
	return func(ctx context.Context, sessionID, event, message string, sensitive bool) {
		err := app.db.AuditEvents().CreateAuditEvent(ctx, domain.AuditEvent{
			ID:        idx.New().String(),
			SessionID: sessionID,
			Event:     event,
			Message:   message,
			Sensitive: sensitive,
		})
		if err != nil {
			app.logger.Warn("failed to write audit event", "session_id", sessionID, "event", event, "error", err)
		}
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.cfg.AdminToken, app.db, app.logger)

	// Wire services to router
	router.OpenIDService = app.openidService
	router.LTIService = app.ltiService
	router.CredentialService = app.credentialService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
