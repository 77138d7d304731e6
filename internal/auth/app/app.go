package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/picketapp/picket/internal/auth/http"
	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/internal/auth/store"
	"github.com/picketapp/picket/internal/auth/store/drivers/sqlite"
	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/picketapp/picket/pkg/jwtx"
	"github.com/picketapp/picket/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db            store.Store
	accessSigner  *jwtx.HS256
	refreshSigner *jwtx.HS256
	fieldCipher   *cryptox.FieldCipher

	// Services
	challengeService    *service.ChallengeService
	tokenService        *service.TokenService
	authService         *service.AuthService
	auditService        *service.AuditService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initCrypto(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Drain the audit queue before the database goes away
	app.auditService.Close()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
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

// initCrypto builds the token signers and the audit field cipher from
// the configured secrets.
func (app *Application) initCrypto() error {
	accessSigner, err := jwtx.NewHS256([]byte(app.cfg.AccessSecret), app.cfg.Issuer, jwtx.UseAccess)
	if err != nil {
		return fmt.Errorf("failed to initialize access token signer: %w", err)
	}
	refreshSigner, err := jwtx.NewHS256([]byte(app.cfg.RefreshSecret), app.cfg.Issuer, jwtx.UseRefresh)
	if err != nil {
		return fmt.Errorf("failed to initialize refresh token signer: %w", err)
	}
	fieldCipher, err := cryptox.NewFieldCipher(app.cfg.AuditFieldKey)
	if err != nil {
		return fmt.Errorf("failed to initialize audit field cipher: %w", err)
	}

	app.accessSigner = accessSigner
	app.refreshSigner = refreshSigner
	app.fieldCipher = fieldCipher
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	adminIDs := make(map[string]struct{}, len(app.cfg.AdminUserIDs))
	for _, id := range app.cfg.AdminUserIDs {
		adminIDs[id] = struct{}{}
	}

	app.auditService = service.NewAuditService(
		app.db,
		app.fieldCipher,
		app.logger,
		app.cfg.AuditQueueSize,
	)

	app.challengeService = &service.ChallengeService{
		Store: app.db,
		TTL:   app.cfg.ChallengeTTL,
	}

	app.tokenService = &service.TokenService{
		Store:         app.db,
		AccessSigner:  app.accessSigner,
		RefreshSigner: app.refreshSigner,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
		AdminUserIDs:  adminIDs,
	}

	app.authService = &service.AuthService{
		Store:           app.db,
		Challenges:      app.challengeService,
		Tokens:          app.tokenService,
		Audit:           app.auditService,
		AllowRawMessage: app.cfg.AllowRawMessageSignatures,
	}
	if app.cfg.AllowRawMessageSignatures {
		app.logger.Warn("raw-message signature fallback enabled; intended for legacy clients only")
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.auditService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.accessSigner,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.ChallengeService = app.challengeService
	router.AuditService = app.auditService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
