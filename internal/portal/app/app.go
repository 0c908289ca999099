package app

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

	"github.com/aussiebroadwan/portal/internal/portal/controller"
	httpapi "github.com/aussiebroadwan/portal/internal/portal/http"
	"github.com/aussiebroadwan/portal/internal/portal/notify"
	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/sqlite"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application wires the portal's dependencies together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keys       *jwtx.SessionKeys
	controller controller.Client
	notifier   notify.Notifier

	activityService     *service.ActivityService
	verificationService *service.VerificationService
	guestService        *service.GuestService
	userService         *service.UserService
	sessionService      *service.AdminSessionService
	syncService         *service.SyncService

	server *http.Server
	router *httpapi.Router
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "guest-portal",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	key, err := cryptox.LoadOrCreateEd25519Key(cfg.SessionKeyFile)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to load session key: %w", err)
	}
	app.keys, err = jwtx.NewSessionKeys(key, cfg.SessionIssuer)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialise session keys: %w", err)
	}

	if err := app.initController(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initNotifier()
	app.initServices()

	if err := app.bootstrapAdmin(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

// Handler exposes the routed HTTP handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.syncService.Start()

	app.logger.Info("guest portal starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.syncService.Stop()
			_ = app.db.Close()
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

func (app *Application) Shutdown() error {
	app.logger.Info("shutting down guest portal...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.syncService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("guest portal stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
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

// initController picks the UniFi controller when one is configured and a
// no-op client otherwise, in which case grants only exist locally.
func (app *Application) initController() error {
	if app.cfg.ControllerURL == "" {
		app.logger.Warn("CONTROLLER_URL not set, guest grants will not reach the network")
		app.controller = controller.Noop{}
		return nil
	}

	opts := []controller.Option{controller.WithSite(app.cfg.ControllerSite)}
	if app.cfg.ControllerInsecureTLS {
		opts = append(opts, controller.WithInsecureTLS())
	}
	c, err := controller.NewUniFiClient(app.cfg.ControllerURL, app.cfg.ControllerUsername, app.cfg.ControllerPassword, opts...)
	if err != nil {
		return fmt.Errorf("failed to create controller client: %w", err)
	}
	app.controller = c
	app.logger.Info("controller configured", "url", app.cfg.ControllerURL, "site", app.cfg.ControllerSite)
	return nil
}

func (app *Application) initNotifier() {
	if app.cfg.PostmarkToken == "" {
		app.logger.Warn("POSTMARK_SERVER_TOKEN not set, verification codes will be logged")
		app.notifier = notify.LogNotifier{}
		return
	}
	app.notifier = notify.NewPostmark(app.cfg.PostmarkToken, app.cfg.PostmarkFrom,
		notify.WithSiteName(app.cfg.SiteName),
	)
}

func (app *Application) initServices() {
	app.activityService = &service.ActivityService{Store: app.db}

	app.verificationService = &service.VerificationService{
		Store:          app.db,
		Notifier:       app.notifier,
		Activity:       app.activityService,
		CodeTTL:        app.cfg.CodeExpiry,
		ResendCooldown: app.cfg.resendCooldown(),
		MaxResends:     app.cfg.MaxResends,
		MaxAttempts:    app.cfg.MaxAttempts,
		Retention:      app.cfg.ChallengeRetain,
	}

	app.guestService = &service.GuestService{
		Store:             app.db,
		Controller:        app.controller,
		Activity:          app.activityService,
		DefaultAuthDays:   app.cfg.DefaultAuthDays,
		MaxExtendDays:     app.cfg.MaxExtendDays,
		ControllerTimeout: app.cfg.ControllerTimeout,
	}

	app.userService = &service.UserService{Store: app.db}

	app.sessionService = &service.AdminSessionService{
		Store:    app.db,
		Signer:   app.keys,
		Activity: app.activityService,
		Issuer:   app.cfg.SiteName,
	}

	app.syncService = service.NewSyncService(
		app.guestService,
		app.verificationService,
		app.logger,
		app.cfg.SyncInterval,
	)
}

func (app *Application) bootstrapAdmin() error {
	if app.cfg.AdminEmail == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(slogx.WithContext(context.Background(), app.logger), 30*time.Second)
	defer cancel()

	if _, _, err := app.userService.BootstrapAdmin(ctx, app.cfg.AdminEmail, app.cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keys, BuildVersion, app.db, app.logger)

	router.VerificationService = app.verificationService
	router.UserService = app.userService
	router.GuestService = app.guestService
	router.SessionService = app.sessionService
	router.ActivityService = app.activityService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
