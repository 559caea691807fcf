// Package app wires configuration, storage, external service clients and the
// HTTP API into a runnable daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/farelight/zkauth/internal/authn/epoch"
	httpapi "github.com/farelight/zkauth/internal/authn/http"
	"github.com/farelight/zkauth/internal/authn/keyring"
	"github.com/farelight/zkauth/internal/authn/provider"
	"github.com/farelight/zkauth/internal/authn/prover"
	"github.com/farelight/zkauth/internal/authn/salt"
	"github.com/farelight/zkauth/internal/authn/service"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/internal/authn/store/drivers/memory"
	"github.com/farelight/zkauth/internal/authn/store/drivers/sqlite"
	"github.com/farelight/zkauth/pkg/cryptox"
	"github.com/farelight/zkauth/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the authenticator daemon with all its
// dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db        store.Store
	epochs    epoch.Source
	providers *provider.Registry

	loginService        *service.LoginService
	signer              *service.TransactionSigner
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "zkauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.SaltServiceURL == "" {
		return nil, errors.New("app: ZKAUTH_SALT_SERVICE_URL is required")
	}
	if cfg.ProverURL == "" {
		return nil, errors.New("app: ZKAUTH_PROVER_URL is required")
	}

	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.epochs = epoch.Interval{
		Genesis: cfg.EpochGenesis,
		Length:  cfg.EpochLength,
	}
	app.providers = provider.Default()

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the daemon and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("zkauth daemon starting",
		"addr", app.server.Addr,
		"version", BuildVersion,
		"store_mode", app.cfg.StoreMode,
	)

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

// Shutdown gracefully shuts down the daemon.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down zkauth daemon...")

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
		app.logger.Error("error closing session store", "error", err)
		return err
	}

	app.logger.Info("zkauth daemon stopped")
	return nil
}

func (app *Application) initStore() error {
	switch app.cfg.StoreMode {
	case "memory":
		app.db = memory.NewStore()
		app.logger.Info("using in-memory session store; sessions will not survive a restart")
		return nil

	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize session store: %w", err)
		}
		app.db = db

		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}

		app.logger.Info("database migrations applied successfully")
		return nil

	default:
		return fmt.Errorf("app: unknown store mode %q (want memory or sqlite)", app.cfg.StoreMode)
	}
}

func (app *Application) initServices() {
	salts := salt.NewClient(app.cfg.SaltServiceURL)
	salts.HTTPClient.Timeout = app.cfg.SaltTimeout
	salts.MaxRetries = app.cfg.SaltMaxRetries

	proofs := prover.NewClient(app.cfg.ProverURL)
	proofs.HTTPClient.Timeout = app.cfg.ProverTimeout
	proofs.MaxRetries = app.cfg.ProverMaxRetries

	app.loginService = service.NewLoginService(
		app.providers,
		&keyring.Factory{Epochs: app.epochs},
		salts,
		proofs,
		app.db,
		app.epochs,
		app.cfg.RedirectURI,
	)
	app.loginService.ValidityEpochs = app.cfg.ValidityEpochs

	app.signer = &service.TransactionSigner{
		Store:  app.db,
		Epochs: app.epochs,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.epochs,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.epochs,
		app.providers,
		app.logger,
	)

	router.LoginService = app.loginService
	router.Signer = app.signer
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              net.JoinHostPort(app.cfg.Host, strconv.Itoa(app.cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
