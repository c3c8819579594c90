// Package app wires configuration, logging, storage, the service layer and
// the HTTP router together, and runs the server with graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patric-chuzhbe/interioai/internal/config"
	"github.com/patric-chuzhbe/interioai/internal/db/jsondb"
	"github.com/patric-chuzhbe/interioai/internal/db/memorystorage"
	"github.com/patric-chuzhbe/interioai/internal/db/postgresdb"
	"github.com/patric-chuzhbe/interioai/internal/db/storage"
	"github.com/patric-chuzhbe/interioai/internal/ipchecker"
	"github.com/patric-chuzhbe/interioai/internal/logger"
	"github.com/patric-chuzhbe/interioai/internal/models"
	"github.com/patric-chuzhbe/interioai/internal/router"
	"github.com/patric-chuzhbe/interioai/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App holds the configuration, the storage backend and the HTTP handler
// of the running service.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - setting up the service, the trusted subnet checker and the router
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, errors.Join(err, app.db.Close())
	}

	app.httpHandler = router.New(
		service.New(app.db),
		checker,
		app.cfg.CORSAllowedOrigins,
	)

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a server failure.
// On a signal it drains in-flight requests and closes the storage.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infow(
		"server running",
		"RunAddr", a.cfg.RunAddr,
		"storage", storageTypeName(getAvailableStorageType(a.cfg)),
		"https", a.cfg.EnableHTTPS,
	)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if a.cfg.EnableHTTPS {
			serverErrCh <- server.ListenAndServeTLS(a.cfg.TLSCertFile, a.cfg.TLSKeyFile)
			return
		}
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Join(fmt.Errorf("server shutdown error: %w", err), a.db.Close())
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return errors.Join(fmt.Errorf("server error: %w", err), a.db.Close())
	}
}

// Close flushes the logger.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func storageTypeName(storageType int) string {
	switch storageType {
	case models.StorageTypePostgresql:
		return "postgresql"
	case models.StorageTypeFile:
		return "file"
	case models.StorageTypeMemory:
		return "memory"
	}

	return "unknown"
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
