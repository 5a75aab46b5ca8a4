package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/tenderkg/internal/api"
	"github.com/timmy/tenderkg/internal/api/handler"
	"github.com/timmy/tenderkg/internal/app"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/logger"
	"github.com/timmy/tenderkg/internal/source"
	"github.com/timmy/tenderkg/internal/source/staging"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	application, err := app.New(ctx, cfg, app.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize")
	}
	defer application.Close()

	sqlDB, err := application.DB.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}

	// A nil *Archive must not reach the handler as a non-nil interface.
	var pages handler.RawPages
	if application.Archive != nil {
		pages = application.Archive
	}

	stagingDir := os.Getenv("STAGING_DIR")
	if stagingDir == "" {
		stagingDir = "./data/staging"
	}
	sources := map[string]source.Source{
		"staging": staging.NewAdapter(stagingDir),
	}

	admin := handler.NewAdminHandler(ctx, application.Ingest, sources, application.Jobs)
	router := api.SetupRouter(api.Handlers{
		Health: handler.NewHealthHandler(sqlDB),
		Search: handler.NewSearchHandler(application.Knowledge),
		Tender: handler.NewTenderHandler(application.Episodes, pages, application.Ingest),
		Admin:  admin,
	}, prometheus.DefaultGatherer, cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// Stop a background ingest and let it record its job status.
	cancel()
	admin.Wait()

	appLogger.Info("Server exited")
}
