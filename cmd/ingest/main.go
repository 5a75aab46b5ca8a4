package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/tenderkg/internal/app"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/fetcher"
	"github.com/timmy/tenderkg/internal/logger"
	"github.com/timmy/tenderkg/internal/service"
	"github.com/timmy/tenderkg/internal/source"
	"github.com/timmy/tenderkg/internal/source/idlist"
	"github.com/timmy/tenderkg/internal/source/staging"
)

func main() {
	// Initialize logger first (LOG_LEVEL, LOG_FORMAT, LOG_FILE, ...)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	sourceType := flag.String("source", "idlist", "Identifier source: idlist or staging")
	ids := flag.String("ids", "", "Comma-separated tender identifiers (idlist source)")
	idsFile := flag.String("ids-file", "", "File with one tender identifier per line (idlist source)")
	dir := flag.String("dir", "./data/staging", "Directory of tender_<id>.html pages (staging source)")
	limit := flag.Int("limit", 0, "Maximum number of identifiers to process, 0 for all")
	force := flag.Bool("force", false, "Re-process identifiers already handled in this run")
	interactive := flag.Bool("interactive", false, "Ask for approval before committing each tender")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *interactive {
		cfg.Preview.Enabled = true
		cfg.Preview.AutoApprove = false
	}
	if *force {
		cfg.Processing.ForceUpdate = true
	}

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	// Get identifier source; the staging source also serves the pages.
	var src source.Source
	var docs fetcher.DocumentFetcher
	switch *sourceType {
	case "idlist":
		src = idListSource(appLogger, *ids, *idsFile)
	case "staging":
		stagingSrc := staging.NewAdapter(*dir)
		src, docs = stagingSrc, stagingSrc
	default:
		appLogger.WithField("source", *sourceType).Fatal("Unknown source type")
	}

	appLogger.WithFields(logger.Fields{
		"source":      src.GetSourceID(),
		"limit":       *limit,
		"force":       cfg.Processing.ForceUpdate,
		"interactive": *interactive,
	}).Info("Starting ingestion")

	application, err := app.New(ctx, cfg, app.Options{
		Fetcher:    docs,
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize")
	}
	defer application.Close()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	report, err := application.Ingest.IngestFromSource(ctx, src, *limit, &service.IngestOptions{
		Force: cfg.Processing.ForceUpdate,
	})
	if report != nil {
		if perr := service.PrintReport(os.Stdout, *report); perr != nil {
			appLogger.WithError(perr).Warn("Failed to print report")
		}
	}
	if err != nil {
		appLogger.WithError(err).Warn("Ingestion interrupted")
		application.Close()
		logger.Sync()
		os.Exit(1)
	}
}

func idListSource(log *logger.Logger, ids, idsFile string) source.Source {
	if idsFile != "" {
		src, err := idlist.FromFile(idsFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to read identifier file")
		}
		return src
	}

	var list []string
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			list = append(list, id)
		}
	}
	list = append(list, flag.Args()...)
	if len(list) == 0 {
		log.Fatal("No identifiers given: use -ids, -ids-file or positional arguments")
	}
	return idlist.NewAdapter("cli", list)
}
