// Package api wires configuration, storage, services, handlers and
// background jobs into a runnable application.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ingesthandler "github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/handler"
	ingestservice "github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/service"
	invoicehandler "github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/handler"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/repository"
	invoiceservice "github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/service"
	"github.com/FACorreiaa/fatura-tracker/internal/server"
	"github.com/FACorreiaa/fatura-tracker/pkg/alerts"
	"github.com/FACorreiaa/fatura-tracker/pkg/config"
	appcron "github.com/FACorreiaa/fatura-tracker/pkg/cron"
	"github.com/FACorreiaa/fatura-tracker/pkg/db"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config *config.Config
	DB     *db.DB // nil with the JSON backend
	Logger *slog.Logger

	// Repositories
	InvoiceRepo repository.InvoiceRepository

	// Services
	InvoiceService *invoiceservice.InvoiceService
	IngestService  *ingestservice.IngestService
	Notifier       *alerts.Notifier

	// Handlers
	InvoiceHandler *invoicehandler.InvoiceHandler
	IngestHandler  *ingesthandler.IngestHandler

	Server    *server.Server
	Scheduler *appcron.Scheduler
}

// InitDependencies initializes all application dependencies.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	var snapshotter appcron.Snapshotter

	switch cfg.Store.Backend {
	case "postgres":
		database, err := db.New(db.Config{
			DSN:             cfg.Database.DSN(),
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: 5 * time.Minute,
			MaxConnIdleTime: 10 * time.Minute,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
		if err := database.RunMigrations(); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		deps.DB = database
		deps.InvoiceRepo = repository.NewPostgresInvoiceRepository(database.Pool)
		logger.Info("database connected and migrations completed")

	default:
		jsonRepo, err := repository.NewJSONFileRepository(cfg.Store.JSONPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open invoice store: %w", err)
		}
		deps.InvoiceRepo = jsonRepo
		snapshotter = jsonRepo
		logger.Info("JSON invoice store opened", slog.String("path", cfg.Store.JSONPath))
	}

	invoiceSvc, err := invoiceservice.NewInvoiceService(ctx, deps.InvoiceRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init invoice service: %w", err)
	}
	deps.InvoiceService = invoiceSvc
	deps.IngestService = ingestservice.NewIngestService(invoiceSvc, logger)
	deps.Notifier = alerts.NewNotifier(cfg.Alerts, logger)

	deps.InvoiceHandler = invoicehandler.NewInvoiceHandler(invoiceSvc, logger)
	deps.IngestHandler = ingesthandler.NewIngestHandler(deps.IngestService, logger)

	deps.Server = server.NewServer(
		cfg.Server,
		deps.InvoiceHandler,
		deps.IngestHandler,
		cfg.Observability.MetricsEnabled,
		logger,
	)
	deps.Scheduler = appcron.NewScheduler(cfg.Alerts.CronSpec, deps.InvoiceRepo, deps.Notifier, snapshotter, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// Cleanup releases resources in reverse initialization order.
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.InvoiceService != nil {
		if err := d.InvoiceService.Close(); err != nil {
			d.Logger.Warn("failed to close search index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
