// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/repository"
	"github.com/FACorreiaa/fatura-tracker/pkg/alerts"
	"github.com/FACorreiaa/fatura-tracker/pkg/observability"
)

// Snapshotter is implemented by stores that can flush themselves to disk.
type Snapshotter interface {
	Snapshot() error
}

// Scheduler runs the nightly invoice maintenance job: overdue detection,
// the email digest and a store snapshot.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	repo     repository.InvoiceRepository
	notifier *alerts.Notifier
	store    Snapshotter // nil when the backend persists on its own
	logger   *slog.Logger
}

// NewScheduler creates the job scheduler. spec is a standard 5-field cron
// expression.
func NewScheduler(
	spec string,
	repo repository.InvoiceRepository,
	notifier *alerts.Notifier,
	store Snapshotter,
	logger *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		spec:     spec,
		repo:     repo,
		notifier: notifier,
		store:    store,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runNightly); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("spec", s.spec),
		slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the nightly job.
func (s *Scheduler) RunNow() {
	go s.runNightly()
}

func (s *Scheduler) runNightly() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info("starting nightly invoice maintenance")

	overdue, err := s.findOverdue(ctx)
	if err != nil {
		s.logger.Error("failed to scan for overdue invoices", slog.Any("error", err))
		return
	}
	observability.DueInvoicesGauge.Set(float64(len(overdue)))

	if err := s.notifier.SendOverdueDigest(overdue); err != nil {
		s.logger.Error("failed to send overdue digest", slog.Any("error", err))
	}

	if s.store != nil {
		if err := s.store.Snapshot(); err != nil {
			s.logger.Error("failed to snapshot invoice store", slog.Any("error", err))
		}
	}

	s.logger.Info("nightly invoice maintenance finished",
		slog.Int("overdue", len(overdue)))
}

// findOverdue returns unpaid invoices whose due date has passed.
func (s *Scheduler) findOverdue(ctx context.Context) ([]*invoice.Record, error) {
	records, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	today := time.Now().Format("2006-01-02")
	var overdue []*invoice.Record
	for _, rec := range records {
		if rec.Status == invoice.StatusPaid || rec.Status == invoice.StatusDraft {
			continue
		}
		if rec.DataVencimento != "" && rec.DataVencimento < today {
			overdue = append(overdue, rec)
		}
	}
	return overdue, nil
}
