package cron

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/qrparser"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/repository"
	"github.com/FACorreiaa/fatura-tracker/pkg/alerts"
	"github.com/FACorreiaa/fatura-tracker/pkg/config"
)

func TestFindOverdue(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := repository.NewJSONFileRepository(filepath.Join(t.TempDir(), "faturas.json"), logger)
	require.NoError(t, err)
	ctx := context.Background()

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	overdue := invoice.NewRecord(&qrparser.Fields{NumeroDocumento: "FT 1"})
	overdue.DataVencimento = yesterday
	require.NoError(t, repo.Create(ctx, overdue))

	paid := invoice.NewRecord(&qrparser.Fields{NumeroDocumento: "FT 2"})
	paid.DataVencimento = yesterday
	paid.Status = invoice.StatusPaid
	require.NoError(t, repo.Create(ctx, paid))

	future := invoice.NewRecord(&qrparser.Fields{NumeroDocumento: "FT 3"})
	future.DataVencimento = tomorrow
	require.NoError(t, repo.Create(ctx, future))

	draft := invoice.NewRecord(&qrparser.Fields{NumeroDocumento: "FT 4"})
	draft.DataVencimento = yesterday
	draft.Status = invoice.StatusDraft
	require.NoError(t, repo.Create(ctx, draft))

	s := NewScheduler("0 2 * * *", repo, alerts.NewNotifier(config.AlertsConfig{}, logger), repo, logger)

	got, err := s.findOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "FT 1", got[0].NumeroFatura)
}

func TestSchedulerStartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := repository.NewJSONFileRepository(filepath.Join(t.TempDir(), "faturas.json"), logger)
	require.NoError(t, err)

	s := NewScheduler("0 2 * * *", repo, alerts.NewNotifier(config.AlertsConfig{}, logger), repo, logger)
	require.NoError(t, s.Start())

	done := s.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := repository.NewJSONFileRepository(filepath.Join(t.TempDir(), "faturas.json"), logger)
	require.NoError(t, err)

	s := NewScheduler("not a cron spec", repo, alerts.NewNotifier(config.AlertsConfig{}, logger), nil, logger)
	assert.Error(t, s.Start())
}
