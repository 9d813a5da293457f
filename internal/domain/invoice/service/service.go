// Package service orchestrates invoice persistence, search and exports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/repository"
)

// ErrInvalidStatus is returned when a status transition names an unknown
// state.
var ErrInvalidStatus = errors.New("estado de fatura inválido")

var centsFactor = decimal.NewFromInt(100)

// StatsView is repository stats plus a display-ready total.
type StatsView struct {
	*repository.Stats
	ValorTotalFormatado string `json:"valorTotalFormatado"`
}

// InvoiceService exposes invoice CRUD on top of a repository, keeping the
// full-text index in sync with every mutation.
type InvoiceService struct {
	repo   repository.InvoiceRepository
	search *SearchIndex
	logger *slog.Logger
}

// NewInvoiceService builds the service and seeds the search index from the
// repository contents.
func NewInvoiceService(ctx context.Context, repo repository.InvoiceRepository, logger *slog.Logger) (*InvoiceService, error) {
	search, err := NewSearchIndex()
	if err != nil {
		return nil, err
	}

	records, err := repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices for indexing: %w", err)
	}
	if err := search.Rebuild(records); err != nil {
		return nil, err
	}

	logger.Info("invoice service ready", slog.Int("indexed", len(records)))
	return &InvoiceService{repo: repo, search: search, logger: logger}, nil
}

// Create stores a new invoice. Records without a status start as pending.
func (s *InvoiceService) Create(ctx context.Context, rec *invoice.Record) error {
	if rec.Status == "" {
		rec.Status = invoice.StatusPending
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, rec.Status)
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}
	s.indexRecord(rec)

	s.logger.Info("invoice created",
		slog.String("id", rec.ID),
		slog.String("numero", rec.NumeroFatura),
		slog.String("total", rec.Total))
	return nil
}

// Get returns one invoice by ID.
func (s *InvoiceService) Get(ctx context.Context, id string) (*invoice.Record, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumero returns one invoice by its document number.
func (s *InvoiceService) GetByNumero(ctx context.Context, numero string) (*invoice.Record, error) {
	return s.repo.GetByNumero(ctx, numero)
}

// List returns a filtered, paginated page of invoices.
func (s *InvoiceService) List(ctx context.Context, f repository.Filter) (*repository.Page, error) {
	return s.repo.List(ctx, f)
}

// Update applies a partial update and returns the stored result.
func (s *InvoiceService) Update(ctx context.Context, id string, in invoice.UpdateInput) (*invoice.Record, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *in.Status)
	}

	rec, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.indexRecord(rec)
	return rec, nil
}

// UpdateStatus moves an invoice to a new state.
func (s *InvoiceService) UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Record, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	rec, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.indexRecord(rec)

	s.logger.Info("invoice status changed",
		slog.String("id", id),
		slog.String("status", string(status)))
	return rec, nil
}

// Delete removes an invoice from the store and the index.
func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.search.Remove(id); err != nil {
		s.logger.Warn("failed to drop invoice from search index",
			slog.String("id", id), slog.Any("error", err))
	}
	return nil
}

// Stats aggregates the store and formats the grand total as euros.
func (s *InvoiceService) Stats(ctx context.Context) (*StatsView, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	cents := stats.ValorTotal.Mul(centsFactor).IntPart()
	total := money.New(cents, money.EUR)

	return &StatsView{Stats: stats, ValorTotalFormatado: total.Display()}, nil
}

// Search runs a fuzzy full-text query over number, names, description and
// category, resolving hits back to stored records.
func (s *InvoiceService) Search(ctx context.Context, query string, limit int) ([]*invoice.Record, error) {
	hits, err := s.search.Search(query, limit)
	if err != nil {
		return nil, err
	}

	records := make([]*invoice.Record, 0, len(hits))
	for _, hit := range hits {
		rec, err := s.repo.GetByID(ctx, hit.ID)
		if errors.Is(err, repository.ErrNotFound) {
			// Index can briefly lag behind deletions.
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExportCSVRecords returns every stored invoice, newest first, for file
// exports.
func (s *InvoiceService) ExportCSVRecords(ctx context.Context) ([]*invoice.Record, error) {
	return s.repo.All(ctx)
}

// Close releases the search index.
func (s *InvoiceService) Close() error {
	return s.search.Close()
}

func (s *InvoiceService) indexRecord(rec *invoice.Record) {
	if err := s.search.Index(rec); err != nil {
		s.logger.Warn("failed to index invoice",
			slog.String("id", rec.ID), slog.Any("error", err))
	}
}
