package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/pkg/ptnum"
)

// JSONFileRepository keeps invoices in memory and mirrors every mutation
// to a JSON file. Loads the file on startup; a missing or corrupt file
// starts an empty store instead of failing, so a bad shutdown never
// blocks the service.
type JSONFileRepository struct {
	mu       sync.RWMutex
	path     string
	logger   *slog.Logger
	invoices map[string]*invoice.Record
}

// NewJSONFileRepository opens (or initializes) the store at path.
func NewJSONFileRepository(path string, logger *slog.Logger) (*JSONFileRepository, error) {
	r := &JSONFileRepository{
		path:     path,
		logger:   logger,
		invoices: make(map[string]*invoice.Record),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("failed to read store file: %w", err)
	default:
		var records []*invoice.Record
		if jsonErr := json.Unmarshal(data, &records); jsonErr != nil {
			logger.Warn("store file is corrupt, starting empty",
				slog.String("path", path),
				slog.Any("error", jsonErr))
			break
		}
		for _, rec := range records {
			r.invoices[rec.ID] = rec
		}
		logger.Info("invoice store loaded",
			slog.String("path", path),
			slog.Int("count", len(records)))
	}

	return r, nil
}

// Create stores a new invoice and persists the snapshot.
func (r *JSONFileRepository) Create(_ context.Context, rec *invoice.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[rec.ID] = rec
	return r.persistLocked()
}

// GetByID returns the invoice with the given ID.
func (r *JSONFileRepository) GetByID(_ context.Context, id string) (*invoice.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

// GetByNumero returns the first invoice with the given document number.
func (r *JSONFileRepository) GetByNumero(_ context.Context, numero string) (*invoice.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.invoices {
		if rec.NumeroFatura == numero {
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// List returns a filtered, sorted, paginated view of the store.
func (r *JSONFileRepository) List(_ context.Context, f Filter) (*Page, error) {
	f.normalize()

	r.mu.RLock()
	matched := make([]*invoice.Record, 0, len(r.invoices))
	for _, rec := range r.invoices {
		if matches(rec, f) {
			out := *rec
			matched = append(matched, &out)
		}
	}
	r.mu.RUnlock()

	sortRecords(matched, f.SortBy, f.SortAsc)

	total := len(matched)
	totalPages := (total + f.Limit - 1) / f.Limit
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}

	return &Page{
		Items:      matched[start:end],
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: totalPages,
		HasNext:    f.Page < totalPages,
		HasPrev:    f.Page > 1,
	}, nil
}

// All returns every stored invoice, newest first.
func (r *JSONFileRepository) All(_ context.Context) ([]*invoice.Record, error) {
	r.mu.RLock()
	out := make([]*invoice.Record, 0, len(r.invoices))
	for _, rec := range r.invoices {
		cp := *rec
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sortRecords(out, "createdAt", false)
	return out, nil
}

// Update applies a partial update. ID and CreatedAt cannot change.
func (r *JSONFileRepository) Update(_ context.Context, id string, in invoice.UpdateInput) (*invoice.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	in.Apply(rec)
	if err := r.persistLocked(); err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

// UpdateStatus transitions the invoice to a new status.
func (r *JSONFileRepository) UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Record, error) {
	return r.Update(ctx, id, invoice.UpdateInput{Status: &status})
}

// Delete removes an invoice. If the snapshot cannot be written the
// record is restored so memory and file stay in sync.
func (r *JSONFileRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.invoices[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.invoices, id)
	if err := r.persistLocked(); err != nil {
		r.invoices[id] = rec
		return err
	}
	return nil
}

// Stats aggregates counts and totals over the whole store.
func (r *JSONFileRepository) Stats(_ context.Context) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &Stats{
		Total:      len(r.invoices),
		PorStatus:  make(map[invoice.Status]int),
		ValorTotal: decimal.Zero,
	}
	for _, rec := range r.invoices {
		stats.PorStatus[rec.Status]++
		stats.ValorTotal = stats.ValorTotal.Add(ptnum.ParseOrZero(rec.Total))
		if stats.UltimaFatura == nil || rec.CreatedAt.After(stats.UltimaFatura.CreatedAt) {
			cp := *rec
			stats.UltimaFatura = &cp
		}
	}
	return stats, nil
}

// Snapshot forces a persist of the current state; the cron job calls this
// nightly as a belt besides the per-mutation writes.
func (r *JSONFileRepository) Snapshot() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistLocked()
}

// persistLocked writes the store atomically: temp file then rename.
// Caller must hold the write lock.
func (r *JSONFileRepository) persistLocked() error {
	records := make([]*invoice.Record, 0, len(r.invoices))
	for _, rec := range r.invoices {
		records = append(records, rec)
	}
	sortRecords(records, "createdAt", true)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func matches(rec *invoice.Record, f Filter) bool {
	if f.Status != "" && string(rec.Status) != f.Status {
		return false
	}
	if f.NIFAdquirente != "" && rec.NIFAdquirente != f.NIFAdquirente {
		return false
	}
	if f.DataInicio != "" && rec.DataFatura < f.DataInicio {
		return false
	}
	if f.DataFim != "" && rec.DataFatura > f.DataFim {
		return false
	}
	return true
}

func sortRecords(records []*invoice.Record, sortBy string, asc bool) {
	less := func(a, b *invoice.Record) bool {
		switch sortBy {
		case "dataFatura":
			return a.DataFatura < b.DataFatura
		case "numeroFatura":
			return strings.Compare(a.NumeroFatura, b.NumeroFatura) < 0
		case "total":
			return ptnum.ParseOrZero(a.Total).LessThan(ptnum.ParseOrZero(b.Total))
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if asc {
			return less(records[i], records[j])
		}
		return less(records[j], records[i])
	})
}
