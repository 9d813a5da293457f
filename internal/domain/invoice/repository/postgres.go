package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/pkg/ptnum"
)

// Querier is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresInvoiceRepository implements InvoiceRepository on PostgreSQL.
type PostgresInvoiceRepository struct {
	pool Querier
}

// NewPostgresInvoiceRepository creates a new PostgreSQL invoice repository.
func NewPostgresInvoiceRepository(pool Querier) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{pool: pool}
}

const invoiceColumns = `id, numero_fatura, nome_cliente, nome_emitente, nif_emitente, nif_adquirente,
	pais_emitente, pais_adquirente, data_fatura, data_vencimento, tipo_documento, codigo_documento,
	total, total_iva, base_tributavel, moeda, iban, linha_digitavel, descricao, categoria,
	raw_qr_content, status, created_at, updated_at`

// Create inserts a new invoice.
func (r *PostgresInvoiceRepository) Create(ctx context.Context, rec *invoice.Record) error {
	query := `
		INSERT INTO faturas (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.NumeroFatura, rec.NomeCliente, rec.NomeEmitente, rec.NIFEmitente, rec.NIFAdquirente,
		rec.PaisEmitente, rec.PaisAdquirente, rec.DataFatura, rec.DataVencimento, rec.TipoDocumento, rec.CodigoDocumento,
		rec.Total, rec.TotalIVA, rec.BaseTributavel, rec.Moeda, rec.IBAN, rec.LinhaDigitavel, rec.Descricao, rec.Categoria,
		rec.RawQRContent, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice by ID.
func (r *PostgresInvoiceRepository) GetByID(ctx context.Context, id string) (*invoice.Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM faturas WHERE id = $1`, id)
	return scanRecord(row)
}

// GetByNumero retrieves the most recent invoice with the given number.
func (r *PostgresInvoiceRepository) GetByNumero(ctx context.Context, numero string) (*invoice.Record, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM faturas WHERE numero_fatura = $1 ORDER BY created_at DESC LIMIT 1`, numero)
	return scanRecord(row)
}

var sortColumns = map[string]string{
	"createdAt":    "created_at",
	"dataFatura":   "data_fatura",
	"numeroFatura": "numero_fatura",
	"total":        "total",
}

// List returns a filtered, paginated page of invoices.
func (r *PostgresInvoiceRepository) List(ctx context.Context, f Filter) (*Page, error) {
	f.normalize()

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		conds = append(conds, "status = "+arg(f.Status))
	}
	if f.NIFAdquirente != "" {
		conds = append(conds, "nif_adquirente = "+arg(f.NIFAdquirente))
	}
	if f.DataInicio != "" {
		conds = append(conds, "data_fatura >= "+arg(f.DataInicio))
	}
	if f.DataFim != "" {
		conds = append(conds, "data_fatura <= "+arg(f.DataFim))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faturas"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if f.SortAsc {
		dir = "ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM faturas%s ORDER BY %s %s LIMIT %s OFFSET %s",
		invoiceColumns, where, col, dir, arg(f.Limit), arg((f.Page-1)*f.Limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	items, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	totalPages := (total + f.Limit - 1) / f.Limit
	return &Page{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: totalPages,
		HasNext:    f.Page < totalPages,
		HasPrev:    f.Page > 1,
	}, nil
}

// All returns every invoice, newest first.
func (r *PostgresInvoiceRepository) All(ctx context.Context) ([]*invoice.Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM faturas ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Update applies a partial update and returns the stored row.
func (r *PostgresInvoiceRepository) Update(ctx context.Context, id string, in invoice.UpdateInput) (*invoice.Record, error) {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Apply(rec)

	query := `
		UPDATE faturas
		SET numero_fatura = $2, nome_cliente = $3, nome_emitente = $4, nif_emitente = $5,
		    nif_adquirente = $6, data_fatura = $7, data_vencimento = $8, tipo_documento = $9,
		    total = $10, total_iva = $11, base_tributavel = $12, moeda = $13, iban = $14,
		    linha_digitavel = $15, descricao = $16, categoria = $17, status = $18, updated_at = $19
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		rec.ID, rec.NumeroFatura, rec.NomeCliente, rec.NomeEmitente, rec.NIFEmitente,
		rec.NIFAdquirente, rec.DataFatura, rec.DataVencimento, rec.TipoDocumento,
		rec.Total, rec.TotalIVA, rec.BaseTributavel, rec.Moeda, rec.IBAN,
		rec.LinhaDigitavel, rec.Descricao, rec.Categoria, rec.Status, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return rec, nil
}

// UpdateStatus transitions an invoice to a new status.
func (r *PostgresInvoiceRepository) UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Record, error) {
	return r.Update(ctx, id, invoice.UpdateInput{Status: &status})
}

// Delete removes an invoice.
func (r *PostgresInvoiceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM faturas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates counts and totals. Totals are stored as the raw
// strings captured at ingestion, so the sum happens client-side.
func (r *PostgresInvoiceRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		PorStatus:  make(map[invoice.Status]int),
		ValorTotal: decimal.Zero,
	}

	rows, err := r.pool.Query(ctx, `SELECT status, total FROM faturas`)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status invoice.Status
		var total string
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.Total++
		stats.PorStatus[status]++
		stats.ValorTotal = stats.ValorTotal.Add(ptnum.ParseOrZero(total))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats rows: %w", err)
	}

	last, err := r.latest(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	stats.UltimaFatura = last
	return stats, nil
}

func (r *PostgresInvoiceRepository) latest(ctx context.Context) (*invoice.Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM faturas ORDER BY created_at DESC LIMIT 1`)
	return scanRecord(row)
}

func scanRecord(row pgx.Row) (*invoice.Record, error) {
	rec := &invoice.Record{}
	err := row.Scan(
		&rec.ID, &rec.NumeroFatura, &rec.NomeCliente, &rec.NomeEmitente, &rec.NIFEmitente, &rec.NIFAdquirente,
		&rec.PaisEmitente, &rec.PaisAdquirente, &rec.DataFatura, &rec.DataVencimento, &rec.TipoDocumento, &rec.CodigoDocumento,
		&rec.Total, &rec.TotalIVA, &rec.BaseTributavel, &rec.Moeda, &rec.IBAN, &rec.LinhaDigitavel, &rec.Descricao, &rec.Categoria,
		&rec.RawQRContent, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	return rec, nil
}

func scanRecords(rows pgx.Rows) ([]*invoice.Record, error) {
	var out []*invoice.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	return out, nil
}
