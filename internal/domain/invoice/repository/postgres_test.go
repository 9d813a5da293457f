package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/qrparser"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
)

var invoiceColumnList = []string{
	"id", "numero_fatura", "nome_cliente", "nome_emitente", "nif_emitente", "nif_adquirente",
	"pais_emitente", "pais_adquirente", "data_fatura", "data_vencimento", "tipo_documento", "codigo_documento",
	"total", "total_iva", "base_tributavel", "moeda", "iban", "linha_digitavel", "descricao", "categoria",
	"raw_qr_content", "status", "created_at", "updated_at",
}

func recordRow(rec *invoice.Record) *pgxmock.Rows {
	return pgxmock.NewRows(invoiceColumnList).AddRow(
		rec.ID, rec.NumeroFatura, rec.NomeCliente, rec.NomeEmitente, rec.NIFEmitente, rec.NIFAdquirente,
		rec.PaisEmitente, rec.PaisAdquirente, rec.DataFatura, rec.DataVencimento, rec.TipoDocumento, rec.CodigoDocumento,
		rec.Total, rec.TotalIVA, rec.BaseTributavel, rec.Moeda, rec.IBAN, rec.LinhaDigitavel, rec.Descricao, rec.Categoria,
		rec.RawQRContent, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
}

func TestPostgresCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresInvoiceRepository(mock)
	rec := invoice.NewRecord(&qrparser.Fields{NumeroDocumento: "FT 2025/1", Total: "100.00"})

	insertArgs := make([]any, len(invoiceColumnList))
	for i := range insertArgs {
		insertArgs[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO faturas").
		WithArgs(insertArgs...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresInvoiceRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM faturas WHERE id").
		WithArgs("INV-missing").
		WillReturnRows(pgxmock.NewRows(invoiceColumnList))

	_, err = repo.GetByID(context.Background(), "INV-missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByNumero(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresInvoiceRepository(mock)
	rec := invoice.NewRecord(&qrparser.Fields{NumeroDocumento: "FT 2025/9"})

	mock.ExpectQuery("SELECT (.+) FROM faturas WHERE numero_fatura").
		WithArgs("FT 2025/9").
		WillReturnRows(recordRow(rec))

	got, err := repo.GetByNumero(context.Background(), "FT 2025/9")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresInvoiceRepository(mock)

	mock.ExpectExec("DELETE FROM faturas").
		WithArgs("INV-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), "INV-1"))

	mock.ExpectExec("DELETE FROM faturas").
		WithArgs("INV-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "INV-2"), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresInvoiceRepository(mock)

	mock.ExpectQuery("SELECT status, total FROM faturas").
		WillReturnRows(pgxmock.NewRows([]string{"status", "total"}).
			AddRow(invoice.StatusPending, "100.00").
			AddRow(invoice.StatusPaid, "250,50"))

	last := invoice.NewRecord(&qrparser.Fields{NumeroDocumento: "FT 2025/2", Total: "250,50"})
	last.CreatedAt = time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM faturas ORDER BY created_at DESC LIMIT 1").
		WillReturnRows(recordRow(last))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.PorStatus[invoice.StatusPaid])
	assert.Equal(t, "350.5", stats.ValorTotal.String())
	require.NotNil(t, stats.UltimaFatura)
	assert.NoError(t, mock.ExpectationsWereMet())
}
