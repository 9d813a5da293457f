package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/repository"
	invoicesvc "github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/service"
)

const sampleQR = "A:516562240*B:123456789*C:PT*D:FT*F:20251002*G:FT 2025/001234*N:230.00*O:1230.00"

func newTestIngest(t *testing.T) (*IngestService, *invoicesvc.InvoiceService) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := repository.NewJSONFileRepository(filepath.Join(t.TempDir(), "faturas.json"), logger)
	require.NoError(t, err)

	invoices, err := invoicesvc.NewInvoiceService(context.Background(), repo, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = invoices.Close() })

	return NewIngestService(invoices, logger), invoices
}

func TestScanQRStoresEnrichedRecord(t *testing.T) {
	ingest, invoices := newTestIngest(t)
	ctx := context.Background()

	result, err := ingest.ScanQR(ctx, sampleQR, true)
	require.NoError(t, err)
	require.True(t, result.Detected)
	require.NotNil(t, result.Record)

	rec := result.Record
	assert.Equal(t, "FT 2025/001234", rec.NumeroFatura)
	assert.Equal(t, "2025-10-02", rec.DataFatura)
	assert.Equal(t, "2025-11-01", rec.DataVencimento)
	// Issuer NIF resolved against the company directory.
	assert.Contains(t, rec.NomeEmitente, "AreLuna")
	assert.Equal(t, invoice.StatusPending, rec.Status)

	// NIF prefix 5 beats the amount step of the cascade.
	assert.Equal(t, "servicos-profissionais", result.Categoria.Category)
	assert.Equal(t, "Serviços Profissionais", result.CategoriaNome)

	assert.True(t, result.AutoEnable.IVAControl)
	assert.True(t, result.AutoEnable.AccountsPayable)
	assert.True(t, result.AutoEnable.Alerts)

	assert.Equal(t, "2240234251002", result.ReferenciaPagamento)

	assert.True(t, result.NIFEmitenteValido)
	assert.True(t, result.NIFAdquirenteValido)

	stored, err := invoices.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.NumeroFatura, stored.NumeroFatura)

	session := ingest.Session()
	assert.Equal(t, 1, session.Detected)
	assert.Equal(t, 1, session.Parsed)
}

func TestScanQRRejectsNonInvoice(t *testing.T) {
	ingest, invoices := newTestIngest(t)
	ctx := context.Background()

	result, err := ingest.ScanQR(ctx, "https://example.com/not-an-invoice", true)
	require.NoError(t, err)
	assert.False(t, result.Detected)
	assert.Nil(t, result.Record)

	page, err := invoices.List(ctx, repository.Filter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	session := ingest.Session()
	assert.Equal(t, 0, session.Detected)
	assert.Equal(t, 1, session.Errors)
}

func TestScanQRWithoutStore(t *testing.T) {
	ingest, invoices := newTestIngest(t)
	ctx := context.Background()

	result, err := ingest.ScanQR(ctx, sampleQR, false)
	require.NoError(t, err)
	assert.True(t, result.Detected)

	page, err := invoices.List(ctx, repository.Filter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestScanQRFlagsInvalidNIFs(t *testing.T) {
	ingest, _ := newTestIngest(t)

	// Both check digits are off by one; no F tag, so no due date either.
	result, err := ingest.ScanQR(context.Background(), "A:516562241*B:123456780*G:FT 2025/9*O:100.00", false)
	require.NoError(t, err)
	require.True(t, result.Detected)

	assert.False(t, result.NIFEmitenteValido)
	assert.False(t, result.NIFAdquirenteValido)
	assert.Empty(t, result.Record.DataVencimento)

	history := ingest.SessionHistory()
	var warned bool
	for _, entry := range history {
		if entry.Level == "warn" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestImportCSV(t *testing.T) {
	ingest, invoices := newTestIngest(t)
	ctx := context.Background()

	csv := "Numero,Data,Cliente,NIF,Valor\nFT 1,2025-01-01,ACME,501442600,\"1.000,00\"\nFT 2,2025-01-02,Beta,123456789,50"
	result, err := ingest.ImportCSV(ctx, []byte(csv), true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Stored)
	require.Len(t, result.Records, 2)
	assert.Equal(t, invoice.StatusDraft, result.Records[0].Status)
	assert.Equal(t, "ACME", result.Records[0].NomeCliente)
	assert.Equal(t, "1000", result.Records[0].Total)

	page, err := invoices.List(ctx, repository.Filter{Status: string(invoice.StatusDraft)})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestImportSAFT(t *testing.T) {
	ingest, invoices := newTestIngest(t)
	ctx := context.Background()

	xml := `<?xml version="1.0" encoding="UTF-8"?>
<AuditFile><Header><AuditFileVersion>1.04_01</AuditFileVersion></Header>
<SourceDocuments><SalesInvoices><Invoice>
<InvoiceNo>FT 2025/001</InvoiceNo><InvoiceDate>2025-10-02</InvoiceDate><InvoiceType>FT</InvoiceType>
<CustomerName>Cliente Exemplo</CustomerName><CustomerTaxID>123456789</CustomerTaxID>
<DocumentTotals><TaxPayable>23.00</TaxPayable><GrossTotal>123.00</GrossTotal></DocumentTotals>
</Invoice></SalesInvoices></SourceDocuments></AuditFile>`

	result, err := ingest.ImportSAFT(ctx, []byte(xml), true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
	require.Len(t, result.Records, 1)

	rec := result.Records[0]
	assert.Equal(t, invoice.StatusProcessed, rec.Status)
	assert.Equal(t, "Cliente Exemplo", rec.NomeCliente)
	assert.Equal(t, "123", rec.Total)
	assert.Equal(t, "100", rec.TotalIVA)

	page, err := invoices.List(ctx, repository.Filter{Status: string(invoice.StatusProcessed)})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestImportSAFTInvalidStructure(t *testing.T) {
	ingest, _ := newTestIngest(t)

	_, err := ingest.ImportSAFT(context.Background(), []byte(`<?xml version="1.0"?><AuditFile><Header/></AuditFile>`), true)
	assert.Error(t, err)
}

func TestExportSAFT(t *testing.T) {
	ingest, _ := newTestIngest(t)
	ctx := context.Background()

	_, err := ingest.ScanQR(ctx, sampleQR, true)
	require.NoError(t, err)

	out, err := ingest.ExportSAFT(ctx)
	require.NoError(t, err)

	xml := string(out)
	assert.Contains(t, xml, "<InvoiceNo>FT 2025/001234</InvoiceNo>")
	assert.Contains(t, xml, "<GrossTotal>1230.00</GrossTotal>")

	report := ingest.ValidateSAFT(out)
	assert.True(t, report.Valid)
}

func TestSessionReset(t *testing.T) {
	ingest, _ := newTestIngest(t)

	_, err := ingest.ScanQR(context.Background(), sampleQR, false)
	require.NoError(t, err)
	require.NotZero(t, ingest.Session().ScanCount)

	ingest.ResetSession()
	assert.Zero(t, ingest.Session().ScanCount)
	assert.Empty(t, ingest.SessionHistory())
}
