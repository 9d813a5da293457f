package csvparser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/qrparser"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
)

func TestParseBasic(t *testing.T) {
	csv := `Numero,Data,Cliente,NIF,Valor,Tipo
FT 2025/001,2025-10-02,Vitrosam Lda,516562240,"1.234,56",FT
FT 2025/002,2025-10-03,Cliente Dois,123456789,100.50,FT`

	result, err := NewParser().Parse([]byte(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.ParsedRows)
	assert.Equal(t, 0, result.SkippedRows)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Invoices, 2)

	first := result.Invoices[0]
	assert.Equal(t, "FT 2025/001", first.NumeroFatura)
	assert.Equal(t, "2025-10-02", first.Data)
	assert.Equal(t, "Vitrosam Lda", first.NomeCliente)
	assert.Equal(t, "516562240", first.NIFCliente)
	assert.Equal(t, "1234.56", first.ValorTotal.String())
	assert.Equal(t, "FT", first.Tipo)

	assert.Equal(t, "100.5", result.Invoices[1].ValorTotal.String())
}

func TestParseSynonymHeaders(t *testing.T) {
	csv := `InvoiceNo;Date;Customer;TaxID;Amount
FT 1;2025-01-15;ACME;501442600;42,00`

	result, err := NewParser().Parse([]byte(csv))
	require.NoError(t, err)
	require.Len(t, result.Invoices, 1)

	inv := result.Invoices[0]
	assert.Equal(t, "FT 1", inv.NumeroFatura)
	assert.Equal(t, "2025-01-15", inv.Data)
	assert.Equal(t, "ACME", inv.NomeCliente)
	assert.Equal(t, "501442600", inv.NIFCliente)
	assert.Equal(t, "42", inv.ValorTotal.String())
}

func TestParseHeaderCaseInsensitive(t *testing.T) {
	csv := "NUMERO,VALOR\nFT 1,10"

	result, err := NewParser().Parse([]byte(csv))
	require.NoError(t, err)
	require.Len(t, result.Invoices, 1)
	assert.Equal(t, "FT 1", result.Invoices[0].NumeroFatura)
}

func TestParseSkipsEmptyRows(t *testing.T) {
	csv := "Numero,Data,Valor\nFT 1,2025-01-01,10\n,,\nFT 2,2025-01-02,20"

	result, err := NewParser().Parse([]byte(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.ParsedRows)
	assert.Equal(t, 1, result.SkippedRows)
}

func TestParseInvalidAmount(t *testing.T) {
	csv := "Numero,Valor\nFT 1,abc\nFT 2,50"

	result, err := NewParser().Parse([]byte(csv))
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "valor", result.Errors[0].Column)
	assert.Contains(t, result.Errors[0].Error(), "row 2, column valor")

	require.Len(t, result.Invoices, 1)
	assert.Equal(t, "FT 2", result.Invoices[0].NumeroFatura)
}

func TestParseLatin1(t *testing.T) {
	utf8CSV := "Numero,Cliente,Valor\nFT 1,Construções Lda,10"
	latin1, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(utf8CSV))
	require.NoError(t, err)

	result, err := NewParser().Parse(latin1)
	require.NoError(t, err)
	require.Len(t, result.Invoices, 1)
	assert.Equal(t, "Construções Lda", result.Invoices[0].NomeCliente)
}

func TestParseBOM(t *testing.T) {
	csv := "\ufeffNumero,Valor\nFT 1,10"

	result, err := NewParser().Parse([]byte(csv))
	require.NoError(t, err)
	require.Len(t, result.Invoices, 1)
	assert.Equal(t, "FT 1", result.Invoices[0].NumeroFatura)
}

func TestExport(t *testing.T) {
	rec := invoice.NewRecord(&qrparser.Fields{
		NumeroDocumento: "FT 2025/001",
		DataFatura:      "2025-10-02",
		NIFAdquirente:   "123456789",
		Total:           "285.00",
		TipoDocumento:   "Fatura",
	})
	rec.NomeCliente = "Cliente, Lda"
	rec.CreatedAt = time.Now().UTC()

	out, err := Export([]*invoice.Record{rec})
	require.NoError(t, err)

	content := string(out)
	assert.True(t, strings.HasPrefix(content, "\ufeff"))
	assert.Contains(t, content, "Numero,Data,Cliente,NIF,Valor,Tipo,Status")
	// Comma in the name forces quoting.
	assert.Contains(t, content, `"Cliente, Lda"`)
	assert.Contains(t, content, "285.00")
	assert.Contains(t, content, "pending")
}
