// Package csvparser extracts invoices from CSV exports of accounting
// tools. It uses gocsv for struct-based unmarshaling; column headers are
// matched case-insensitively against a set of common synonyms.
package csvparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	enc "github.com/FACorreiaa/fatura-tracker/pkg/encoding"
	"github.com/FACorreiaa/fatura-tracker/pkg/ptnum"
)

// invoiceRow is a raw CSV row. One field per known column synonym; the
// extractor coalesces them afterwards.
type invoiceRow struct {
	Numero       string `csv:"numero"`
	NumeroFatura string `csv:"numerofatura"`
	Invoice      string `csv:"invoice"`
	InvoiceNo    string `csv:"invoiceno"`

	Data        string `csv:"data"`
	Date        string `csv:"date"`
	DataEmissao string `csv:"dataemissao"`

	Cliente     string `csv:"cliente"`
	NomeCliente string `csv:"nomecliente"`
	Nome        string `csv:"nome"`
	Customer    string `csv:"customer"`

	NIF          string `csv:"nif"`
	NIFCliente   string `csv:"nifcliente"`
	TaxID        string `csv:"taxid"`
	NIPC         string `csv:"nipc"`
	Contribuinte string `csv:"contribuinte"`

	Valor      string `csv:"valor"`
	ValorTotal string `csv:"valortotal"`
	Total      string `csv:"total"`
	Amount     string `csv:"amount"`

	Tipo          string `csv:"tipo"`
	TipoDocumento string `csv:"tipodocumento"`
	Type          string `csv:"type"`
}

// ExtractedInvoice is one normalized CSV invoice.
type ExtractedInvoice struct {
	NumeroFatura string          `json:"numeroFatura"`
	Data         string          `json:"data"`
	NomeCliente  string          `json:"nomeCliente"`
	NIFCliente   string          `json:"nifCliente"`
	ValorTotal   decimal.Decimal `json:"valorTotal"`
	Tipo         string          `json:"tipo"`
}

// ParseError describes a problem with a specific row.
type ParseError struct {
	Row     int
	Column  string
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// ParseResult is the outcome of parsing one file.
type ParseResult struct {
	Invoices    []ExtractedInvoice
	Errors      []ParseError
	TotalRows   int
	ParsedRows  int
	SkippedRows int
}

// Parser reads invoice CSV files. Safe for concurrent use.
type Parser struct{}

// NewParser creates a CSV invoice parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes raw file bytes (any of UTF-8, Latin-1 or mojibake) and
// extracts invoices. Rows with no usable content are skipped; rows with
// unparseable amounts are reported in Errors but do not abort the file.
func (p *Parser) Parse(data []byte) (*ParseResult, error) {
	content := enc.DecodeBytes(data)
	content = strings.TrimPrefix(content, "\ufeff")

	r := csv.NewReader(strings.NewReader(lowercaseHeader(content)))
	r.Comma = detectDelimiter(content)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows []invoiceRow
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	result := &ParseResult{TotalRows: len(rows)}
	for i, row := range rows {
		rowNum := i + 2 // header is line 1

		numero := coalesce(row.Numero, row.NumeroFatura, row.Invoice, row.InvoiceNo)
		data := coalesce(row.Data, row.Date, row.DataEmissao)
		nome := coalesce(row.Cliente, row.NomeCliente, row.Nome, row.Customer)
		nif := coalesce(row.NIF, row.NIFCliente, row.TaxID, row.NIPC, row.Contribuinte)
		valor := coalesce(row.Valor, row.ValorTotal, row.Total, row.Amount)
		tipo := coalesce(row.Tipo, row.TipoDocumento, row.Type)

		if numero == "" && data == "" && nome == "" && valor == "" {
			result.SkippedRows++
			continue
		}

		parsed := ExtractedInvoice{
			NumeroFatura: numero,
			Data:         data,
			NomeCliente:  nome,
			NIFCliente:   nif,
			Tipo:         tipo,
		}
		if valor != "" {
			d, err := ptnum.Parse(valor)
			if err != nil {
				result.Errors = append(result.Errors, ParseError{
					Row:     rowNum,
					Column:  "valor",
					Message: fmt.Sprintf("invalid amount %q", valor),
				})
				result.SkippedRows++
				continue
			}
			parsed.ValorTotal = d
		}

		result.Invoices = append(result.Invoices, parsed)
		result.ParsedRows++
	}

	return result, nil
}

// Export renders stored invoices as a UTF-8 CSV with a BOM, which keeps
// Excel from guessing Latin-1.
func Export(records []*invoice.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")

	w := csv.NewWriter(&buf)
	header := []string{"Numero", "Data", "Cliente", "NIF", "Valor", "Tipo", "Status"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.NumeroFatura,
			rec.DataFatura,
			rec.NomeCliente,
			rec.NIFAdquirente,
			rec.Total,
			rec.TipoDocumento,
			string(rec.Status),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// lowercaseHeader folds the header line so struct tags match any column
// casing.
func lowercaseHeader(content string) string {
	idx := strings.IndexByte(content, '\n')
	if idx < 0 {
		return strings.ToLower(content)
	}
	return strings.ToLower(content[:idx]) + content[idx:]
}

// detectDelimiter picks the separator with the most hits on the header
// line. Defaults to comma.
func detectDelimiter(content string) rune {
	header := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		header = content[:idx]
	}

	best := ','
	bestCount := strings.Count(header, ",")
	for _, cand := range []rune{';', '\t', '|'} {
		if c := strings.Count(header, string(cand)); c > bestCount {
			best = cand
			bestCount = c
		}
	}
	return best
}

func coalesce(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
