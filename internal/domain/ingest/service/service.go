// Package service orchestrates invoice ingestion: QR scans, CSV and SAF-T
// imports, and SAF-T exports. Parsed documents are enriched (due date,
// IBAN, payment reference, category, workflow flags) before storage.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/csvparser"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/qrparser"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/saft"
	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	invoicesvc "github.com/FACorreiaa/fatura-tracker/internal/domain/invoice/service"
	"github.com/FACorreiaa/fatura-tracker/pkg/nif"
	"github.com/FACorreiaa/fatura-tracker/pkg/observability"
	"github.com/FACorreiaa/fatura-tracker/pkg/ptnum"
)

// ScanResult is the full outcome of one QR scan.
type ScanResult struct {
	Detected bool             `json:"detected"`
	Fields   *qrparser.Fields `json:"fields,omitempty"`
	Record   *invoice.Record  `json:"record,omitempty"`

	Categoria     invoice.CategorySuggestion `json:"categoria"`
	CategoriaNome string                     `json:"categoriaNome,omitempty"`
	AutoEnable    invoice.AutoEnableFlags    `json:"autoEnable"`

	ReferenciaPagamento string `json:"referenciaPagamento,omitempty"`
	IBAN                string `json:"iban,omitempty"`

	NIFEmitenteValido   bool `json:"nifEmitenteValido"`
	NIFAdquirenteValido bool `json:"nifAdquirenteValido"`
}

// ImportResult summarizes a CSV or SAF-T bulk import.
type ImportResult struct {
	Source    string            `json:"source"`
	Total     int               `json:"total"`
	Stored    int               `json:"stored"`
	Skipped   int               `json:"skipped"`
	RowErrors []string          `json:"rowErrors,omitempty"`
	Records   []*invoice.Record `json:"records"`
}

// IngestService wires the parsers to the invoice store.
type IngestService struct {
	parser      *qrparser.Parser
	csv         *csvparser.Parser
	categorizer *invoice.Categorizer
	directory   *invoice.CompanyDirectory
	invoices    *invoicesvc.InvoiceService
	session     *qrparser.ScanSession
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewIngestService builds the ingestion pipeline on top of the invoice
// service.
func NewIngestService(invoices *invoicesvc.InvoiceService, logger *slog.Logger) *IngestService {
	directory := invoice.NewCompanyDirectory()
	return &IngestService{
		parser:      qrparser.NewParser(qrparser.Config{CompanyLookup: directory.LookupNIF}),
		csv:         csvparser.NewParser(),
		categorizer: invoice.NewCategorizer(),
		directory:   directory,
		invoices:    invoices,
		session:     qrparser.NewScanSession(),
		logger:      logger,
		tracer:      otel.Tracer("ingest"),
	}
}

// ScanQR normalizes and parses one QR payload. Payloads that do not look
// like AT invoices return Detected=false without error. When store is true
// the enriched record is persisted.
func (s *IngestService) ScanQR(ctx context.Context, raw string, store bool) (*ScanResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.ScanQR")
	defer span.End()
	start := time.Now()

	normalized, changed := qrparser.Normalize(raw)
	if changed {
		s.session.Log("info", "payload normalized before parsing")
	}

	if !qrparser.IsATInvoice(normalized) {
		s.session.RecordError(time.Since(start))
		s.session.Log("warn", "payload rejected: not an AT invoice")
		observability.ScansTotal.WithLabelValues("rejected").Inc()
		span.SetAttributes(attribute.Bool("scan.detected", false))
		return &ScanResult{Detected: false}, nil
	}
	s.session.RecordDetection()
	observability.ScansTotal.WithLabelValues("detected").Inc()

	fields := s.parser.Parse(normalized)
	result := s.enrich(fields)

	if store {
		if err := s.invoices.Create(ctx, result.Record); err != nil {
			s.session.RecordError(time.Since(start))
			observability.ScansTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to store scanned invoice: %w", err)
		}
		observability.InvoicesIngestedTotal.WithLabelValues("qr").Inc()
	}

	s.session.RecordSuccess(time.Since(start))
	s.session.Log("info", fmt.Sprintf("parsed invoice %s", fields.NumeroDocumento))
	observability.ScansTotal.WithLabelValues("parsed").Inc()
	span.SetAttributes(
		attribute.Bool("scan.detected", true),
		attribute.String("scan.categoria", result.Categoria.Category),
	)
	return result, nil
}

func (s *IngestService) enrich(fields *qrparser.Fields) *ScanResult {
	rec := invoice.NewRecord(fields)
	rec.DataVencimento = invoice.DueDate(fields.DataFatura)
	rec.IBAN = invoice.ExtractIBAN(fields)
	rec.LinhaDigitavel = invoice.PaymentReference(fields)

	suggestion := s.categorizer.Suggest(fields)
	rec.Categoria = suggestion.Category

	emitenteOK := nif.Valid(fields.NIFEmitente)
	adquirenteOK := nif.Valid(fields.NIFAdquirente)
	if fields.NIFEmitente != "" && !emitenteOK {
		s.session.Log("warn", fmt.Sprintf("NIF emitente inválido: %s", fields.NIFEmitente))
	}
	if fields.NIFAdquirente != "" && !adquirenteOK {
		s.session.Log("warn", fmt.Sprintf("NIF adquirente inválido: %s", fields.NIFAdquirente))
	}

	return &ScanResult{
		Detected:            true,
		Fields:              fields,
		Record:              rec,
		Categoria:           suggestion,
		CategoriaNome:       invoice.CategoryDisplayName(suggestion.Category),
		AutoEnable:          invoice.AutoEnable(fields),
		ReferenciaPagamento: rec.LinhaDigitavel,
		IBAN:                rec.IBAN,
		NIFEmitenteValido:   emitenteOK,
		NIFAdquirenteValido: adquirenteOK,
	}
}

// ImportCSV parses a CSV file and optionally stores every extracted
// invoice as a draft.
func (s *IngestService) ImportCSV(ctx context.Context, data []byte, store bool) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.ImportCSV")
	defer span.End()

	parsed, err := s.csv.Parse(data)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Source:  "csv",
		Total:   parsed.TotalRows,
		Skipped: parsed.SkippedRows,
	}
	for _, rowErr := range parsed.Errors {
		result.RowErrors = append(result.RowErrors, rowErr.Error())
	}

	for _, row := range parsed.Invoices {
		rec := invoice.NewRecord(&qrparser.Fields{
			NumeroDocumento: row.NumeroFatura,
			DataFatura:      row.Data,
			NIFAdquirente:   row.NIFCliente,
			TipoDocumento:   row.Tipo,
			Total:           row.ValorTotal.String(),
		})
		rec.NomeCliente = row.NomeCliente
		rec.Status = invoice.StatusDraft
		result.Records = append(result.Records, rec)

		if store {
			if err := s.invoices.Create(ctx, rec); err != nil {
				return nil, fmt.Errorf("failed to store CSV invoice %q: %w", row.NumeroFatura, err)
			}
			observability.InvoicesIngestedTotal.WithLabelValues("csv").Inc()
			result.Stored++
		}
	}

	span.SetAttributes(attribute.Int("csv.rows", result.Total), attribute.Int("csv.stored", result.Stored))
	s.logger.Info("CSV import finished",
		slog.Int("rows", result.Total),
		slog.Int("stored", result.Stored),
		slog.Int("errors", len(result.RowErrors)))
	return result, nil
}

// ImportSAFT extracts the sales invoices of a SAF-T file and optionally
// stores them as processed records.
func (s *IngestService) ImportSAFT(ctx context.Context, data []byte, store bool) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.ImportSAFT")
	defer span.End()

	extracted, err := saft.ExtractInvoices(data)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Source: "saft", Total: len(extracted)}
	for _, inv := range extracted {
		rec := invoice.NewRecord(&qrparser.Fields{
			NumeroDocumento: inv.NumeroFatura,
			DataFatura:      inv.Data,
			NIFAdquirente:   inv.NIFCliente,
			TipoDocumento:   inv.Tipo,
			Total:           inv.ValorTotal.String(),
			TotalIVA:        inv.ValorIVA.String(),
			BaseTributavel:  inv.ValorBase.String(),
		})
		rec.NomeCliente = inv.NomeCliente
		rec.Status = invoice.StatusProcessed
		result.Records = append(result.Records, rec)

		if store {
			if err := s.invoices.Create(ctx, rec); err != nil {
				return nil, fmt.Errorf("failed to store SAF-T invoice %q: %w", inv.NumeroFatura, err)
			}
			observability.InvoicesIngestedTotal.WithLabelValues("saft").Inc()
			result.Stored++
		}
	}

	span.SetAttributes(attribute.Int("saft.invoices", result.Total), attribute.Int("saft.stored", result.Stored))
	return result, nil
}

// ValidateSAFT checks the structural health of a SAF-T file.
func (s *IngestService) ValidateSAFT(data []byte) *saft.ValidationReport {
	return saft.Validate(data)
}

// SAFTHeader extracts the header of a SAF-T file.
func (s *IngestService) SAFTHeader(data []byte) (*saft.Header, error) {
	return saft.ExtractHeader(data)
}

// ExportSAFT renders every stored invoice as a purchase-invoice SAF-T
// file.
func (s *IngestService) ExportSAFT(ctx context.Context) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.ExportSAFT")
	defer span.End()

	records, err := s.invoices.ExportCSVRecords(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]saft.ExportInvoice, 0, len(records))
	for _, rec := range records {
		rows = append(rows, saft.ExportInvoice{
			InvoiceNo:   rec.NumeroFatura,
			InvoiceDate: rec.DataFatura,
			SupplierID:  rec.NIFEmitente,
			CustomerID:  rec.NIFAdquirente,
			TaxPayable:  ptnum.ParseOrZero(rec.TotalIVA),
			NetTotal:    ptnum.ParseOrZero(rec.BaseTributavel),
			GrossTotal:  ptnum.ParseOrZero(rec.Total),
		})
	}

	span.SetAttributes(attribute.Int("saft.exported", len(rows)))
	return saft.BuildExport(saft.DefaultExportHeader(), rows), nil
}

// Session returns the scan session counters.
func (s *IngestService) Session() qrparser.Snapshot {
	return s.session.Snapshot()
}

// SessionHistory returns the scan session log.
func (s *IngestService) SessionHistory() []qrparser.LogEntry {
	return s.session.History()
}

// ResetSession clears scan statistics.
func (s *IngestService) ResetSession() {
	s.session.Reset()
}
