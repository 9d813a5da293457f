// Package saft reads and writes SAF-T PT audit files (Portaria 302/2016).
// Files in the wild declare either UTF-8 or ISO-8859-1 and frequently lie
// about it, so every free-text field goes through mojibake repair after
// decoding.
package saft

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	enc "github.com/FACorreiaa/fatura-tracker/pkg/encoding"
	"github.com/FACorreiaa/fatura-tracker/pkg/ptnum"
)

// ErrNoSourceDocuments is returned by ExtractInvoices when the file has no
// SourceDocuments section.
var ErrNoSourceDocuments = errors.New("estrutura SAF-T inválida: SourceDocuments não encontrado")

// ErrNoHeader is returned by ExtractHeader when the Header is missing.
var ErrNoHeader = errors.New("cabeçalho SAF-T não encontrado")

// standardVersions are the SAF-T PT versions accepted without warnings.
var standardVersions = map[string]bool{
	"1.04_01": true,
	"1.03_01": true,
}

// Invoice is a sales invoice extracted from SourceDocuments.
type Invoice struct {
	NumeroFatura string `json:"numeroFatura"`
	Data         string `json:"data"`
	Tipo         string `json:"tipo"`
	Status       string `json:"status"`

	NomeCliente   string `json:"nomeCliente"`
	NIFCliente    string `json:"nifCliente"`
	MoradaCliente string `json:"moradaCliente,omitempty"`

	ValorBase  decimal.Decimal `json:"valorBase"`
	ValorIVA   decimal.Decimal `json:"valorIVA"`
	ValorTotal decimal.Decimal `json:"valorTotal"`

	Linhas []Line `json:"linhas"`

	Hash        string `json:"hash,omitempty"`
	HashControl string `json:"hashControl,omitempty"`
	Periodo     string `json:"periodo,omitempty"`
}

// Line is one invoice line.
type Line struct {
	Numero        string          `json:"numero"`
	Descricao     string          `json:"descricao"`
	Quantidade    decimal.Decimal `json:"quantidade"`
	PrecoUnitario decimal.Decimal `json:"precoUnitario"`
	Desconto      decimal.Decimal `json:"desconto"`
	TaxaIVA       decimal.Decimal `json:"taxaIVA"`
	Total         decimal.Decimal `json:"total"`
}

// Header holds the audit file header fields.
type Header struct {
	AuditFileVersion string `json:"auditFileVersion"`
	CompanyID        string `json:"companyID"`
	NomeEmpresa      string `json:"nomeEmpresa"`
	NIFEmpresa       string `json:"nifEmpresa"`
	MoradaEmpresa    string `json:"moradaEmpresa,omitempty"`
	AnoFiscal        string `json:"anoFiscal"`
	DataInicio       string `json:"dataInicio"`
	DataFim          string `json:"dataFim"`
	Moeda            string `json:"moeda"`
	DataProducao     string `json:"dataProducao"`
	Software         string `json:"software,omitempty"`
	VersaoSoftware   string `json:"versaoSoftware,omitempty"`
}

// ValidationReport is the outcome of Validate.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Version  string   `json:"version,omitempty"`
}

type auditFile struct {
	XMLName         xml.Name            `xml:"AuditFile"`
	Header          *xmlHeader          `xml:"Header"`
	SourceDocuments *xmlSourceDocuments `xml:"SourceDocuments"`
}

type xmlHeader struct {
	AuditFileVersion      string `xml:"AuditFileVersion"`
	CompanyID             string `xml:"CompanyID"`
	CompanyName           string `xml:"CompanyName"`
	TaxRegistrationNumber string `xml:"TaxRegistrationNumber"`
	FiscalYear            string `xml:"FiscalYear"`
	StartDate             string `xml:"StartDate"`
	EndDate               string `xml:"EndDate"`
	CurrencyCode          string `xml:"CurrencyCode"`
	DateCreated           string `xml:"DateCreated"`
	SoftwareName          string `xml:"SoftwareName"`
	SoftwareVersion       string `xml:"SoftwareVersion"`
	CompanyAddress        struct {
		AddressDetail string `xml:"AddressDetail"`
	} `xml:"CompanyAddress"`
}

type xmlSourceDocuments struct {
	SalesInvoices *struct {
		Invoice []xmlInvoice `xml:"Invoice"`
	} `xml:"SalesInvoices"`
}

type xmlInvoice struct {
	InvoiceNo     string `xml:"InvoiceNo"`
	InvoiceDate   string `xml:"InvoiceDate"`
	InvoiceType   string `xml:"InvoiceType"`
	InvoiceStatus *struct {
		InvoiceStatusDate string `xml:"InvoiceStatusDate"`
	} `xml:"InvoiceStatus"`
	CustomerName  string `xml:"CustomerName"`
	CustomerTaxID string `xml:"CustomerTaxID"`
	BillTo        *struct {
		AddressDetail string `xml:"AddressDetail"`
	} `xml:"BillTo"`
	DocumentTotals struct {
		TaxPayable string `xml:"TaxPayable"`
		NetTotal   string `xml:"NetTotal"`
		GrossTotal string `xml:"GrossTotal"`
	} `xml:"DocumentTotals"`
	Line        []xmlLine `xml:"Line"`
	Hash        string    `xml:"Hash"`
	HashControl string    `xml:"HashControl"`
	Period      string    `xml:"Period"`
}

type xmlLine struct {
	LineNumber       string `xml:"LineNumber"`
	Description      string `xml:"Description"`
	Quantity         string `xml:"Quantity"`
	UnitPrice        string `xml:"UnitPrice"`
	SettlementAmount string `xml:"SettlementAmount"`
	CreditAmount     string `xml:"CreditAmount"`
	DebitAmount      string `xml:"DebitAmount"`
	Tax              struct {
		TaxPercentage string `xml:"TaxPercentage"`
	} `xml:"Tax"`
}

var encodingDecl = regexp.MustCompile(`(?i)encoding=["']([^"']+)["']`)

// DetectEncoding reads the charset declared in the XML prolog, looking at
// the first 200 bytes. Defaults to utf-8.
func DetectEncoding(data []byte) string {
	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	m := encodingDecl.FindSubmatch(sample)
	if m == nil {
		return "utf-8"
	}
	return strings.ToLower(string(m[1]))
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1", "windows-1252":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "utf-8", "utf8", "":
		return input, nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}

func parse(data []byte) (*auditFile, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var af auditFile
	if err := dec.Decode(&af); err != nil {
		return nil, fmt.Errorf("falha ao processar XML: %w", err)
	}
	return &af, nil
}

// ExtractInvoices returns the normalized sales invoices of a SAF-T file.
// A file without SourceDocuments is an error; one without invoices yields
// an empty slice.
func ExtractInvoices(data []byte) ([]Invoice, error) {
	af, err := parse(data)
	if err != nil {
		return nil, err
	}
	if af.SourceDocuments == nil {
		return nil, ErrNoSourceDocuments
	}
	if af.SourceDocuments.SalesInvoices == nil {
		return []Invoice{}, nil
	}

	out := make([]Invoice, 0, len(af.SourceDocuments.SalesInvoices.Invoice))
	for _, inv := range af.SourceDocuments.SalesInvoices.Invoice {
		out = append(out, normalizeInvoice(inv))
	}
	return out, nil
}

func normalizeInvoice(inv xmlInvoice) Invoice {
	gross := ptnum.ParseOrZero(inv.DocumentTotals.GrossTotal)
	taxPayable := ptnum.ParseOrZero(inv.DocumentTotals.TaxPayable)

	status := "Anulado"
	if inv.InvoiceStatus != nil && inv.InvoiceStatus.InvoiceStatusDate != "" {
		status = "Normal"
	}

	norm := Invoice{
		NumeroFatura: enc.AutoFix(inv.InvoiceNo),
		Data:         inv.InvoiceDate,
		Tipo:         enc.AutoFix(inv.InvoiceType),
		Status:       status,
		NomeCliente:  enc.AutoFix(inv.CustomerName),
		NIFCliente:   inv.CustomerTaxID,
		ValorBase:    taxPayable,
		ValorIVA:     gross.Sub(taxPayable),
		ValorTotal:   gross,
		Linhas:       normalizeLines(inv.Line),
		Hash:         inv.Hash,
		HashControl:  inv.HashControl,
		Periodo:      inv.Period,
	}
	if inv.BillTo != nil {
		norm.MoradaCliente = enc.AutoFix(inv.BillTo.AddressDetail)
	}
	return norm
}

func normalizeLines(lines []xmlLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		total := ptnum.ParseOrZero(l.CreditAmount)
		if total.IsZero() {
			total = ptnum.ParseOrZero(l.DebitAmount)
		}
		out = append(out, Line{
			Numero:        l.LineNumber,
			Descricao:     enc.AutoFix(l.Description),
			Quantidade:    ptnum.ParseOrZero(l.Quantity),
			PrecoUnitario: ptnum.ParseOrZero(l.UnitPrice),
			Desconto:      ptnum.ParseOrZero(l.SettlementAmount),
			TaxaIVA:       ptnum.ParseOrZero(l.Tax.TaxPercentage),
			Total:         total,
		})
	}
	return out
}

// ExtractHeader returns the audit file header.
func ExtractHeader(data []byte) (*Header, error) {
	af, err := parse(data)
	if err != nil {
		return nil, err
	}
	if af.Header == nil {
		return nil, ErrNoHeader
	}

	h := af.Header
	moeda := h.CurrencyCode
	if moeda == "" {
		moeda = "EUR"
	}
	return &Header{
		AuditFileVersion: h.AuditFileVersion,
		CompanyID:        h.CompanyID,
		NomeEmpresa:      enc.AutoFix(h.CompanyName),
		NIFEmpresa:       h.TaxRegistrationNumber,
		MoradaEmpresa:    enc.AutoFix(h.CompanyAddress.AddressDetail),
		AnoFiscal:        h.FiscalYear,
		DataInicio:       h.StartDate,
		DataFim:          h.EndDate,
		Moeda:            moeda,
		DataProducao:     h.DateCreated,
		Software:         enc.AutoFix(h.SoftwareName),
		VersaoSoftware:   h.SoftwareVersion,
	}, nil
}

// Validate checks the structural health of a SAF-T file. Parse failures
// and a missing Header are errors; a missing SourceDocuments section or a
// non-standard version only warn.
func Validate(data []byte) *ValidationReport {
	report := &ValidationReport{Errors: []string{}, Warnings: []string{}}

	af, err := parse(data)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Erro ao validar: %v", err))
		return report
	}

	if af.Header == nil {
		report.Errors = append(report.Errors, "Cabeçalho (Header) não encontrado")
	} else {
		report.Version = af.Header.AuditFileVersion
	}

	if af.SourceDocuments == nil {
		report.Warnings = append(report.Warnings, "SourceDocuments não encontrado")
	}

	if report.Version != "" && !standardVersions[report.Version] {
		report.Warnings = append(report.Warnings, fmt.Sprintf("Versão SAF-T não standard: %s", report.Version))
	}

	report.Valid = len(report.Errors) == 0
	return report
}
