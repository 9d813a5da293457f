package saft

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// exportHashLimit is the SAF-T field size for document hashes.
const exportHashLimit = 172

// ExportInvoice is one purchase invoice row of an export file.
type ExportInvoice struct {
	InvoiceNo   string
	InvoiceDate string
	SupplierID  string
	CustomerID  string
	TaxPayable  decimal.Decimal
	NetTotal    decimal.Decimal
	GrossTotal  decimal.Decimal
}

// ExportHeader identifies the company producing the export.
type ExportHeader struct {
	CompanyID             string
	TaxRegistrationNumber string
	CompanyName           string
	BusinessName          string
}

// DefaultExportHeader returns the built-in company identification.
func DefaultExportHeader() ExportHeader {
	return ExportHeader{
		CompanyID:             "ARELUNA",
		TaxRegistrationNumber: "999999999",
		CompanyName:           "Grupo AreLuna",
		BusinessName:          "AreLuna",
	}
}

// ExportHash produces the placeholder document hash: base64 of number,
// date and total, truncated to the SAF-T field size. Not a signature;
// real certification hashes come from certified software keys.
func ExportHash(numero, data string, total decimal.Decimal) string {
	h := base64.StdEncoding.EncodeToString([]byte(numero + data + total.String()))
	if len(h) > exportHashLimit {
		h = h[:exportHashLimit]
	}
	return h
}

// BuildExport renders a purchase-invoice SAF-T PT 1.04_01 file.
func BuildExport(header ExportHeader, invoices []ExportInvoice) []byte {
	now := time.Now()
	year := now.Year()

	totalDebit := decimal.Zero
	for _, inv := range invoices {
		totalDebit = totalDebit.Add(inv.GrossTotal)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:PT_1.04_01">` + "\n")
	b.WriteString("  <Header>\n")
	fmt.Fprintf(&b, "    <AuditFileVersion>1.04_01</AuditFileVersion>\n")
	fmt.Fprintf(&b, "    <CompanyID>%s</CompanyID>\n", xmlEscape(header.CompanyID))
	fmt.Fprintf(&b, "    <TaxRegistrationNumber>%s</TaxRegistrationNumber>\n", xmlEscape(header.TaxRegistrationNumber))
	fmt.Fprintf(&b, "    <TaxAccountingBasis>F</TaxAccountingBasis>\n")
	fmt.Fprintf(&b, "    <CompanyName>%s</CompanyName>\n", xmlEscape(header.CompanyName))
	fmt.Fprintf(&b, "    <BusinessName>%s</BusinessName>\n", xmlEscape(header.BusinessName))
	fmt.Fprintf(&b, "    <FiscalYear>%d</FiscalYear>\n", year)
	fmt.Fprintf(&b, "    <StartDate>%d-01-01</StartDate>\n", year)
	fmt.Fprintf(&b, "    <EndDate>%d-12-31</EndDate>\n", year)
	fmt.Fprintf(&b, "    <CurrencyCode>EUR</CurrencyCode>\n")
	fmt.Fprintf(&b, "    <DateCreated>%s</DateCreated>\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "    <TaxEntity>Global</TaxEntity>\n")
	fmt.Fprintf(&b, "    <ProductID>Fatura Tracker</ProductID>\n")
	fmt.Fprintf(&b, "    <ProductVersion>1.0</ProductVersion>\n")
	b.WriteString("  </Header>\n")
	b.WriteString("  <SourceDocuments>\n")
	b.WriteString("    <PurchaseInvoices>\n")
	fmt.Fprintf(&b, "      <NumberOfEntries>%d</NumberOfEntries>\n", len(invoices))
	fmt.Fprintf(&b, "      <TotalDebit>%s</TotalDebit>\n", totalDebit.StringFixed(2))
	fmt.Fprintf(&b, "      <TotalCredit>0.00</TotalCredit>\n")

	for i, inv := range invoices {
		no := inv.InvoiceNo
		if no == "" {
			no = fmt.Sprintf("INV%d", i+1)
		}
		date := inv.InvoiceDate
		if date == "" {
			date = now.Format("2006-01-02")
		}
		supplier := inv.SupplierID
		if supplier == "" {
			supplier = "999999999"
		}
		customer := inv.CustomerID
		if customer == "" {
			customer = "999999999"
		}

		b.WriteString("      <Invoice>\n")
		fmt.Fprintf(&b, "        <InvoiceNo>%s</InvoiceNo>\n", xmlEscape(no))
		fmt.Fprintf(&b, "        <InvoiceStatus>N</InvoiceStatus>\n")
		fmt.Fprintf(&b, "        <Hash>%s</Hash>\n", ExportHash(no, date, inv.GrossTotal))
		fmt.Fprintf(&b, "        <InvoiceDate>%s</InvoiceDate>\n", date)
		fmt.Fprintf(&b, "        <InvoiceType>FT</InvoiceType>\n")
		fmt.Fprintf(&b, "        <SupplierID>%s</SupplierID>\n", xmlEscape(supplier))
		fmt.Fprintf(&b, "        <CustomerID>%s</CustomerID>\n", xmlEscape(customer))
		b.WriteString("        <DocumentTotals>\n")
		fmt.Fprintf(&b, "          <TaxPayable>%s</TaxPayable>\n", inv.TaxPayable.StringFixed(2))
		fmt.Fprintf(&b, "          <NetTotal>%s</NetTotal>\n", inv.NetTotal.StringFixed(2))
		fmt.Fprintf(&b, "          <GrossTotal>%s</GrossTotal>\n", inv.GrossTotal.StringFixed(2))
		b.WriteString("        </DocumentTotals>\n")
		b.WriteString("      </Invoice>\n")
	}

	b.WriteString("    </PurchaseInvoices>\n")
	b.WriteString("  </SourceDocuments>\n")
	b.WriteString("</AuditFile>\n")
	return []byte(b.String())
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}
