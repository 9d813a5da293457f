package service

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/pkg/ptnum"
)

const excelSheet = "Faturas"

var excelHeaders = []string{
	"Número", "Data", "Vencimento", "Cliente", "Emitente",
	"NIF Emitente", "NIF Adquirente", "Total", "IVA", "Categoria", "Status",
}

// ExportExcel renders the given invoices as an XLSX workbook. Amounts that
// parse cleanly become numeric cells so spreadsheet formulas work on them;
// anything else stays text.
func ExportExcel(records []*invoice.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", excelSheet)

	for col, header := range excelHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(excelSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, rec := range records {
		row := i + 2
		values := []any{
			rec.NumeroFatura,
			rec.DataFatura,
			rec.DataVencimento,
			rec.NomeCliente,
			rec.NomeEmitente,
			rec.NIFEmitente,
			rec.NIFAdquirente,
			amountCell(rec.Total),
			amountCell(rec.TotalIVA),
			rec.Categoria,
			string(rec.Status),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(excelSheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func amountCell(raw string) any {
	if raw == "" {
		return ""
	}
	d, err := ptnum.Parse(raw)
	if err != nil {
		return raw
	}
	v, _ := d.Float64()
	return v
}
