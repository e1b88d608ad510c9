// Package interfaces renders settlement statements for external consumers.
package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// StatementRow is one account line in a monthly statement.
type StatementRow struct {
	Account      string
	KWhPurchased int64
	KWhConsumed  int64
	SurplusKWh   int64
	Settled      bool
	TokensPaid   string
}

// BuildMonthStatementPDF renders a monthly settlement statement as PDF.
func BuildMonthStatementPDF(month string, generatedAt time.Time, rows []StatementRow) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Energy Credit Settlement Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", month))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Account", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Purchased", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Consumed", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Surplus", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Settled", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		settled := "no"
		if row.Settled {
			settled = "yes"
		}
		pdf.CellFormat(45, 6, row.Account, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", row.KWhPurchased), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", row.KWhConsumed), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", row.SurplusKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, settled, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildMonthStatementXLSX renders a monthly settlement statement as XLSX.
func BuildMonthStatementXLSX(month string, generatedAt time.Time, rows []StatementRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "statement"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Energy Credit Settlement Statement")
	_ = f.SetCellValue(sheet, "A2", "Month")
	_ = f.SetCellValue(sheet, "B2", month)
	_ = f.SetCellValue(sheet, "A3", "Generated")
	_ = f.SetCellValue(sheet, "B3", generatedAt.Format(time.RFC3339))

	_ = f.SetCellValue(sheet, "A5", "Account")
	_ = f.SetCellValue(sheet, "B5", "kWh Purchased")
	_ = f.SetCellValue(sheet, "C5", "kWh Consumed")
	_ = f.SetCellValue(sheet, "D5", "Surplus kWh")
	_ = f.SetCellValue(sheet, "E5", "Settled")
	_ = f.SetCellValue(sheet, "F5", "EnTo Paid")
	for i, row := range rows {
		r := i + 6
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", r), row.Account)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", r), row.KWhPurchased)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", r), row.KWhConsumed)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", r), row.SurplusKWh)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", r), row.Settled)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", r), row.TokensPaid)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
