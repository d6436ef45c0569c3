package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Letterhead is printed at the top of every document.
type Letterhead struct {
	SchoolName string
	Address    string
}

// ReceiptDocument is the content of a rendered official receipt.
type ReceiptDocument struct {
	Number      string
	IssuedAt    time.Time
	IssuedTo    string
	Particulars string
	Amount      float64
	Reference   string
	Method      string
}

// StatementLine is one row of an invoice statement table.
type StatementLine struct {
	Description string
	Quantity    int
	UnitPrice   float64
	Amount      float64
}

// StatementDocument is the content of a rendered invoice statement.
type StatementDocument struct {
	Code        string
	StudentName string
	IssueDate   time.Time
	DueDate     time.Time
	Lines       []StatementLine
	Total       float64
	AmountPaid  float64
	Balance     float64
}

// PDFExporter renders billing documents into PDFs.
type PDFExporter struct {
	letterhead Letterhead
}

// NewPDFExporter constructs a PDF exporter with the given letterhead.
func NewPDFExporter(letterhead Letterhead) *PDFExporter {
	return &PDFExporter{letterhead: letterhead}
}

func (e *PDFExporter) newDocument(title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, strings.ToUpper(e.letterhead.SchoolName), "", 1, "C", false, 0, "")
	if e.letterhead.Address != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, e.letterhead.Address, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)
	return pdf
}

// RenderReceipt produces an official receipt PDF.
func (e *PDFExporter) RenderReceipt(doc ReceiptDocument) ([]byte, error) {
	if doc.Number == "" {
		return nil, fmt.Errorf("receipt requires a number")
	}
	pdf := e.newDocument("OFFICIAL RECEIPT")

	pdf.SetFont("Arial", "", 10)
	writeField(pdf, "Receipt No.", doc.Number)
	writeField(pdf, "Date", doc.IssuedAt.Format("January 2, 2006"))
	writeField(pdf, "Received From", doc.IssuedTo)
	if doc.Reference != "" {
		writeField(pdf, "Payment Ref.", doc.Reference)
	}
	if doc.Method != "" {
		writeField(pdf, "Method", doc.Method)
	}
	writeField(pdf, "Particulars", doc.Particulars)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, fmt.Sprintf("AMOUNT: PHP %.2f", doc.Amount), "1", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderStatement produces an invoice statement PDF with the line items and
// running balance.
func (e *PDFExporter) RenderStatement(doc StatementDocument) ([]byte, error) {
	if len(doc.Lines) == 0 {
		return nil, fmt.Errorf("statement requires at least one line item")
	}
	pdf := e.newDocument("STATEMENT OF ACCOUNT")

	pdf.SetFont("Arial", "", 10)
	writeField(pdf, "Invoice No.", doc.Code)
	writeField(pdf, "Student", doc.StudentName)
	writeField(pdf, "Issue Date", doc.IssueDate.Format("January 2, 2006"))
	writeField(pdf, "Due Date", doc.DueDate.Format("January 2, 2006"))
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(100, 8, "Description", "1", 0, "", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 8, "Unit Price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, line := range doc.Lines {
		pdf.CellFormat(100, 7, line.Description, "1", 0, "", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", line.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", line.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", line.Amount), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	writeTotal(pdf, "Total", doc.Total)
	writeTotal(pdf, "Amount Paid", doc.AmountPaid)
	writeTotal(pdf, "Balance Due", doc.Balance)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render statement pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeField(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 7, label+":", "", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, value, "", 1, "", false, 0, "")
}

func writeTotal(pdf *gofpdf.Fpdf, label string, amount float64) {
	pdf.CellFormat(155, 7, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", amount), "1", 1, "R", false, 0, "")
}
