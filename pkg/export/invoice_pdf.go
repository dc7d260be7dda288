package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// InvoiceDocument carries the fields rendered onto an invoice PDF.
type InvoiceDocument struct {
	InvoiceNo   string
	IssuedAt    time.Time
	StudentName string
	StudentID   string
	Email       string
	CourseTitle string
	Provider    string
	OrderID     string
	Amount      int64
	Tax         int64
	Total       int64
	Currency    string
}

// InvoicePDFRenderer renders invoice records into PDF documents.
type InvoicePDFRenderer struct {
	issuerName string
}

// NewInvoicePDFRenderer constructs a renderer with the issuing institution name.
func NewInvoicePDFRenderer(issuerName string) *InvoicePDFRenderer {
	if issuerName == "" {
		issuerName = "ProEdge Learning"
	}
	return &InvoicePDFRenderer{issuerName: issuerName}
}

// Render produces the PDF bytes for an invoice.
func (r *InvoicePDFRenderer) Render(doc InvoiceDocument) ([]byte, error) {
	if doc.InvoiceNo == "" {
		return nil, fmt.Errorf("invoice number required")
	}
	if doc.Currency == "" {
		doc.Currency = "INR"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, r.issuerName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Payment Invoice", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(40, 7, "Invoice No", "", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, doc.InvoiceNo, "", 1, "", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(40, 7, "Date", "", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, doc.IssuedAt.Format("02 Jan 2006"), "", 1, "", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Student", doc.StudentName},
		{"Student ID", doc.StudentID},
		{"Email", doc.Email},
		{"Course", doc.CourseTitle},
		{"Payment Method", doc.Provider},
		{"Order Reference", doc.OrderID},
	}
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, row[1], "1", 1, "", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(120, 8, "Description", "1", 0, "", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Amount (%s)", doc.Currency), "1", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(120, 8, "Course fee", "1", 0, "", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("%d", doc.Amount), "1", 1, "R", false, 0, "")
	pdf.CellFormat(120, 8, "Tax", "1", 0, "", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("%d", doc.Tax), "1", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(120, 8, "Total", "1", 0, "", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("%d", doc.Total), "1", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "This is a system generated invoice.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
