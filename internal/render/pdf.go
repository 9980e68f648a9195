// Package render produces the reimbursement PDF: a cover sheet with the
// extracted fields and a second page carrying the receipt image.
package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/submitready/submitready/internal/document"
)

const (
	pageWidth  = 612.0
	pageHeight = 792.0
	margin     = 40.0
	rowHeight  = 34.0
)

// PDF implements the document renderer with gofpdf.
type PDF struct{}

// NewPDF creates the renderer.
func NewPDF() *PDF {
	return &PDF{}
}

// Render builds the two-page reimbursement PDF. The attachment must be PNG
// data. The creation date is pinned so identical documents produce identical
// bytes.
func (p *PDF) Render(doc *document.Document, attachment []byte, watermark bool) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Expense Reimbursement Submission", true)
	pdf.SetCreator("SubmitReady", true)
	pdf.SetCreationDate(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	p.coverPage(pdf, doc, watermark)
	if err := p.attachmentPage(pdf, attachment); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PDF) coverPage(pdf *gofpdf.Fpdf, doc *document.Document, watermark bool) {
	pdf.AddPage()

	pdf.SetDrawColor(217, 217, 217)
	pdf.Rect(margin, margin, pageWidth-2*margin, pageHeight-2*margin, "D")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(17, 24, 39)
	pdf.Text(60, 90, "Expense Reimbursement Submission")

	category := doc.Category
	if category == "" {
		category = "-"
	}
	rows := []struct {
		label string
		value string
	}{
		{"Vendor", doc.Vendor},
		{"Date", formatDate(doc.Date)},
		{"Category", category},
		{"Currency", doc.Currency},
		{"Total", formatAmount(doc.TotalCents, doc.Currency)},
	}

	// Core fonts are cp1252; currency symbols need translation.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	tableTop := 150.0
	tableWidth := pageWidth - 2*margin - 40
	pdf.Rect(60, tableTop, tableWidth, rowHeight*float64(len(rows)), "D")
	for i, row := range rows {
		y := tableTop + rowHeight*float64(i)
		if i > 0 {
			pdf.Line(60, y, 60+tableWidth, y)
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Text(74, y+22, row.label)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Text(220, y+22, tr(row.value))
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(107, 114, 128)
	pdf.Text(60, 672, "Prepared for standard employer reimbursement submissions. Does not submit on your behalf.")
	pdf.Text(60, 688, "Not legal or tax advice.")

	if watermark {
		pdf.SetFont("Helvetica", "B", 42)
		pdf.SetTextColor(217, 38, 38)
		pdf.SetAlpha(0.22, "Normal")
		pdf.TransformBegin()
		pdf.TransformRotate(34, pageWidth/2, pageHeight/2)
		pdf.Text(pageWidth/2-150, pageHeight/2, "PREVIEW - UNPAID")
		pdf.TransformEnd()
		pdf.SetAlpha(1, "Normal")
	}
}

func (p *PDF) attachmentPage(pdf *gofpdf.Fpdf, attachment []byte) error {
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(17, 24, 39)
	pdf.Text(60, 52, "Attached Receipt")

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	info := pdf.RegisterImageOptionsReader("receipt-attachment", opts, bytes.NewReader(attachment))
	if pdf.Err() {
		return fmt.Errorf("registering attachment image: %w", pdf.Error())
	}

	scale := 1.0
	if s := 490 / info.Width(); s < scale {
		scale = s
	}
	if s := 620 / info.Height(); s < scale {
		scale = s
	}
	w := info.Width() * scale
	h := info.Height() * scale
	x := (pageWidth - w) / 2
	y := pageHeight - 90 - h
	pdf.ImageOptions("receipt-attachment", x, y, w, h, false, opts, 0, "")
	if pdf.Err() {
		return fmt.Errorf("placing attachment image: %w", pdf.Error())
	}
	return nil
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"CAD": "CA$",
	"AUD": "A$",
}

// formatAmount renders cents as a symbol-prefixed amount with thousands
// grouping, e.g. 123456 USD -> "$1,234.56".
func formatAmount(cents int64, currency string) string {
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency + " "
	}

	whole := cents / 100
	frac := cents % 100
	digits := fmt.Sprintf("%d", whole)
	var grouped []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, d)
	}
	return fmt.Sprintf("%s%s.%02d", symbol, grouped, frac)
}

// formatDate renders an ISO date as "Jan 02, 2006", leaving malformed input
// untouched.
func formatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Jan 02, 2006")
}
