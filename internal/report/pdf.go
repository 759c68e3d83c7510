package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin    = 12.0
	pdfRowHeight = 7.0
	pdfFontSize  = 9.0
	pdfCellPad   = 3.0
)

type rgb struct{ r, g, b int }

var (
	gridHeaderFill    = rgb{220, 220, 220}
	stripedHeaderFill = rgb{22, 160, 133}
	stripeFill        = rgb{242, 242, 242}
	highlightFill     = rgb{255, 243, 205}
)

// PDFWriter renders landscape A4 documents with fpdf. Columns share the
// page width in proportion to their widest cell.
type PDFWriter struct {
	Orientation string
	PageSize    string
}

// NewPDFWriter creates a new PDF writer
func NewPDFWriter() *PDFWriter {
	return &PDFWriter{Orientation: "L", PageSize: "A4"}
}

func (p *PDFWriter) Extension() string   { return "pdf" }
func (p *PDFWriter) ContentType() string { return "application/pdf" }

// Write renders doc to w.
func (p *PDFWriter) Write(w io.Writer, doc *Document) error {
	pdf := fpdf.New(p.Orientation, "mm", p.PageSize, "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	p.writeHeading(pdf, tr, doc)

	if doc.Table != nil {
		widths := p.columnWidths(pdf, tr, doc.Table)
		p.writeHeader(pdf, tr, doc, widths)

		_, pageH := pdf.GetPageSize()
		last := len(doc.Table.Rows) - 1
		for i, row := range doc.Table.Rows {
			if pdf.GetY()+pdfRowHeight > pageH-2*pdfMargin {
				pdf.AddPage()
				p.writeHeader(pdf, tr, doc, widths)
			}
			p.writeRow(pdf, tr, doc, widths, row, i, doc.HighlightLastRow && i == last)
		}
	}

	if pdf.Err() {
		return fmt.Errorf("failed to render pdf: %w", pdf.Error())
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func (p *PDFWriter) writeHeading(pdf *fpdf.Fpdf, tr func(string) string, doc *Document) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 9, tr(doc.Title), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, tr("Location: "+doc.Location), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated: "+doc.GeneratedAt.Format(DateLayout+" 3:04 PM"), "", 1, "L", false, 0, "")
	for _, note := range doc.Notes {
		pdf.CellFormat(0, 6, tr(note), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

func (p *PDFWriter) columnWidths(pdf *fpdf.Fpdf, tr func(string) string, t *Table) []float64 {
	pageW, _ := pdf.GetPageSize()
	avail := pageW - 2*pdfMargin

	pdf.SetFont("Helvetica", "B", pdfFontSize)
	widths := make([]float64, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = pdf.GetStringWidth(tr(c)) + 2*pdfCellPad
	}
	pdf.SetFont("Helvetica", "", pdfFontSize)
	for _, row := range t.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := pdf.GetStringWidth(tr(row[i])) + 2*pdfCellPad; w > widths[i] {
				widths[i] = w
			}
		}
	}

	var total float64
	for _, w := range widths {
		total += w
	}
	if total > 0 {
		for i := range widths {
			widths[i] = widths[i] / total * avail
		}
	}
	return widths
}

func (p *PDFWriter) writeHeader(pdf *fpdf.Fpdf, tr func(string) string, doc *Document, widths []float64) {
	fill := gridHeaderFill
	pdf.SetTextColor(0, 0, 0)
	if doc.Theme == ThemeStriped {
		fill = stripedHeaderFill
		pdf.SetTextColor(255, 255, 255)
	}
	pdf.SetFillColor(fill.r, fill.g, fill.b)
	pdf.SetDrawColor(160, 160, 160)
	pdf.SetFont("Helvetica", "B", pdfFontSize)

	for i, c := range doc.Table.Columns {
		pdf.CellFormat(widths[i], pdfRowHeight, fit(pdf, tr(c), widths[i]), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func (p *PDFWriter) writeRow(pdf *fpdf.Fpdf, tr func(string) string, doc *Document, widths []float64, row []string, index int, highlight bool) {
	border := "1"
	fillRow := false
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", pdfFontSize)

	if doc.Theme == ThemeStriped {
		border = ""
		if index%2 == 1 {
			fillRow = true
			pdf.SetFillColor(stripeFill.r, stripeFill.g, stripeFill.b)
		}
	}
	if highlight {
		fillRow = true
		border = "1"
		pdf.SetFillColor(highlightFill.r, highlightFill.g, highlightFill.b)
		pdf.SetFont("Helvetica", "B", pdfFontSize)
	}

	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = fit(pdf, tr(row[i]), w)
		}
		pdf.CellFormat(w, pdfRowHeight, cell, border, 0, "L", fillRow, 0, "")
	}
	pdf.Ln(-1)
}

// fit shortens s with an ellipsis until it fits in width.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	limit := width - 2*pdfCellPad
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	b := []byte(s)
	for len(b) > 0 && pdf.GetStringWidth(string(b)+"...") > limit {
		b = b[:len(b)-1]
	}
	return string(b) + "..."
}
