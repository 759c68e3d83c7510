package report

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxSheet       = "Report"
	xlsxMinColWidth = 10.0
	xlsxMaxColWidth = 50.0
)

// XLSXWriter renders documents as a single-sheet workbook.
type XLSXWriter struct{}

// NewXLSXWriter creates a new XLSX writer
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

func (x *XLSXWriter) Extension() string { return "xlsx" }
func (x *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

type xlsxStyles struct {
	title, header, cell, stripe, highlight int
}

// Write renders doc to w.
func (x *XLSXWriter) Write(w io.Writer, doc *Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	styles, err := x.newStyles(f, doc.Theme)
	if err != nil {
		return err
	}

	lines := []string{
		doc.Title,
		"Location: " + doc.Location,
		"Generated: " + doc.GeneratedAt.Format(DateLayout+" 3:04 PM"),
	}
	lines = append(lines, doc.Notes...)

	row := 1
	for i, line := range lines {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(xlsxSheet, cell, line); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
		if i == 0 {
			if err := f.SetCellStyle(xlsxSheet, cell, cell, styles.title); err != nil {
				return fmt.Errorf("failed to set title style: %w", err)
			}
		}
		row++
	}
	row++

	if doc.Table == nil || len(doc.Table.Columns) == 0 {
		return x.output(f, w)
	}

	if err := x.writeRow(f, row, doc.Table.Columns, styles.header); err != nil {
		return err
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      row,
		TopLeftCell: mustCell(1, row+1),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	row++

	last := len(doc.Table.Rows) - 1
	for i, r := range doc.Table.Rows {
		style := styles.cell
		switch {
		case doc.HighlightLastRow && i == last:
			style = styles.highlight
		case doc.Theme == ThemeStriped && i%2 == 1:
			style = styles.stripe
		}
		if err := x.writeRow(f, row, r, style); err != nil {
			return err
		}
		row++
	}

	if err := x.sizeColumns(f, doc.Table); err != nil {
		return err
	}
	return x.output(f, w)
}

func (x *XLSXWriter) output(f *excelize.File, w io.Writer) error {
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (x *XLSXWriter) writeRow(f *excelize.File, row int, values []string, style int) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	start := mustCell(1, row)
	if err := f.SetSheetRow(xlsxSheet, start, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	if len(values) == 0 {
		return nil
	}
	if err := f.SetCellStyle(xlsxSheet, start, mustCell(len(values), row), style); err != nil {
		return fmt.Errorf("failed to style row %d: %w", row, err)
	}
	return nil
}

func (x *XLSXWriter) sizeColumns(f *excelize.File, t *Table) error {
	for i, c := range t.Columns {
		width := float64(utf8.RuneCountInString(c))
		for _, r := range t.Rows {
			if i < len(r) {
				if n := float64(utf8.RuneCountInString(r[i])); n > width {
					width = n
				}
			}
		}
		width = min(max(width+2, xlsxMinColWidth), xlsxMaxColWidth)

		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(xlsxSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func (x *XLSXWriter) newStyles(f *excelize.File, theme Theme) (*xlsxStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "A0A0A0", Style: 1},
		{Type: "top", Color: "A0A0A0", Style: 1},
		{Type: "bottom", Color: "A0A0A0", Style: 1},
		{Type: "right", Color: "A0A0A0", Style: 1},
	}
	cellBorder := border
	headerFill, headerFont := "#DCDCDC", &excelize.Font{Bold: true}
	if theme == ThemeStriped {
		cellBorder = nil
		headerFill, headerFont = "#16A085", &excelize.Font{Bold: true, Color: "FFFFFF"}
	}

	s := &xlsxStyles{}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}},
		{&s.header, &excelize.Style{
			Font:      headerFont,
			Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
			Border:    border,
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&s.cell, &excelize.Style{Border: cellBorder}},
		{&s.stripe, &excelize.Style{
			Border: cellBorder,
			Fill:   excelize.Fill{Type: "pattern", Color: []string{"#F2F2F2"}, Pattern: 1},
		}},
		{&s.highlight, &excelize.Style{
			Font:   &excelize.Font{Bold: true},
			Border: border,
			Fill:   excelize.Fill{Type: "pattern", Color: []string{"#FFF3CD"}, Pattern: 1},
		}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, fmt.Errorf("failed to create style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

func mustCell(col, row int) string {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		panic(err)
	}
	return cell
}
