// Package report writes employee production summaries to xlsx workbooks.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/prodsummary/internal/enrich"
)

const (
	DefaultSheetName = "Employee Summary"
	amountFormat     = "#,##0.0000"
	amountPlaces     = 4
)

type Options struct {
	SheetName string
	// UnknownName is shown in the name columns of employees missing from the
	// employee extract. Empty leaves the cells blank.
	UnknownName string
	// LogoPath points at a png, jpeg or webp placed beside the header row.
	LogoPath string
}

func (o Options) displayName(s enrich.EmployeeSummary, name string) string {
	if s.LastName == "" && s.FirstName == "" {
		return o.UnknownName
	}
	return name
}

type Writer struct {
	opts Options
	logo []byte
}

// NewWriter prepares a Writer, decoding the logo once up front.
func NewWriter(opts Options) (*Writer, error) {
	if opts.SheetName == "" {
		opts.SheetName = DefaultSheetName
	}
	w := &Writer{opts: opts}
	if opts.LogoPath != "" {
		logo, err := LoadLogo(opts.LogoPath, logoHeight)
		if err != nil {
			return nil, fmt.Errorf("load logo: %w", err)
		}
		w.logo = logo
	}
	return w, nil
}

// Write renders summaries into a new workbook at outputPath, replacing any
// existing file.
func (w *Writer) Write(outputPath string, summaries []enrich.EmployeeSummary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := w.opts.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	headers := make([]any, len(Columns))
	for i, c := range Columns {
		headers[i] = c.Header
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", styles.header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, s := range summaries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := Row(s, w.opts)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i, c := range Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, c.Width); err != nil {
			return fmt.Errorf("size column %s: %w", name, err)
		}
		if len(summaries) == 0 {
			continue
		}
		if id := styles.forFormat(c.format); id != 0 {
			top := fmt.Sprintf("%s2", name)
			bottom := fmt.Sprintf("%s%d", name, len(summaries)+1)
			if err := f.SetCellStyle(sheet, top, bottom, id); err != nil {
				return fmt.Errorf("style column %s: %w", c.Header, err)
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if w.logo != nil {
		anchor, err := excelize.CoordinatesToCellName(len(Columns)+2, 1)
		if err != nil {
			return err
		}
		if err := f.AddPictureFromBytes(sheet, anchor, &excelize.Picture{
			Extension: ".png",
			File:      w.logo,
			Format:    &excelize.GraphicOptions{AltText: "logo"},
		}); err != nil {
			return fmt.Errorf("place logo: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(outputPath), err)
	}
	return nil
}

type styleSet struct {
	header  int
	integer int
	amount  int
	minutes int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	// Built-in number formats: 1 is "0", 2 is "0.00".
	if s.integer, err = f.NewStyle(&excelize.Style{NumFmt: 1}); err != nil {
		return s, fmt.Errorf("integer style: %w", err)
	}
	if s.minutes, err = f.NewStyle(&excelize.Style{NumFmt: 2}); err != nil {
		return s, fmt.Errorf("minutes style: %w", err)
	}
	custom := amountFormat
	if s.amount, err = f.NewStyle(&excelize.Style{CustomNumFmt: &custom}); err != nil {
		return s, fmt.Errorf("amount style: %w", err)
	}
	return s, nil
}

func (s styleSet) forFormat(format numberFormat) int {
	switch format {
	case formatInteger:
		return s.integer
	case formatAmount:
		return s.amount
	case formatMinutes:
		return s.minutes
	default:
		return 0
	}
}

// amount converts an exact total to the float a spreadsheet cell stores.
func amount(d decimal.Decimal) float64 {
	return d.Round(amountPlaces).InexactFloat64()
}
