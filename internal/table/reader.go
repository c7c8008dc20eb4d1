package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported table format")

const byteOrderMark = "\uFEFF"

// Extensions lists the file extensions Read understands, in the order archive
// entries are probed when an extract is requested by stem.
var Extensions = []string{".dbf", ".xlsx", ".xls", ".csv"}

// Reader opens extracts by file extension.
type Reader struct {
	// Charset is passed to the legacy .xls decoder. Empty means utf-8.
	Charset string
	// MaxRows caps the rows pulled from a .xls sheet.
	MaxRows int
}

func NewReader() *Reader {
	return &Reader{Charset: "utf-8", MaxRows: 1_000_000}
}

// Supported reports whether path has an extension Read can handle.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range Extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

func (r *Reader) Read(path string) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".dbf":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		t, err := ReadDBF(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return t, nil
	case ".xls", ".xlsx":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		rows, err := r.readRowsFromSpreadsheet(bytes.NewReader(data), ext)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return fromRows(rows), nil
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		t, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

func (r *Reader) readRowsFromSpreadsheet(reader io.ReadSeeker, ext string) ([][]string, error) {
	switch ext {
	case ".xls":
		charset := r.Charset
		if charset == "" {
			charset = "utf-8"
		}
		workbook, err := xls.OpenReader(reader, charset)
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		maxRows := r.MaxRows
		if maxRows <= 0 {
			maxRows = 1_000_000
		}
		rows := workbook.ReadAllCells(maxRows)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(reader)
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}

		// Raw values: formatted numbers like "1,234.50" would not parse downstream.
		rows, err := file.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	}
}

// ReadCSV reads a header row followed by data rows. Ragged rows are allowed.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}
	return fromRows(rows), nil
}

func fromRows(rows [][]string) *Table {
	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
	}
	if len(header) > 0 {
		header[0] = strings.TrimSpace(strings.TrimPrefix(header[0], byteOrderMark))
	}
	return &Table{Columns: header, Rows: rows[1:]}
}
