// Package enrich turns the three extracts of a point-of-sale archive into
// per-employee production summaries.
package enrich

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SentinelDate stands in for an invoice date that could not be parsed.
var SentinelDate = time.Time{}

// RawRecord is one row of the final extract as cell text. Numeric fields are
// parsed when aggregated so a bad cell surfaces as a NumericConversionError.
type RawRecord struct {
	Employee  string
	Time      string
	Units     string
	Quantity2 string
	Price     string
	Serial    string
	// Row is the 1-based data row in the extract, used in error messages.
	Row int
}

// Blank reports whether the record has no employee id.
func (r RawRecord) Blank() bool {
	return strings.TrimSpace(r.Employee) == ""
}

type EmployeeRecord struct {
	EmpID     string
	LastName  string
	FirstName string
}

type EmployeeName struct {
	Last  string
	First string
}

// EmployeeIndex maps an employee id to the name recorded for it.
type EmployeeIndex map[string]EmployeeName

// Lookup returns the name for id, or empty names when id is unknown.
func (idx EmployeeIndex) Lookup(id string) EmployeeName {
	return idx[strings.TrimSpace(id)]
}

type ArchiveMetadata struct {
	InvoiceDate time.Time
	StoreNumber string
}

// HasInvoiceDate reports whether the invoice date parsed.
func (m ArchiveMetadata) HasInvoiceDate() bool {
	return !m.InvoiceDate.Equal(SentinelDate)
}

// EmployeeSummary is one output row.
type EmployeeSummary struct {
	EmployeeID         string
	RecordCount        int
	TotalExtendedQty   decimal.Decimal
	TotalExtendedPrice decimal.Decimal
	LastName           string
	FirstName          string
	InvoiceDate        time.Time
	StoreNumber        string
	LastSerial         string
	AvgGapMinutes      float64
	Gap5Count          int
	Gap10Count         int
	Gap15Count         int
}
