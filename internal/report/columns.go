package report

import (
	"github.com/phillip-england/prodsummary/internal/enrich"
)

type numberFormat int

const (
	formatText numberFormat = iota
	formatInteger
	formatAmount
	formatMinutes
)

// Column binds a header to the value it shows for one summary.
type Column struct {
	Header string
	Width  float64
	format numberFormat
	value  func(s enrich.EmployeeSummary, opts Options) any
}

// Columns is the fixed output layout of a summary sheet.
var Columns = []Column{
	{Header: "Employee", Width: 12, format: formatText, value: func(s enrich.EmployeeSummary, _ Options) any { return s.EmployeeID }},
	{Header: "Count_Record", Width: 14, format: formatInteger, value: func(s enrich.EmployeeSummary, _ Options) any { return s.RecordCount }},
	{Header: "Total_Ext_Qty", Width: 16, format: formatAmount, value: func(s enrich.EmployeeSummary, _ Options) any { return amount(s.TotalExtendedQty) }},
	{Header: "Total_Ext_Price", Width: 18, format: formatAmount, value: func(s enrich.EmployeeSummary, _ Options) any { return amount(s.TotalExtendedPrice) }},
	{Header: "EMP_ID", Width: 12, format: formatText, value: func(s enrich.EmployeeSummary, _ Options) any { return s.EmployeeID }},
	{Header: "LAST_NAME", Width: 18, format: formatText, value: func(s enrich.EmployeeSummary, o Options) any { return o.displayName(s, s.LastName) }},
	{Header: "FIRST_NAME", Width: 18, format: formatText, value: func(s enrich.EmployeeSummary, o Options) any { return o.displayName(s, s.FirstName) }},
	{Header: "INV_DATE", Width: 12, format: formatText, value: func(s enrich.EmployeeSummary, _ Options) any { return enrich.FormatDate(s.InvoiceDate) }},
	{Header: "STORE_NUM", Width: 12, format: formatText, value: func(s enrich.EmployeeSummary, _ Options) any { return s.StoreNumber }},
	{Header: "SERIAL", Width: 16, format: formatText, value: func(s enrich.EmployeeSummary, _ Options) any { return s.LastSerial }},
	{Header: "AVG_DELTA", Width: 12, format: formatMinutes, value: func(s enrich.EmployeeSummary, _ Options) any { return s.AvgGapMinutes }},
	{Header: "GAP5_COUNT", Width: 12, format: formatInteger, value: func(s enrich.EmployeeSummary, _ Options) any { return s.Gap5Count }},
	{Header: "GAP10_COUNT", Width: 13, format: formatInteger, value: func(s enrich.EmployeeSummary, _ Options) any { return s.Gap10Count }},
	{Header: "GAP15_COUNT", Width: 13, format: formatInteger, value: func(s enrich.EmployeeSummary, _ Options) any { return s.Gap15Count }},
}

// Headers returns the column headers in output order.
func Headers() []string {
	headers := make([]string, len(Columns))
	for i, c := range Columns {
		headers[i] = c.Header
	}
	return headers
}

// Row renders one summary in column order.
func Row(s enrich.EmployeeSummary, opts Options) []any {
	row := make([]any, len(Columns))
	for i, c := range Columns {
		row[i] = c.value(s, opts)
	}
	return row
}
