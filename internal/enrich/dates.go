package enrich

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"1/2/2006 3:04:05 PM",
	"01/02/2006 03:04:05 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006 03:04 PM",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"01/02/2006 15:04",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"20060102150405",
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
}

var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"01/02/06",
	"1-2-2006",
	"01-02-2006",
	"1-2-06",
	"01-02-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006/01/02",
}

// ParseTimestamp parses an event time from an extract cell. It accepts the
// datetime layouts POS exports use, bare dates, and Excel serial numbers.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if isExcelSerial(serial) {
			if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return parsed, true
			}
		}
		// Time-only cells store a fraction of a day.
		if serial > 0 && serial < 1 {
			offset := time.Duration(serial * float64(24*time.Hour)).Round(time.Second)
			return excelEpoch.Add(offset), true
		}
	}
	return time.Time{}, false
}

// ParseDate parses a calendar date, dropping any time of day.
func ParseDate(value string) (time.Time, bool) {
	parsed, ok := ParseTimestamp(value)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := parsed.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

// FormatDate renders a date as MM/dd/yy.
func FormatDate(t time.Time) string {
	return t.Format("01/02/06")
}

// Keep a realistic serial range so plain counts are not read as dates.
func isExcelSerial(serial float64) bool {
	return serial >= 20000 && serial <= 80000
}
