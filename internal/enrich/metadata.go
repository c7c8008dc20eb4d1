package enrich

import (
	"regexp"
	"strings"
	"time"

	"github.com/phillip-england/prodsummary/internal/table"
)

const (
	todayDateColumn  = 0
	todayStoreColumn = 6
	kelleyStoreChars = 9
)

// A run of exactly six digits; the neighbours, when present, are non-digits.
var sixDigitRun = regexp.MustCompile(`(?:^|\D)(\d{6})(?:\D|$)`)

// ResolveMetadata derives the invoice date and store number for an archive.
//
// The defaults come from the first row of the today extract: column 0 holds the
// invoice date and column 6 the store number. Kelley archives encode both in
// the filename instead, and the filename wins wherever it yields a value.
func ResolveMetadata(today *table.Table, filename string) ArchiveMetadata {
	meta := ArchiveMetadata{
		InvoiceDate: SentinelDate,
		StoreNumber: today.At(0, todayStoreColumn),
	}
	if d, ok := ParseDate(today.At(0, todayDateColumn)); ok {
		meta.InvoiceDate = d
	}

	if !strings.Contains(strings.ToLower(filename), "kelley") {
		return meta
	}
	if chars := []rune(filename); len(chars) >= kelleyStoreChars {
		meta.StoreNumber = strings.ReplaceAll(string(chars[:kelleyStoreChars]), "-", "")
	}
	if d, ok := filenameDate(filename); ok {
		meta.InvoiceDate = d
	}
	return meta
}

// filenameDate reads the first six-digit run in name as yyMMdd.
func filenameDate(name string) (time.Time, bool) {
	m := sixDigitRun.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	d, err := time.Parse("060102", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
