package enrich

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phillip-england/prodsummary/internal/table"
)

var gapThresholds = [3]time.Duration{5 * time.Minute, 10 * time.Minute, 15 * time.Minute}

// RawRecordsFromTable maps the final extract onto RawRecords in row order.
// The time and serial columns are optional; the rest are required.
func RawRecordsFromTable(t *table.Table) ([]RawRecord, error) {
	cols := map[string]int{}
	for _, name := range []string{"employee", "time", "units", "quantity2", "price", "serial"} {
		cols[name] = t.ColumnIndex(name)
	}
	for _, required := range []string{"employee", "units", "quantity2", "price"} {
		if cols[required] < 0 {
			return nil, &MissingColumnError{Table: "final", Column: required}
		}
	}

	records := make([]RawRecord, 0, t.Len())
	for row := 0; row < t.Len(); row++ {
		records = append(records, RawRecord{
			Employee:  t.At(row, cols["employee"]),
			Time:      t.At(row, cols["time"]),
			Units:     t.At(row, cols["units"]),
			Quantity2: t.At(row, cols["quantity2"]),
			Price:     t.At(row, cols["price"]),
			Serial:    t.At(row, cols["serial"]),
			Row:       row + 1,
		})
	}
	return records, nil
}

type group struct {
	id      string
	records []RawRecord
}

// Aggregate groups records by employee and computes one summary per group.
// Summaries come back in the order each employee id first appears. Blank ids
// are dropped before grouping. The first non-numeric quantity or price aborts
// the whole aggregation.
func Aggregate(records []RawRecord, index EmployeeIndex, meta ArchiveMetadata) ([]EmployeeSummary, error) {
	var groups []*group
	byID := map[string]*group{}
	for _, r := range records {
		if r.Blank() {
			continue
		}
		id := strings.TrimSpace(r.Employee)
		g, ok := byID[id]
		if !ok {
			g = &group{id: id}
			byID[id] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, r)
	}

	summaries := make([]EmployeeSummary, 0, len(groups))
	for _, g := range groups {
		s, err := summarize(g, index, meta)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func summarize(g *group, index EmployeeIndex, meta ArchiveMetadata) (EmployeeSummary, error) {
	qty := decimal.Zero
	price := decimal.Zero
	var times []time.Time

	for _, r := range g.records {
		units, err := parseField(r, "units", r.Units)
		if err != nil {
			return EmployeeSummary{}, err
		}
		q2, err := parseField(r, "quantity2", r.Quantity2)
		if err != nil {
			return EmployeeSummary{}, err
		}
		p, err := parseField(r, "price", r.Price)
		if err != nil {
			return EmployeeSummary{}, err
		}
		ext := units.Mul(q2)
		qty = qty.Add(ext)
		price = price.Add(p.Mul(ext))

		if ts, ok := ParseTimestamp(r.Time); ok {
			times = append(times, ts)
		}
	}

	stats := computeGaps(times)
	name := index.Lookup(g.id)
	return EmployeeSummary{
		EmployeeID:         g.id,
		RecordCount:        len(g.records),
		TotalExtendedQty:   qty,
		TotalExtendedPrice: price,
		LastName:           name.Last,
		FirstName:          name.First,
		InvoiceDate:        meta.InvoiceDate,
		StoreNumber:        meta.StoreNumber,
		LastSerial:         g.records[len(g.records)-1].Serial,
		AvgGapMinutes:      stats.avgMinutes,
		Gap5Count:          stats.counts[0],
		Gap10Count:         stats.counts[1],
		Gap15Count:         stats.counts[2],
	}, nil
}

// parseField parses a numeric cell exactly. Blank and non-numeric values fail.
func parseField(r RawRecord, field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, &NumericConversionError{
			Field:    field,
			Value:    value,
			Row:      r.Row,
			Employee: strings.TrimSpace(r.Employee),
		}
	}
	return d, nil
}

type gapStats struct {
	avgMinutes float64
	counts     [3]int
}

// computeGaps sorts times and measures the deltas between neighbours. The
// threshold counts overlap: a 20 minute gap counts toward all three.
func computeGaps(times []time.Time) gapStats {
	var stats gapStats
	if len(times) < 2 {
		return stats
	}
	sorted := make([]time.Time, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var total time.Duration
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Sub(sorted[i-1])
		total += gap
		for k, threshold := range gapThresholds {
			if gap >= threshold {
				stats.counts[k]++
			}
		}
	}
	stats.avgMinutes = total.Minutes() / float64(len(sorted)-1)
	return stats
}
