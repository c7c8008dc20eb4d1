package enrich

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/prodsummary/internal/table"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func rec(emp, ts, units, q2, price, serial string) RawRecord {
	return RawRecord{Employee: emp, Time: ts, Units: units, Quantity2: q2, Price: price, Serial: serial}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregateGapStatistics(t *testing.T) {
	records := []RawRecord{
		rec("E1", "2024-01-15 10:20:00", "1", "1", "1", "c"),
		rec("E1", "2024-01-15 10:00:00", "1", "1", "1", "a"),
		rec("E1", "2024-01-15 10:06:00", "1", "1", "1", "b"),
	}

	got, err := Aggregate(records, nil, ArchiveMetadata{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	s := got[0]
	assert.InDelta(t, 10.0, s.AvgGapMinutes, 1e-9)
	assert.Equal(t, 2, s.Gap5Count)
	assert.Equal(t, 1, s.Gap10Count)
	assert.Equal(t, 0, s.Gap15Count)
	assert.Equal(t, "c", s.LastSerial, "last serial follows input order, not time order")
}

func TestAggregateGapThresholdsOverlap(t *testing.T) {
	records := []RawRecord{
		rec("E1", "08:00", "1", "1", "1", ""),
		rec("E1", "08:20", "1", "1", "1", ""),
		rec("E1", "08:25", "1", "1", "1", ""),
		rec("E1", "08:29:59", "1", "1", "1", ""),
	}

	got, err := Aggregate(records, nil, ArchiveMetadata{})
	require.NoError(t, err)

	assert.Equal(t, 2, got[0].Gap5Count)
	assert.Equal(t, 1, got[0].Gap10Count)
	assert.Equal(t, 1, got[0].Gap15Count)
}

func TestAggregateUnparseableTimesStillCount(t *testing.T) {
	records := []RawRecord{
		rec("E1", "not a time", "2", "3", "1.5", "s1"),
		rec("E1", "", "1", "1", "1", "s2"),
		rec("E1", "2024-01-15 09:00:00", "1", "1", "1", "s3"),
	}

	got, err := Aggregate(records, nil, ArchiveMetadata{})
	require.NoError(t, err)

	s := got[0]
	assert.Equal(t, 3, s.RecordCount)
	assert.True(t, dec("8").Equal(s.TotalExtendedQty), "got %s", s.TotalExtendedQty)
	assert.True(t, dec("11").Equal(s.TotalExtendedPrice), "got %s", s.TotalExtendedPrice)
	assert.Zero(t, s.AvgGapMinutes, "one timestamp yields no gaps")
	assert.Zero(t, s.Gap5Count)
}

func TestAggregateExactDecimalSums(t *testing.T) {
	records := []RawRecord{
		rec("E1", "", "1", "2", "0.1", ""),
		rec("E1", "", "2", "2", "0.1", ""),
		rec("E1", "", "3", "2", "0.1", ""),
	}

	got, err := Aggregate(records, nil, ArchiveMetadata{})
	require.NoError(t, err)

	assert.Equal(t, "12", got[0].TotalExtendedQty.String())
	assert.Equal(t, "1.2", got[0].TotalExtendedPrice.String())
}

func TestAggregateGroupsInFirstAppearanceOrder(t *testing.T) {
	records := []RawRecord{
		rec("E2", "", "1", "1", "1", "a"),
		rec("  ", "", "9", "9", "9", "blank"),
		rec("E1", "", "1", "1", "1", "b"),
		rec("", "", "x", "x", "x", "blank rows are never parsed"),
		rec("E2", "", "1", "1", "1", "c"),
		rec(" E1 ", "", "1", "1", "1", "d"),
	}
	index := BuildEmployeeIndex([]EmployeeRecord{{EmpID: "E1", LastName: "Smith", FirstName: "Jo"}})
	meta := ArchiveMetadata{InvoiceDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), StoreNumber: "0421"}

	got, err := Aggregate(records, index, meta)
	require.NoError(t, err)

	want := []EmployeeSummary{
		{
			EmployeeID: "E2", RecordCount: 2,
			TotalExtendedQty: dec("2"), TotalExtendedPrice: dec("2"),
			InvoiceDate: meta.InvoiceDate, StoreNumber: "0421", LastSerial: "c",
		},
		{
			EmployeeID: "E1", RecordCount: 2,
			TotalExtendedQty: dec("2"), TotalExtendedPrice: dec("2"),
			LastName: "Smith", FirstName: "Jo",
			InvoiceDate: meta.InvoiceDate, StoreNumber: "0421", LastSerial: "d",
		},
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateAllBlankYieldsNoSummaries(t *testing.T) {
	got, err := Aggregate([]RawRecord{rec("", "", "1", "1", "1", ""), rec(" ", "", "1", "1", "1", "")}, nil, ArchiveMetadata{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAggregateNonNumericIsFatal(t *testing.T) {
	records := []RawRecord{
		rec("E1", "", "1", "1", "1", ""),
		{Employee: "E2", Units: "1", Quantity2: "two", Price: "1", Row: 2},
	}

	got, err := Aggregate(records, nil, ArchiveMetadata{})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrNumericConversion)

	var nce *NumericConversionError
	require.ErrorAs(t, err, &nce)
	assert.Equal(t, "quantity2", nce.Field)
	assert.Equal(t, "two", nce.Value)
	assert.Equal(t, 2, nce.Row)
	assert.Equal(t, "E2", nce.Employee)
}

func TestAggregateBlankNumericIsFatal(t *testing.T) {
	_, err := Aggregate([]RawRecord{rec("E1", "", "", "1", "1", "")}, nil, ArchiveMetadata{})
	assert.ErrorIs(t, err, ErrNumericConversion)
}

func TestAggregateIsRepeatable(t *testing.T) {
	records := []RawRecord{
		rec("E1", "2024-01-15 10:00:00", "1.25", "3", "4.10", "a"),
		rec("E2", "2024-01-15 10:03:00", "2", "0.5", "19.99", "b"),
		rec("E1", "2024-01-15 10:11:00", "4", "1", "0.35", "c"),
	}

	first, err := Aggregate(records, nil, ArchiveMetadata{})
	require.NoError(t, err)
	second, err := Aggregate(records, nil, ArchiveMetadata{})
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, decimalEqual); diff != "" {
		t.Fatalf("aggregation not repeatable:\n%s", diff)
	}
}

func TestRawRecordsFromTable(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"EMPLOYEE", "UNITS", "QUANTITY2", "PRICE", "SERIAL"},
		Rows:    [][]string{{"E1", "1", "2", "3", "S"}},
	}

	got, err := RawRecordsFromTable(tbl)
	require.NoError(t, err)
	assert.Equal(t, []RawRecord{{Employee: "E1", Units: "1", Quantity2: "2", Price: "3", Serial: "S", Row: 1}}, got)
}

func TestRawRecordsFromTableRequiresNumericColumns(t *testing.T) {
	tbl := &table.Table{Columns: []string{"EMPLOYEE", "UNITS", "PRICE"}}

	_, err := RawRecordsFromTable(tbl)
	var mce *MissingColumnError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, "quantity2", mce.Column)
	assert.ErrorIs(t, err, ErrMissingColumn)
}
