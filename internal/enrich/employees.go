package enrich

import (
	"strings"

	"github.com/phillip-england/prodsummary/internal/table"
)

var (
	empIDColumns     = []string{"EMP_ID", "EMPID", "EMPLOYEE", "EMP_NO", "ID"}
	lastNameColumns  = []string{"LAST_NAME", "LASTNAME", "LNAME", "LAST"}
	firstNameColumns = []string{"FIRST_NAME", "FIRSTNAME", "FNAME", "FIRST"}
)

// EmployeeRecordsFromTable maps the employee extract onto EmployeeRecords in row order.
func EmployeeRecordsFromTable(t *table.Table) ([]EmployeeRecord, error) {
	idIdx := t.ColumnIndex(empIDColumns...)
	if idIdx < 0 {
		return nil, &MissingColumnError{Table: "employee", Column: empIDColumns[0]}
	}
	lastIdx := t.ColumnIndex(lastNameColumns...)
	firstIdx := t.ColumnIndex(firstNameColumns...)

	records := make([]EmployeeRecord, 0, t.Len())
	for row := 0; row < t.Len(); row++ {
		records = append(records, EmployeeRecord{
			EmpID:     t.At(row, idIdx),
			LastName:  t.At(row, lastIdx),
			FirstName: t.At(row, firstIdx),
		})
	}
	return records, nil
}

// BuildEmployeeIndex keeps, for every id, the names from the last row carrying it.
func BuildEmployeeIndex(records []EmployeeRecord) EmployeeIndex {
	idx := make(EmployeeIndex, len(records))
	for _, r := range records {
		id := strings.TrimSpace(r.EmpID)
		if id == "" {
			continue
		}
		idx[id] = EmployeeName{Last: r.LastName, First: r.FirstName}
	}
	return idx
}
