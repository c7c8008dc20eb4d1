/*
errors.go - Error types raised while enriching one archive

Every error here is fatal for the archive being processed and nothing else. The
pipeline catches them at archive granularity, leaves the archive in place and
moves on. Use errors.Is with the sentinels, errors.As with the structured types.

An unparseable invoice date is deliberately absent: it degrades to SentinelDate.
*/
package enrich

import (
	"errors"
	"fmt"
)

var (
	// ErrNumericConversion marks a units/quantity2/price cell that is not a number.
	ErrNumericConversion = errors.New("numeric conversion failure")

	// ErrMissingColumn marks an extract without a column the engine needs.
	ErrMissingColumn = errors.New("missing column")

	// ErrEmptyResult marks an archive whose final extract has no non-blank employee rows.
	ErrEmptyResult = errors.New("empty result")
)

// NumericConversionError carries the offending cell.
type NumericConversionError struct {
	Field    string
	Value    string
	Row      int
	Employee string
}

func (e *NumericConversionError) Error() string {
	return fmt.Sprintf("numeric conversion failure: field %s row %d employee %q: %q is not a number",
		e.Field, e.Row, e.Employee, e.Value)
}

func (e *NumericConversionError) Unwrap() error {
	return ErrNumericConversion
}

type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column: %s has no %s column", e.Table, e.Column)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}
