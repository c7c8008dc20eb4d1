package prodsummarycli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/phillip-england/prodsummary/internal/enrich"
	"github.com/phillip-england/prodsummary/internal/pipeline"
	"github.com/phillip-england/prodsummary/internal/report"
)

func printInspection(w io.Writer, name string, in pipeline.Inspection, opts report.Options) error {
	fmt.Fprintf(w, "archive:   %s\n", name)
	fmt.Fprintf(w, "decision:  %s\n", in.Decision)
	if in.Decision == enrich.DecisionSkip {
		return nil
	}
	invoice := enrich.FormatDate(in.Metadata.InvoiceDate)
	if !in.Metadata.HasInvoiceDate() {
		invoice += " (unparseable, sentinel)"
	}
	fmt.Fprintf(w, "store:     %s\n", in.Metadata.StoreNumber)
	fmt.Fprintf(w, "invoice:   %s\n", invoice)
	fmt.Fprintf(w, "employees: %d\n", len(in.Summaries))
	if len(in.Summaries) == 0 {
		fmt.Fprintln(w, pipeline.BlankLogLine(name))
		return nil
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(report.Headers(), "\t"))
	for _, s := range in.Summaries {
		row := report.Row(s, opts)
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func formatCell(v any) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if v == "" {
			return "-"
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}
