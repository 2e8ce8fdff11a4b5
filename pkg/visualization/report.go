package visualization

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/intelsdi-x/chronos/pkg/report"
)

// SummaryTable models the aggregated result groups of a report: one row
// per group with its weighted statistics and percentile columns.
func SummaryTable(rep *report.Report) *Table {
	groups := rep.Groups()

	headers := []string{"group", "unit", "trials", "points", "outliers", "mean", "stddev", "min", "max"}
	if len(groups) > 0 {
		for _, percentile := range groups[0].Percentiles {
			headers = append(headers, fmt.Sprintf("p%g", percentile.P))
		}
	}
	headers = append(headers, "flags")

	table := NewTable(headers, nil)
	for _, group := range groups {
		row := []string{
			group.Key.String(),
			group.Unit,
			strconv.Itoa(group.Trials),
			strconv.Itoa(group.Measurements),
			strconv.Itoa(group.Outliers),
			formatValue(group.Mean),
			formatValue(group.StdDev),
			formatValue(group.Min),
			formatValue(group.Max),
		}
		for _, percentile := range group.Percentiles {
			row = append(row, formatValue(percentile.Value))
		}
		row = append(row, strings.Join(group.Flags, " "))
		table.Append(row)
	}
	return table
}

// FailureTable models the trials that did not succeed, listed verbatim.
func FailureTable(rep *report.Report) *Table {
	table := NewTable([]string{"trial", "group", "vm", "state", "reason"}, nil)
	for _, failure := range rep.Failures() {
		table.Append([]string{
			strconv.Itoa(failure.TrialID),
			failure.Key.String(),
			failure.VM,
			failure.State.String(),
			failure.Reason,
		})
	}
	return table
}

// PrintReport renders the whole report to the writer: the run id, the
// summary table and, when trials did not succeed, the failure table.
func PrintReport(w io.Writer, runID string, rep *report.Report) {
	fmt.Fprintf(w, "Run id: %s\n\n", runID)
	SummaryTable(rep).Render(w)

	failures := rep.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d of %d trials did not succeed:\n", len(failures), rep.TotalTrials())
	FailureTable(rep).Render(w)
}

func formatValue(value float64) string {
	return strconv.FormatFloat(value, 'g', 6, 64)
}
