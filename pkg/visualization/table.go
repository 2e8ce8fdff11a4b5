// Package visualization renders run results for the terminal: tables for
// the aggregated result groups and failures, plain labeled lists for
// everything else.
package visualization

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

// Table is a model for tabular data.
type Table struct {
	headers []string
	data    [][]string
}

// NewTable creates a new model of data representation.
func NewTable(headers []string, data [][]string) *Table {
	return &Table{
		headers,
		data,
	}
}

// Append adds one row to the table.
func (t *Table) Append(row []string) {
	t.data = append(t.data, row)
}

// Render draws the headers and data rows to the writer.
func (t *Table) Render(w io.Writer) {
	output := tablewriter.NewWriter(w)
	output.SetHeader(t.headers)
	for _, row := range t.data {
		output.Append(row)
	}
	output.Render()
}

// DrawTable draws the table to standard output.
func DrawTable(table *Table) {
	table.Render(os.Stdout)
}
