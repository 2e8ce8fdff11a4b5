package visualization

import (
	"fmt"
	"io"
	"os"
)

// List is a model for line based output with a common label.
type List struct {
	elements []string
	label    string
}

// NewList creates a new model of data representation.
func NewList(elements []string, label string) *List {
	return &List{
		elements,
		label,
	}
}

// Render prints the labeled elements to the writer, one per line.
func (l *List) Render(w io.Writer) {
	for _, value := range l.elements {
		fmt.Fprintln(w, l.label+value)
	}
}

// PrintList prints the list to standard output.
func PrintList(list *List) {
	list.Render(os.Stdout)
}
