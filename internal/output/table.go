package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders documents as rounded ASCII tables.
type TableFormatter struct{}

// FormatDocument renders each table of doc, separated by a blank line.
func (f *TableFormatter) FormatDocument(doc Document) (string, error) {
	rendered := make([]string, 0, len(doc.Tables))
	for _, tbl := range doc.Tables {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		if tbl.Title != "" {
			t.SetTitle(tbl.Title)
		}
		t.AppendHeader(toRow(tbl.Header))
		for _, row := range tbl.Rows {
			t.AppendRow(toRow(row))
		}
		if len(tbl.Rows) == 0 {
			t.AppendRow(emptyRow(len(tbl.Header)))
		}
		if tbl.Footer != "" {
			footer := make(table.Row, len(tbl.Header))
			footer[len(footer)-1] = tbl.Footer
			t.AppendFooter(footer)
		}
		rendered = append(rendered, t.Render())
	}
	return strings.Join(rendered, "\n\n"), nil
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func emptyRow(width int) table.Row {
	row := make(table.Row, width)
	if width > 0 {
		row[0] = "(none)"
	}
	for i := 1; i < width; i++ {
		row[i] = ""
	}
	return row
}
