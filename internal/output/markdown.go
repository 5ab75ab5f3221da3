package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders documents as markdown tables.
type MarkdownFormatter struct{}

// FormatDocument renders each table of doc under a level-two heading.
func (f *MarkdownFormatter) FormatDocument(doc Document) (string, error) {
	var sb strings.Builder
	for i, tbl := range doc.Tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		if tbl.Title != "" {
			sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(tbl.Title)))
		}
		writeMarkdownRow(&sb, tbl.Header)
		sep := make([]string, len(tbl.Header))
		for j := range sep {
			sep[j] = "---"
		}
		writeMarkdownRow(&sb, sep)
		for _, row := range tbl.Rows {
			writeMarkdownRow(&sb, row)
		}
		if tbl.Footer != "" {
			sb.WriteString(fmt.Sprintf("\n**%s**\n", escapeMarkdownCell(tbl.Footer)))
		}
	}
	return sb.String(), nil
}

func writeMarkdownRow(sb *strings.Builder, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = escapeMarkdownCell(c)
	}
	sb.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
