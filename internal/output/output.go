package output

import (
	"fmt"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Table is one titled grid of a document.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
	// Footer is an optional one-line summary.
	Footer string
}

// Document pairs a value with its human-readable tables. JSON output renders
// Value; table and markdown output render Tables.
type Document struct {
	Value  any
	Tables []Table
}

// Formatter renders documents.
type Formatter interface {
	FormatDocument(doc Document) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Render formats doc in the requested format.
func Render(format Format, doc Document) (string, error) {
	return NewFormatter(format).FormatDocument(doc)
}
