package output

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// JSONFormatter renders the document value as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatDocument renders doc.Value as JSON. Stream and image URLs keep their
// '&' and '<' characters unescaped.
func (f *JSONFormatter) FormatDocument(doc Document) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc.Value); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
