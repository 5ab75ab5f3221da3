package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fragstat/fragstat/internal/output"
)

// outputTarget is where a rendered document goes: stdout, --out or a
// generated name inside --out-dir.
type outputTarget struct {
	format output.Format
	path   string
	dir    string
}

// outputSink is an open destination; path is "-" for the command's stdout.
type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(value string) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	clean = nonFilename.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "output"
	}
	return clean
}

func outputExtension(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

func resolveOutputTargets(cmd *cobra.Command) (outPath string, outDir string, err error) {
	if outPath, err = cmd.Flags().GetString("out"); err != nil {
		return "", "", err
	}
	if outDir, err = cmd.Flags().GetString("out-dir"); err != nil {
		return "", "", err
	}
	outPath, outDir = strings.TrimSpace(outPath), strings.TrimSpace(outDir)
	if outPath != "" && outDir != "" {
		return "", "", fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	return outPath, outDir, nil
}

// resolveOutput reads the shared output flags registered by addOutputFlags.
func resolveOutput(cmd *cobra.Command) (outputTarget, error) {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return outputTarget{}, err
	}
	path, dir, err := resolveOutputTargets(cmd)
	if err != nil {
		return outputTarget{}, err
	}
	return outputTarget{format: format, path: path, dir: dir}, nil
}

// file returns the destination path for a document called name; "" means
// stdout.
func (t outputTarget) file(name string) (string, error) {
	if t.dir == "" {
		return t.path, nil
	}
	dir, err := ensureOutDir(t.dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sanitizeFilename(name)+"."+outputExtension(t.format)), nil
}

func openSink(stdout io.Writer, path string) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

func ensureOutDir(dir string) (string, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return "", nil
	}
	if err := os.MkdirAll(clean, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return clean, nil
	}
	return abs, nil
}
