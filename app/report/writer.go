package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lysyi3m/agile-merge/app/aggregate"
)

const (
	ArticlePrefix = "agile.merge"
	DailyPrefix   = "agile.merge.daily"
)

// FileName returns {prefix}.{base of inputDir}.txt
func FileName(prefix, inputDir string) string {
	return fmt.Sprintf("%s.%s.txt", prefix, filepath.Base(filepath.Clean(inputDir)))
}

// Writer serializes aggregate rows as headerless tab-separated text
type Writer struct {
	layout Layout
}

func NewWriter(layout Layout) *Writer {
	return &Writer{layout: layout}
}

// Write emits one line per row in the given order
func (w *Writer) Write(out io.Writer, rows []aggregate.Row) error {
	buf := bufio.NewWriter(out)
	for _, row := range rows {
		for i, field := range w.layout.Fields(row) {
			if i > 0 {
				buf.WriteByte('\t')
			}
			buf.WriteString(quote(field))
		}
		buf.WriteByte('\n')
	}
	return buf.Flush()
}

// WriteFile writes rows to path through a temp file renamed into place
func (w *Writer) WriteFile(path string, rows []aggregate.Row) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := w.Write(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}

	return nil
}

// quote wraps fields that would break the tab-separated layout
func quote(field string) string {
	if !strings.ContainsAny(field, "\t\"\r\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
