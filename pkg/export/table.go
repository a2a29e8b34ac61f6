// Package export renders tabular reports as CSV or PDF.
package export

import (
	"fmt"
	"strings"
	"time"
)

// Format names a rendering target.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts "csv" or "pdf" case-insensitively; empty means CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Table is an ordered grid. Every row has len(Columns) cells.
type Table struct {
	Title       string
	Columns     []string
	Rows        [][]string
	GeneratedAt time.Time
}

// AddRow appends cells, padding or truncating to the column count.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Filename builds a download name such as "roster-2024-05-01.csv".
func Filename(base string, f Format, at time.Time) string {
	return fmt.Sprintf("%s-%s.%s", base, at.UTC().Format("2006-01-02"), f)
}

// Render dispatches to the renderer for f.
func Render(f Format, t Table) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("export requires at least one column")
	}
	switch f {
	case FormatCSV:
		return renderCSV(t)
	case FormatPDF:
		return renderPDF(t)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}
