// Package curve reads and writes the files around a synthesis: model light
// curve tables, observing window lists and synthesized output tables.
package curve

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrNoHeader = errors.New("model table has no header line")
	ErrNoRows   = errors.New("model table has no data rows")
	ErrNoColumn = errors.New("no such column")
	// ErrSkippedRows reports a model table that lost rows while reading.
	ErrSkippedRows = errors.New("model table has malformed rows")
)

// Format selects how a table file separates its fields.
type Format int

const (
	// FormatASCII separates fields with runs of whitespace.
	FormatASCII Format = iota
	// FormatCSV separates fields with commas.
	FormatCSV
)

func (f Format) String() string {
	if f == FormatCSV {
		return "csv"
	}
	return "ascii"
}

// FormatFor picks the format from a file extension: .csv is FormatCSV,
// anything else (.asc, .dat, .txt) is FormatASCII.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatASCII
}

// Model is a column-oriented model light curve. Every column has the same
// length.
type Model struct {
	Names []string
	// Skipped counts data rows dropped as malformed.
	Skipped int
	columns map[string][]float64
}

// CheckComplete returns ErrSkippedRows if any data row was dropped.
func (m *Model) CheckComplete() error {
	if m.Skipped > 0 {
		return fmt.Errorf("%w: %d skipped", ErrSkippedRows, m.Skipped)
	}
	return nil
}

// Len returns the number of rows.
func (m *Model) Len() int {
	if len(m.Names) == 0 {
		return 0
	}
	return len(m.columns[m.Names[0]])
}

// Column returns the named column.
func (m *Model) Column(name string) ([]float64, error) {
	col, ok := m.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrNoColumn, name, strings.Join(m.Names, ", "))
	}
	return col, nil
}

// FluxColumns returns every column name except timeColumn, in file order.
func (m *Model) FluxColumns(timeColumn string) []string {
	var out []string
	for _, n := range m.Names {
		if n != timeColumn {
			out = append(out, n)
		}
	}
	return out
}

// ReadModel reads a model table: an optional run of '#' comment lines, a
// header line naming the columns, then one row of numbers per line.
// Rows with the wrong field count or an unparseable number are skipped with
// a warning log.
func ReadModel(r io.Reader, format Format, logger *slog.Logger) (*Model, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		m      *Model
		lineNo int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := splitFields(line, format)

		if m == nil {
			m = &Model{Names: fields, columns: make(map[string][]float64, len(fields))}
			for _, name := range fields {
				if _, dup := m.columns[name]; dup {
					return nil, fmt.Errorf("duplicate column %q in header", name)
				}
				m.columns[name] = nil
			}
			continue
		}

		if len(fields) != len(m.Names) {
			logger.Warn("skipping model row with wrong field count",
				"line", lineNo, "fields", len(fields), "want", len(m.Names))
			m.Skipped++
			continue
		}
		row := make([]float64, len(fields))
		ok := true
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				logger.Warn("skipping model row with invalid number",
					"line", lineNo, "column", m.Names[i], "value", f)
				ok = false
				break
			}
			row[i] = v
		}
		if !ok {
			m.Skipped++
			continue
		}
		for i, name := range m.Names {
			m.columns[name] = append(m.columns[name], row[i])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading model table: %w", err)
	}
	if m == nil {
		return nil, ErrNoHeader
	}
	if m.Len() == 0 {
		return nil, ErrNoRows
	}
	if m.Skipped > 0 {
		logger.Warn("model table rows skipped", "skipped", m.Skipped, "kept", m.Len())
	}
	return m, nil
}

// ReadModelFile opens path and reads it with the format implied by its
// extension.
func ReadModelFile(path string, logger *slog.Logger) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer f.Close()

	m, err := ReadModel(f, FormatFor(path), logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func splitFields(line string, format Format) []string {
	if format == FormatASCII {
		return strings.Fields(line)
	}
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
