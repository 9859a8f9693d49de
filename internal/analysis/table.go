package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table is an ordered, column-oriented view of a delimited file.
// Cells keep their source text; numeric interpretation happens on demand.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// LoadTable reads a delimited file into a Table. The delimiter is chosen
// from the file name: tab for .tsv, comma otherwise.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()
	t, err := ParseTable(f, sniffDelimiter(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// ParseTable reads a header row followed by data rows. Every row must have
// as many fields as the header.
func ParseTable(r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	// FieldsPerRecord = 0 makes the reader enforce the header width.
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no columns to parse: file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &Table{Columns: append([]string(nil), header...)}
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Float64s parses every cell of the named column as a number.
func (t *Table) Float64s(name string) ([]float64, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, &MissingColumnError{Column: name}
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		raw := strings.TrimSpace(row[idx])
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ValueError{Row: i + 1, Column: name, Value: row[idx], Err: err}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &ValueError{Row: i + 1, Column: name, Value: row[idx], Err: ErrNotFinite}
		}
		out[i] = f
	}
	return out, nil
}

// String renders every row and column as right-aligned text without a row
// index, one line per row below a header line.
func (t *Table) String() string {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = len([]rune(c))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	var b strings.Builder
	writeLine := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(strings.Repeat(" ", widths[i]-len([]rune(cell))))
			b.WriteString(cell)
		}
		b.WriteByte('\n')
	}
	writeLine(t.Columns)
	for _, row := range t.Rows {
		writeLine(row)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
