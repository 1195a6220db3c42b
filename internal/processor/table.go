package processor

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrInvalidEncoding   = errors.New("dataset is not valid UTF-8")
	ErrMissingHeader     = errors.New("dataset has no header row")
)

// Table is a dataset held as strings. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the index of the column whose name equals name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddColumn appends an empty column and returns its index.
func (t *Table) AddColumn(name string) int {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Columns) - 1
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// ReadTable loads a CSV or XLSX dataset. XLSX files use their first sheet.
func ReadTable(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s (want .csv or .xlsx)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV parses a CSV dataset. A UTF-8 byte order mark is discarded.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return newTable(records)
}

func readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrMissingHeader
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return newTable(rows)
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrMissingHeader
	}
	t := &Table{Columns: make([]string, len(records[0]))}
	for i, h := range records[0] {
		t.Columns[i] = strings.TrimSpace(h)
	}
	for _, rec := range records[1:] {
		row := make([]string, len(t.Columns))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
