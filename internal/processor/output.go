package processor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"formulary/internal/fileutil"
)

const outputSheet = "Processed"

// OutputName is the file name WriteWorkbook uses for a run at now.
func OutputName(now time.Time) string {
	return "processed_output_" + now.Format("20060102_150405") + ".xlsx"
}

// RenderWorkbook encodes t as a single-sheet workbook. Cells that parse as
// numbers are written as numbers.
func RenderWorkbook(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", outputSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(outputSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				cells[i] = n
			} else {
				cells[i] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(outputSheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteWorkbook writes t into dir and returns the file path.
func WriteWorkbook(dir string, t *Table, now time.Time) (string, error) {
	data, err := RenderWorkbook(t)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, OutputName(now))
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write processed output: %w", err)
	}
	return path, nil
}
