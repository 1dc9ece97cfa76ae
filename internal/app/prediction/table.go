package prediction

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mlbilling/internal/app/apperr"
)

// ResultColumn is appended to the input header in result tables.
const ResultColumn = "prediction"

// MaxRows bounds the size of an uploaded table.
const MaxRows = 100000

// Table is a numeric CSV table with a header row.
type Table struct {
	Header []string
	Rows   [][]float64
}

// ReadTable parses a CSV table. Every data row must have one numeric cell per
// header column and at least one data row is required.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv file is empty: %w", apperr.ErrValidation)
		}
		return nil, apperr.Wrap(apperr.ErrValidation, err)
	}

	t := &Table{Header: header}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, err)
		}
		if len(t.Rows) == MaxRows {
			return nil, fmt.Errorf("csv file has more than %d rows: %w", MaxRows, apperr.ErrValidation)
		}

		row := make([]float64, len(record))
		for i, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %q is not a number: %w", line, header[i], cell, apperr.ErrValidation)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}

	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("csv file has no data rows: %w", apperr.ErrValidation)
	}
	return t, nil
}

// Flatten returns all cells row by row.
func (t *Table) Flatten() []float64 {
	var out []float64
	for _, row := range t.Rows {
		out = append(out, row...)
	}
	return out
}

// Encode writes the table as CSV.
func (t *Table) Encode() ([]byte, error) {
	return encode(t.Header, t.Rows, nil)
}

// EncodeWithResults writes the table with ResultColumn appended.
func (t *Table) EncodeWithResults(results []float64) ([]byte, error) {
	if len(results) != len(t.Rows) {
		return nil, fmt.Errorf("%d results for %d rows", len(results), len(t.Rows))
	}
	header := append(append([]string(nil), t.Header...), ResultColumn)
	return encode(header, t.Rows, results)
}

func encode(header []string, rows [][]float64, extra []float64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for i, row := range rows {
		record := make([]string, 0, len(row)+1)
		for _, v := range row {
			record = append(record, formatFloat(v))
		}
		if extra != nil {
			record = append(record, formatFloat(extra[i]))
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
