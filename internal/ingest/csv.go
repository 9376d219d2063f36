// Package ingest turns uploaded variant tables into raw rows for the normalizer.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/epi-risk-server/internal/domain"
)

// ErrNoHeader is returned for input without a header row.
var ErrNoHeader = errors.New("csv input has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses comma-separated variant rows. Header names are lower-cased,
// trimmed and have inner whitespace joined with underscores. Each data row
// keeps only its non-empty cells; fully empty rows are dropped.
func ReadCSV(r io.Reader) ([]domain.RawVariantRow, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	columns := make([]string, len(header))
	named := 0
	for i, h := range header {
		columns[i] = headerName(h)
		if columns[i] != "" {
			named++
		}
	}
	if named == 0 {
		return nil, ErrNoHeader
	}

	rows := make([]domain.RawVariantRow, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}

		row := domain.RawVariantRow{}
		for i, cell := range record {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if _, exists := row[columns[i]]; !exists {
				row[columns[i]] = cell
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func headerName(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}
