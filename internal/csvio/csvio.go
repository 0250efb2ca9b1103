// Package csvio parses and renders the CSV files the migration engine
// exchanges with the outside world. The first row is always the
// header.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/recmig/recmig/internal/types"
)

// ParseOptions are forwarded to the underlying reader
type ParseOptions struct {
	Comma            rune
	Comment          rune
	TrimLeadingSpace bool
}

// Parse reads all CSV rows from r. The result includes the header row.
// Ragged rows are an error; source labels the input in diagnostics.
func Parse(r io.Reader, source string, opts ParseOptions) ([][]string, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.Comment = opts.Comment
	cr.TrimLeadingSpace = opts.TrimLeadingSpace

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &types.CSVParseError{Source: source, Err: err}
	}
	return rows, nil
}

// ParseDataset parses CSV content into a load dataset for object
func ParseDataset(object string, r io.Reader, opts ParseOptions) (*types.LoadDataset, error) {
	rows, err := Parse(r, object, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &types.CSVParseError{Source: object, Err: fmt.Errorf("missing header row")}
	}
	ds := &types.LoadDataset{Object: object, Headers: rows[0], Rows: rows[1:]}
	if err := ds.Validate(); err != nil {
		return nil, &types.CSVParseError{Source: object, Err: err}
	}
	return ds, nil
}

// Write serializes a header and rows to w
func Write(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render serializes a header and rows to a string
func Render(headers []string, rows [][]string) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, headers, rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}
