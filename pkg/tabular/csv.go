package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

func (r *Reader) readDelimited(ctx context.Context, src io.Reader, comma rune, enc TextEncoding) (*Table, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %v: %w", err, apperrors.ErrDecode)
	}
	data, err := decodeText(raw, enc)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.LazyQuotes = comma == '\t'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("file has no header row: %w", apperrors.ErrDecode)
	}
	if err != nil {
		return nil, fmt.Errorf("header: %v: %w", err, apperrors.ErrDecode)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	if err := checkHeader(columns); err != nil {
		return nil, err
	}

	table := &Table{Columns: columns}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.ParseError carries the line number.
			return nil, fmt.Errorf("%v: %w", err, apperrors.ErrDecode)
		}

		line, _ := cr.FieldPos(0)
		values := make(map[string]string, len(columns))
		for i, c := range columns {
			values[c] = record[i]
		}
		table.Rows = append(table.Rows, Row{Line: line, Values: values})
	}
	return table, nil
}
