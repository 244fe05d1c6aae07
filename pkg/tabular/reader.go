// Package tabular decodes uploaded CSV, TSV and DBF files into rows of
// column name to raw string value.
package tabular

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

type Format string

const (
	FormatCSV Format = "csv"
	FormatTSV Format = "tsv"
	FormatDBF Format = "dbf"
)

// ParseFormat maps a file extension ("csv", ".TSV", ...) to a Format.
func ParseFormat(ext string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))); f {
	case FormatCSV, FormatTSV, FormatDBF:
		return f, nil
	default:
		return "", fmt.Errorf("extension %q: %w", ext, apperrors.ErrUnsupportedFormat)
	}
}

// TextEncoding is the declared character encoding of a delimited upload.
// DBF files always use ISO-8859-1.
type TextEncoding string

const (
	EncodingUTF8   TextEncoding = "utf-8"
	EncodingLatin1 TextEncoding = "latin-1"
)

// ParseTextEncoding accepts the common spellings of UTF-8 and Latin-1.
// An empty value means UTF-8.
func ParseTextEncoding(s string) (TextEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	default:
		return "", fmt.Errorf("encoding %q: %w", s, apperrors.ErrInvalidValue)
	}
}

// Table is a decoded file. Columns preserves header order.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row holds one record. Line is the 1-based line (CSV/TSV) or record
// number (DBF) used in error messages.
type Row struct {
	Line   int
	Values map[string]string
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Get returns the trimmed value of column name.
func (r Row) Get(name string) string {
	return strings.TrimSpace(r.Values[name])
}

// Reader decodes uploads. DBF input is staged under stagingDir
// (the OS temp dir when empty).
type Reader struct {
	stagingDir string
	logger     *zap.Logger
}

func NewReader(stagingDir string, logger *zap.Logger) *Reader {
	return &Reader{
		stagingDir: stagingDir,
		logger:     logger.Named("tabular"),
	}
}

// Read decodes src according to ext. enc applies to CSV and TSV only.
func (r *Reader) Read(ctx context.Context, src io.Reader, ext string, enc TextEncoding) (*Table, error) {
	format, err := ParseFormat(ext)
	if err != nil {
		return nil, err
	}

	var table *Table
	switch format {
	case FormatDBF:
		table, err = r.readDBF(ctx, src)
	case FormatTSV:
		table, err = r.readDelimited(ctx, src, '\t', enc)
	default:
		table, err = r.readDelimited(ctx, src, ',', enc)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Decoded upload",
		zap.String("format", string(format)),
		zap.Int("columns", len(table.Columns)),
		zap.Int("rows", len(table.Rows)))
	return table, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeText(data []byte, enc TextEncoding) ([]byte, error) {
	switch enc {
	case EncodingLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("latin-1 decode: %v: %w", err, apperrors.ErrDecode)
		}
		return out, nil
	case EncodingUTF8, "":
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("content is not valid UTF-8: %w", apperrors.ErrDecode)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("encoding %q: %w", enc, apperrors.ErrInvalidValue)
	}
}

func checkHeader(columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if c == "" {
			return fmt.Errorf("header column %d is empty: %w", i+1, apperrors.ErrDecode)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("header column %q appears twice: %w", c, apperrors.ErrDecode)
		}
		seen[c] = struct{}{}
	}
	return nil
}
