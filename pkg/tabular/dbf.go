package tabular

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Valentin-Kaiser/go-dbase/dbase"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

// readDBF stages src on disk because the decoder needs a seekable file.
// The staging file is removed on every path.
func (r *Reader) readDBF(ctx context.Context, src io.Reader) (*Table, error) {
	tmp, err := os.CreateTemp(r.stagingDir, "upload-*.dbf")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("Failed to remove staging file", zap.String("path", path), zap.Error(err))
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to stage upload: %v: %w", err, apperrors.ErrDecode)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close staging file: %w", err)
	}

	return decodeDBF(ctx, path)
}

func decodeDBF(ctx context.Context, path string) (table *Table, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			table = nil
			err = fmt.Errorf("dbf decoder: %v: %w", rec, apperrors.ErrDecode)
		}
	}()

	dbf, err := dbase.OpenTable(&dbase.Config{
		Filename:   path,
		TrimSpaces: true,
		Untested:   true,
		Converter:  dbase.NewDefaultConverter(charmap.ISO8859_1),
	})
	if err != nil {
		return nil, fmt.Errorf("open dbf: %v: %w", err, apperrors.ErrDecode)
	}
	defer dbf.Close()

	cols := dbf.Columns()
	columns := make([]string, len(cols))
	for i, c := range cols {
		columns[i] = strings.TrimSpace(c.Name())
	}
	if err := checkHeader(columns); err != nil {
		return nil, err
	}

	table = &Table{Columns: columns}
	for recNo := 1; !dbf.EOF(); recNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := dbf.Next()
		if err != nil {
			return nil, fmt.Errorf("record %d: %v: %w", recNo, err, apperrors.ErrDecode)
		}
		if row == nil || row.Deleted {
			continue
		}

		values := make(map[string]string, len(columns))
		for i, c := range columns {
			v, err := row.ValueByPos(i)
			if err != nil {
				return nil, fmt.Errorf("record %d column %q: %v: %w", recNo, c, err, apperrors.ErrDecode)
			}
			values[c] = formatValue(v)
		}
		table.Rows = append(table.Rows, Row{Line: recNo, Values: values})
	}
	return table, nil
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
