package tabular

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

func newTestReader(t *testing.T) (*Reader, string) {
	t.Helper()
	dir := t.TempDir()
	return NewReader(dir, zap.NewNop()), dir
}

func TestParseFormat(t *testing.T) {
	for _, ext := range []string{"csv", ".CSV", " tsv", ".dbf", "DBF"} {
		_, err := ParseFormat(ext)
		assert.NoError(t, err, ext)
	}
	for _, ext := range []string{"", "xlsx", ".json", "csv.gz"} {
		_, err := ParseFormat(ext)
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat, ext)
	}
}

func TestParseTextEncoding(t *testing.T) {
	enc, err := ParseTextEncoding("")
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)

	enc, err = ParseTextEncoding("ISO-8859-1")
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, enc)

	_, err = ParseTextEncoding("ebcdic")
	assert.ErrorIs(t, err, apperrors.ErrInvalidValue)
}

func TestRead_CSV(t *testing.T) {
	r, _ := newTestReader(t)
	src := "\xEF\xBB\xBFProfileID, X_LonDD ,Y_LatDD\n" +
		"A1,-16.5,14.7\n" +
		"\n" +
		"A2,\"-15,2\",12.1\n"

	table, err := r.Read(context.Background(), strings.NewReader(src), "csv", EncodingUTF8)
	require.NoError(t, err)

	assert.Equal(t, []string{"ProfileID", "X_LonDD", "Y_LatDD"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, "A1", table.Rows[0].Get("ProfileID"))
	assert.Equal(t, 4, table.Rows[1].Line)
	assert.Equal(t, "-15,2", table.Rows[1].Get("X_LonDD"))
	assert.True(t, table.HasColumn("Y_LatDD"))
	assert.False(t, table.HasColumn("lat"))
}

func TestRead_TSV(t *testing.T) {
	r, _ := newTestReader(t)
	src := "profile_id\tlongitude\tlatitude\n" +
		"42\t-16.1\t14.2\n"

	table, err := r.Read(context.Background(), strings.NewReader(src), ".tsv", "")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "-16.1", table.Rows[0].Get("longitude"))
}

func TestRead_Latin1(t *testing.T) {
	r, _ := newTestReader(t)
	// "Sénégal" in ISO-8859-1
	src := []byte("Profile_id,Country\n1,S\xE9n\xE9gal\n")

	_, err := r.Read(context.Background(), bytes.NewReader(src), "csv", EncodingUTF8)
	assert.ErrorIs(t, err, apperrors.ErrDecode)

	table, err := r.Read(context.Background(), bytes.NewReader(src), "csv", EncodingLatin1)
	require.NoError(t, err)
	assert.Equal(t, "Sénégal", table.Rows[0].Get("Country"))
}

func TestRead_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty file", ""},
		{"ragged row", "a,b\n1,2\n3\n"},
		{"duplicate header", "a,a\n1,2\n"},
		{"empty header", "a,,c\n1,2,3\n"},
		{"bare quote", "a,b\n\"1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestReader(t)
			_, err := r.Read(context.Background(), strings.NewReader(tt.src), "csv", EncodingUTF8)
			assert.ErrorIs(t, err, apperrors.ErrDecode)
		})
	}
}

func TestRead_UnsupportedFormat(t *testing.T) {
	r, _ := newTestReader(t)
	_, err := r.Read(context.Background(), strings.NewReader("a,b\n"), "xlsx", EncodingUTF8)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func TestRead_CanceledContext(t *testing.T) {
	r, _ := newTestReader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Read(ctx, strings.NewReader("a\n1\n"), "csv", EncodingUTF8)
	assert.ErrorIs(t, err, context.Canceled)
}

type dbfField struct {
	name   string
	typ    byte
	length byte
	dec    byte
}

// buildDBF writes a minimal dBase III table. A leading '*' in a record
// marks it deleted.
func buildDBF(t *testing.T, fields []dbfField, records [][]string, deleted []bool) []byte {
	t.Helper()

	recLen := 1
	for _, f := range fields {
		recLen += int(f.length)
	}
	headerLen := 32 + 32*len(fields) + 1

	var buf bytes.Buffer
	header := make([]byte, 32)
	header[0] = 0x03
	header[1], header[2], header[3] = 124, 1, 1
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(records)))
	binary.LittleEndian.PutUint16(header[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(header[10:12], uint16(recLen))
	buf.Write(header)

	for _, f := range fields {
		desc := make([]byte, 32)
		copy(desc[0:11], f.name)
		desc[11] = f.typ
		desc[16] = f.length
		desc[17] = f.dec
		buf.Write(desc)
	}
	buf.WriteByte(0x0D)

	for i, rec := range records {
		if deleted != nil && deleted[i] {
			buf.WriteByte('*')
		} else {
			buf.WriteByte(' ')
		}
		for j, f := range fields {
			v := rec[j]
			pad := strings.Repeat(" ", int(f.length)-len(v))
			if f.typ == 'N' {
				buf.WriteString(pad + v)
			} else {
				buf.WriteString(v + pad)
			}
		}
	}
	buf.WriteByte(0x1A)
	return buf.Bytes()
}

func TestRead_DBF(t *testing.T) {
	r, dir := newTestReader(t)

	data := buildDBF(t,
		[]dbfField{
			{"Profile_id", 'C', 10, 0},
			{"X_Centroid", 'N', 12, 2},
			{"Country", 'C', 12, 0},
		},
		[][]string{
			{"P1", "350000.50", "S\xE9n\xE9gal"},
			{"P2", "351000.00", "Mali"},
			{"P3", "352000.00", "Gambia"},
		},
		[]bool{false, true, false},
	)

	table, err := r.Read(context.Background(), bytes.NewReader(data), "dbf", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Profile_id", "X_Centroid", "Country"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "P1", table.Rows[0].Get("Profile_id"))
	assert.Equal(t, "350000.5", table.Rows[0].Get("X_Centroid"))
	assert.Equal(t, "Sénégal", table.Rows[0].Get("Country"))
	assert.Equal(t, "P3", table.Rows[1].Get("Profile_id"))
	assert.Equal(t, 3, table.Rows[1].Line)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging file must be removed")
}

func TestRead_DBFGarbageRemovesStagingFile(t *testing.T) {
	r, dir := newTestReader(t)

	_, err := r.Read(context.Background(), strings.NewReader("this is not a dbase table"), "dbf", "")
	assert.ErrorIs(t, err, apperrors.ErrDecode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "abc", formatValue("  abc "))
	assert.Equal(t, "12.5", formatValue(12.5))
	assert.Equal(t, "7", formatValue(int64(7)))
	assert.Equal(t, "true", formatValue(true))
}
