package tableio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/packet"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func people(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		table.NewColumn("id", schema.TypeInteger, []any{int64(1), int64(2), int64(3)}),
		table.NewColumn("name", schema.TypeText, []any{"Anna", "pipe|name", `back\slash`}),
		table.NewColumn("score", schema.TypeReal, []any{1.5, nil, 3.0}),
	)
	require.NoError(t, err)
	return tbl
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"in.xml", FormatTDTP, false},
		{"in.TDTP", FormatTDTP, false},
		{"dir/in.xlsx", FormatXLSX, false},
		{"in.csv", FormatCSV, false},
		{"in.parquet", "", true},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestTDTPRoundTrip(t *testing.T) {
	src := people(t)
	path := filepath.Join(t.TempDir(), "people.xml")
	require.NoError(t, Save(src, path, Options{}))

	got, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, src.ColumnNames(), got.ColumnNames())

	name, _ := got.Column("name")
	assert.Equal(t, []any{"Anna", "pipe|name", `back\slash`}, name.Values)
	score, _ := got.Column("score")
	assert.Equal(t, schema.TypeReal, score.Type)
	assert.Equal(t, []any{1.5, nil, 3.0}, score.Values)
}

func TestTDTPMultiPart(t *testing.T) {
	rows := make([][]any, 40)
	for i := range rows {
		rows[i] = []any{strings.Repeat("v", 200)}
	}
	src, err := table.FromRows([]string{"value"}, rows)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "big.xml")
	require.NoError(t, Save(src, path, Options{MaxMessageSize: 7000}))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	parts, _ := filepath.Glob(filepath.Join(dir, "big_part_*_of_*.xml"))
	require.Greater(t, len(parts), 1)

	got, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 40, got.Len())

	got, err = Load(parts[0], Options{})
	require.NoError(t, err)
	assert.Equal(t, 40, got.Len())
}

func TestTDTPCompressed(t *testing.T) {
	src := people(t)
	opts := Options{
		TableName:   "people",
		Compression: packet.CompressionOptions{Enabled: true, Level: 3},
	}

	data, err := Encode(src, FormatTDTP, opts)
	require.NoError(t, err)
	assert.Contains(t, string(data), `compression="zstd"`)

	got, err := Read(bytes.NewReader(data), FormatTDTP, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
}

func TestFromPacket_BadValuesKeptAsText(t *testing.T) {
	pkt := packet.NewDataPacket(packet.TypeReference, "t")
	pkt.Schema = packet.Schema{Fields: []packet.Field{{Name: "qty", Type: "INTEGER"}}}
	pkt.Data = packet.RowsToData([][]string{{"7"}, {"many"}, {""}})

	got, err := FromPacket(pkt)
	require.NoError(t, err)
	qty, _ := got.Column("qty")
	assert.Equal(t, []any{int64(7), "many", nil}, qty.Values)
}

func TestCSVRoundTrip(t *testing.T) {
	in := "id;name\n1;Anna\n2;\n3;\"semi;colon\"\n"
	got, err := Read(strings.NewReader(in), FormatCSV, Options{Delimiter: ';'})
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())

	name, _ := got.Column("name")
	assert.Equal(t, []any{"Anna", nil, "semi;colon"}, name.Values)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, got, FormatCSV, Options{Delimiter: ';'}))
	assert.Equal(t, in, buf.String())
}

func TestCSVErrors(t *testing.T) {
	_, err := Read(strings.NewReader(""), FormatCSV, Options{})
	assert.Error(t, err)

	_, err = Read(strings.NewReader("a\n1,2\n"), FormatCSV, Options{})
	assert.Error(t, err)
}

func TestXLSXFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "people.xlsx")
	require.NoError(t, Save(people(t), path, Options{Sheet: "People"}))

	got, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
}

func TestSaveReport(t *testing.T) {
	report := audit.Report{
		audit.NewEntry("Number", "Price", audit.CategoryModified, "decimal places fixed"),
	}
	dir := t.TempDir()

	for _, name := range []string{"report.csv", "report.json", "report.xlsx"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveReport(report, path), name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	assert.Error(t, SaveReport(report, filepath.Join(dir, "report.txt")))

	data, err := EncodeReport(report, ReportCSV)
	require.NoError(t, err)
	assert.Contains(t, string(data), "decimal places fixed")
}
