package writer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvilBit-Labs/gold-digger/internal/value"
)

// sliceSource is an in-memory Source for tests.
type sliceSource struct {
	cols []string
	rows []value.Row
	pos  int
	err  error
}

func (s *sliceSource) Columns() []string { return s.cols }

func (s *sliceSource) Next() bool {
	if s.err != nil || s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Row() value.Row { return s.rows[s.pos-1] }
func (s *sliceSource) Err() error     { return s.err }

func str(v string) value.Field { return value.Field{Value: v} }

var null = value.Field{Null: true}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"csv", "CSV", "json", "tsv"} {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, Format(strings.ToLower(name)), f)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestFromExtension(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"out.csv", FormatCSV},
		{"out.TSV", FormatTSV},
		{"out.json", FormatJSON},
		{"out.txt", FormatJSON},
		{"out", FormatJSON},
		{"dir.csv/out", FormatJSON},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromExtension(tt.path), tt.path)
	}
}

func TestWriteCSVHappyPath(t *testing.T) {
	src := &sliceSource{
		cols: []string{"a", "b", "c"},
		rows: []value.Row{{str("1"), str("x,y"), null}},
	}

	var out bytes.Buffer
	n, err := Write(FormatCSV, src, &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "a,b,c\r\n1,\"x,y\",\r\n", out.String())
}

func TestWriteCSVQuoting(t *testing.T) {
	src := &sliceSource{
		cols: []string{"v"},
		rows: []value.Row{
			{str(`say "hi"`)},
			{str("line1\nline2")},
			{str("plain")},
		},
	}

	var out bytes.Buffer
	_, err := Write(FormatCSV, src, &out, Options{})
	require.NoError(t, err)

	// Internal quotes doubled, embedded newline quoted (and normalized to
	// CRLF by the writer), plain field bare.
	assert.Contains(t, out.String(), `"say ""hi"""`)
	assert.Contains(t, out.String(), "\"line1\r\nline2\"")
	assert.Contains(t, out.String(), "plain\r\n")
}

func TestWriteCSVRoundTrip(t *testing.T) {
	src := &sliceSource{
		cols: []string{"a", "b"},
		rows: []value.Row{
			{str("1"), str("x,y")},
			{str(`q"q`), str("tab\tted")},
			{null, str("")},
		},
	}

	var out bytes.Buffer
	_, err := Write(FormatCSV, src, &out, Options{})
	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(out.Bytes()))
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"a", "b"}, records[0])
	assert.Equal(t, []string{"1", "x,y"}, records[1])
	assert.Equal(t, []string{`q"q`, "tab\tted"}, records[2])
	assert.Equal(t, []string{"", ""}, records[3])

	// Header/row width agreement.
	for _, rec := range records {
		assert.Len(t, rec, 2)
	}
}

func TestWriteCSVEmptyResult(t *testing.T) {
	src := &sliceSource{cols: []string{"a", "b"}}

	var out bytes.Buffer
	n, err := Write(FormatCSV, src, &out, Options{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "a,b\r\n", out.String())
}

func TestWriteTSV(t *testing.T) {
	src := &sliceSource{
		cols: []string{"a", "b"},
		rows: []value.Row{
			{str("1"), str("plain")},
			{str("has\ttab"), null},
		},
	}

	var out bytes.Buffer
	n, err := Write(FormatTSV, src, &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "a\tb\r\n1\tplain\r\n\"has\ttab\"\t\r\n", out.String())
}

func TestWriteJSONCompact(t *testing.T) {
	src := &sliceSource{
		cols: []string{"d"},
		rows: []value.Row{{str("1.23000")}},
	}

	var out bytes.Buffer
	n, err := Write(FormatJSON, src, &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, `{"data":[{"d":"1.23000"}]}`, out.String())
}

func TestWriteJSONNullAndOrdering(t *testing.T) {
	src := &sliceSource{
		cols: []string{"b", "a"},
		rows: []value.Row{
			{str("1"), null},
			{null, str("2")},
		},
	}

	var out bytes.Buffer
	_, err := Write(FormatJSON, src, &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, `{"data":[{"b":"1","a":null},{"b":null,"a":"2"}]}`, out.String())
}

func TestWriteJSONEmpty(t *testing.T) {
	src := &sliceSource{cols: []string{"a"}}

	var out bytes.Buffer
	n, err := Write(FormatJSON, src, &out, Options{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, `{"data":[]}`, out.String())
}

func TestWriteJSONPretty(t *testing.T) {
	src := &sliceSource{
		cols: []string{"d"},
		rows: []value.Row{{str("1.23000")}},
	}

	var out bytes.Buffer
	_, err := Write(FormatJSON, src, &out, Options{Pretty: true})
	require.NoError(t, err)

	want := "{\n  \"data\": [\n    {\n      \"d\": \"1.23000\"\n    }\n  ]\n}"
	assert.Equal(t, want, out.String())
}

func TestWriteJSONParseable(t *testing.T) {
	src := &sliceSource{
		cols: []string{"name", "note"},
		rows: []value.Row{
			{str("a\"b"), str("line\nbreak")},
			{str("unicode ✓"), null},
		},
	}

	var out bytes.Buffer
	_, err := Write(FormatJSON, src, &out, Options{})
	require.NoError(t, err)

	var doc struct {
		Data []map[string]*string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Data, 2)
	assert.Equal(t, "a\"b", *doc.Data[0]["name"])
	assert.Equal(t, "line\nbreak", *doc.Data[0]["note"])
	assert.Nil(t, doc.Data[1]["note"])
}

func TestWritePropagatesSourceError(t *testing.T) {
	src := &sliceSource{
		cols: []string{"a"},
		err:  errors.New("Type conversion failed during row processing"),
	}

	for _, f := range []Format{FormatCSV, FormatTSV, FormatJSON} {
		var out bytes.Buffer
		_, err := Write(f, src, &out, Options{})
		require.Error(t, err, string(f))
		assert.Contains(t, err.Error(), "Type conversion failed")
	}
}

// failWriter fails after n bytes to exercise the I/O error path.
type failWriter struct {
	remaining int
}

func (w *failWriter) Write(p []byte) (int, error) {
	if len(p) > w.remaining {
		n := w.remaining
		w.remaining = 0
		return n, errors.New("disk full")
	}
	w.remaining -= len(p)
	return len(p), nil
}

func TestWriteFlushFailure(t *testing.T) {
	src := &sliceSource{
		cols: []string{"a"},
		rows: []value.Row{{str("1")}},
	}

	_, err := Write(FormatJSON, src, &failWriter{remaining: 2}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush")
}
