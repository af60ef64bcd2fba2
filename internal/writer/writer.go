// Package writer serializes materialized rows into one of the three output
// formats. All writers share the same contract: consume a lazy row source,
// produce a syntactically complete document even for zero rows, buffer at
// 64 KiB, and flush before returning.
package writer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
	"github.com/EvilBit-Labs/gold-digger/internal/value"
)

// Output buffer size, measured against large result sets.
const bufferSize = 64 * 1024

// Format selects the on-disk serialization.
type Format string

// Supported output formats.
const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", exitcode.Config(fmt.Sprintf("invalid format %q, expected csv, json or tsv", s), nil)
	}
}

// FromExtension infers the format from an output path. Unknown or missing
// extensions default to JSON.
func FromExtension(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".tsv":
		return FormatTSV
	case ".json":
		return FormatJSON
	default:
		return FormatJSON
	}
}

// Source is a lazy, finite sequence of materialized rows. db.Rows satisfies
// it; tests use an in-memory implementation. Rows must be consumed in order
// and Err checked after Next returns false.
type Source interface {
	Columns() []string
	Next() bool
	Row() value.Row
	Err() error
}

// Options tune the serialization.
type Options struct {
	// Pretty switches the JSON writer to deterministic two-space
	// indentation. Ignored by CSV and TSV.
	Pretty bool
}

// Write serializes src to out in the given format and flushes. It returns
// the number of data rows written.
func Write(f Format, src Source, out io.Writer, opts Options) (int, error) {
	switch f {
	case FormatCSV:
		return writeDelimited(src, out, ',')
	case FormatTSV:
		return writeDelimited(src, out, '\t')
	case FormatJSON:
		return writeJSON(src, out, opts.Pretty)
	default:
		return 0, exitcode.Config(fmt.Sprintf("invalid format %q", string(f)), nil)
	}
}
