package writer

import (
	"bufio"
	"encoding/csv"
	"io"

	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
)

// writeDelimited serves both CSV and TSV. CSV follows RFC 4180: comma
// separator, CRLF line endings, fields quoted only when they contain the
// separator, a quote, CR or LF, internal quotes doubled, no byte-order mark.
// TSV uses the same structure with a tab separator; a field containing a
// tab, quote, CR or LF is quoted RFC-4180-style rather than rejected. NULL
// renders as an empty unquoted field.
func writeDelimited(src Source, out io.Writer, comma rune) (int, error) {
	buf := bufio.NewWriterSize(out, bufferSize)
	w := csv.NewWriter(buf)
	w.Comma = comma
	w.UseCRLF = true

	header := src.Columns()
	if err := w.Write(header); err != nil {
		return 0, exitcode.IO("writing header", err)
	}

	count := 0
	record := make([]string, len(header))
	for src.Next() {
		row := src.Row()
		for i := range record {
			if i < len(row) {
				// Null fields carry an empty Value, which is exactly the
				// CSV/TSV rendering of NULL.
				record[i] = row[i].Value
			} else {
				record[i] = ""
			}
		}
		if err := w.Write(record); err != nil {
			return count, exitcode.IO("writing row", err)
		}
		count++
	}
	if err := src.Err(); err != nil {
		return count, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return count, exitcode.IO("writing output", err)
	}
	if err := buf.Flush(); err != nil {
		return count, exitcode.IO("flushing output", err)
	}
	return count, nil
}
