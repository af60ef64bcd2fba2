package writer

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
)

// writeJSON emits {"data":[...]} with one object per row. Keys appear in
// header order on every object. Every non-NULL field is emitted as a JSON
// string holding the canonical form — numbers are never re-typed, so source
// precision (notably DECIMAL) survives verbatim. NULL is the JSON null
// literal. Rows are streamed; only the current row is held in memory.
//
// bufio.Writer latches the first write error, so the body writes
// unconditionally and the final Flush reports any failure.
func writeJSON(src Source, out io.Writer, pretty bool) (int, error) {
	buf := bufio.NewWriterSize(out, bufferSize)

	header := src.Columns()
	keys := make([]string, len(header))
	for i, name := range header {
		k, err := json.Marshal(name)
		if err != nil {
			return 0, exitcode.IO("encoding column name", err)
		}
		keys[i] = string(k)
	}

	if pretty {
		buf.WriteString("{\n  \"data\": [")
	} else {
		buf.WriteString(`{"data":[`)
	}

	count := 0
	for src.Next() {
		row := src.Row()
		if count > 0 {
			buf.WriteByte(',')
		}
		if pretty {
			buf.WriteString("\n    {")
		} else {
			buf.WriteByte('{')
		}
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if pretty {
				buf.WriteString("\n      ")
			}
			buf.WriteString(key)
			if pretty {
				buf.WriteString(": ")
			} else {
				buf.WriteByte(':')
			}
			if i >= len(row) || row[i].Null {
				buf.WriteString("null")
				continue
			}
			encoded, err := json.Marshal(row[i].Value)
			if err != nil {
				return count, exitcode.IO("encoding field value", err)
			}
			buf.Write(encoded)
		}
		if pretty {
			buf.WriteString("\n    }")
		} else {
			buf.WriteByte('}')
		}
		count++
	}
	if err := src.Err(); err != nil {
		return count, err
	}

	if pretty {
		if count > 0 {
			buf.WriteString("\n  ")
		}
		buf.WriteString("]\n}")
	} else {
		buf.WriteString("]}")
	}

	if err := buf.Flush(); err != nil {
		return count, exitcode.IO("flushing output", err)
	}
	return count, nil
}
