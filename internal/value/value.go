// Package value converts raw database values into their canonical string
// form. Conversion is pure and total: every value either maps to exactly one
// string or fails with a typed conversion error whose message names the
// offending component. All three writers consume the same canonical form.
//
// Binary column data is rendered as uppercase hex without separators. This
// is the only supported encoding for binary values.
package value

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column describes one result-set column: its name and the driver-reported
// database type (e.g. "VARCHAR", "DECIMAL", "DATETIME", "BLOB").
type Column struct {
	Name         string
	DatabaseType string
}

// Field is one converted cell. Null is a sentinel distinct from an empty
// string; the writers decide how NULL renders per format.
type Field struct {
	Value string
	Null  bool
}

// Row is a positional sequence of fields matching the column order.
type Row []Field

// binaryTypes are the MySQL column types whose values are raw bytes rather
// than text. BIT and GEOMETRY are included: their wire form is opaque.
var binaryTypes = map[string]bool{
	"BINARY":     true,
	"VARBINARY":  true,
	"BLOB":       true,
	"TINYBLOB":   true,
	"MEDIUMBLOB": true,
	"LONGBLOB":   true,
	"BIT":        true,
	"GEOMETRY":   true,
}

// Convert maps a raw driver value to its canonical string form. NULL maps to
// a Field with Null set. Temporal values are range-checked component by
// component; violations return an error carrying the "Type conversion error"
// signature that the exit-code classifier maps to a query error.
func Convert(raw any, col Column) (Field, error) {
	switch v := raw.(type) {
	case nil:
		return Field{Null: true}, nil
	case int64:
		return Field{Value: strconv.FormatInt(v, 10)}, nil
	case uint64:
		return Field{Value: strconv.FormatUint(v, 10)}, nil
	case int:
		return Field{Value: strconv.Itoa(v)}, nil
	case float64:
		return Field{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case float32:
		return Field{Value: strconv.FormatFloat(float64(v), 'f', -1, 32)}, nil
	case bool:
		if v {
			return Field{Value: "1"}, nil
		}
		return Field{Value: "0"}, nil
	case time.Time:
		// Only seen when a caller opts into parseTime in the URL; rendered
		// in the same canonical form as lexical datetimes.
		return Field{Value: renderGoTime(v)}, nil
	case []byte:
		return convertText(string(v), col)
	case string:
		return convertText(v, col)
	default:
		return Field{}, fmt.Errorf("Type conversion error: unsupported value of type %T in column %q", raw, col.Name)
	}
}

// convertText handles the text-protocol path, where the driver delivers every
// non-NULL value as bytes and the column type decides the interpretation.
func convertText(s string, col Column) (Field, error) {
	typ := strings.ToUpper(col.DatabaseType)
	switch {
	case binaryTypes[typ]:
		return Field{Value: strings.ToUpper(hex.EncodeToString([]byte(s)))}, nil
	case typ == "DATE":
		canonical, err := convertDate(s)
		if err != nil {
			return Field{}, err
		}
		return Field{Value: canonical}, nil
	case typ == "DATETIME" || typ == "TIMESTAMP":
		canonical, err := convertDateTime(s)
		if err != nil {
			return Field{}, err
		}
		return Field{Value: canonical}, nil
	case typ == "TIME":
		canonical, err := convertTime(s)
		if err != nil {
			return Field{}, err
		}
		return Field{Value: canonical}, nil
	default:
		// Integers, floats and DECIMAL arrive in their source lexical form
		// and are preserved exactly; JSON keeps its compact lexical text.
		return Field{Value: s}, nil
	}
}

func renderGoTime(t time.Time) string {
	us := t.Nanosecond() / 1000
	if us == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05") + fmt.Sprintf(".%06d", us)
}
