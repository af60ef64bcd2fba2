package db

import (
	"database/sql"

	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
	"github.com/EvilBit-Labs/gold-digger/internal/value"
)

// Rows materializes a result set one row at a time. It preserves the
// server's delivery order exactly and emits no partial rows: a conversion
// failure anywhere in a row stops iteration with the row-processing error.
type Rows struct {
	rows    *sql.Rows
	cols    []value.Column
	names   []string
	current value.Row
	err     error
	done    bool
}

func newRows(rows *sql.Rows) (*Rows, error) {
	names, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, exitcode.Query("reading result columns", err)
	}

	cols := make([]value.Column, len(names))
	for i, name := range names {
		cols[i] = value.Column{Name: name}
	}
	// DatabaseTypeName drives the binary/temporal/text dispatch in the
	// converter. ColumnTypes can fail on exotic drivers; names alone still
	// allow lexical passthrough.
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			if i < len(cols) && ct != nil {
				cols[i].DatabaseType = ct.DatabaseTypeName()
			}
		}
	}

	return &Rows{rows: rows, cols: cols, names: names}, nil
}

// Columns returns the header: column names in server order.
func (r *Rows) Columns() []string {
	return r.names
}

// Next advances to the next row, converting every value to its canonical
// form. It returns false at the end of the set or on the first error.
func (r *Rows) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	if !r.rows.Next() {
		r.done = true
		if err := r.rows.Err(); err != nil {
			r.err = exitcode.Query("reading result rows", err)
		}
		return false
	}

	raw := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.done = true
		r.err = exitcode.Query("scanning result row", err)
		return false
	}

	row := make(value.Row, len(r.cols))
	for i, v := range raw {
		field, err := value.Convert(v, r.cols[i])
		if err != nil {
			r.done = true
			r.err = exitcode.Query("Type conversion failed during row processing", err)
			return false
		}
		row[i] = field
	}
	r.current = row
	return true
}

// Row returns the row produced by the last successful Next.
func (r *Rows) Row() value.Row {
	return r.current
}

// Err returns the first error encountered during iteration, if any.
func (r *Rows) Err() error {
	return r.err
}

// Close releases the underlying result set.
func (r *Rows) Close() error {
	return r.rows.Close()
}
