package adapter

import (
	"bufio"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// NullMarker is the staging file spelling of NULL. Engines that bulk copy
// the file themselves are configured with the same marker.
const NullMarker = `\N`

// WriteRowsCSV streams rows into w as headerless CSV and returns the row
// count. NULL is written as NullMarker so it stays distinct from an empty
// string.
func WriteRowsCSV(rows *sql.Rows, w io.Writer) (int64, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read columns: %w", err)
	}

	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(cols))

	var n int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, fmt.Errorf("failed to scan row %d: %w", n+1, err)
		}
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := writeRecord(cw, bw, record); err != nil {
			return n, fmt.Errorf("failed to write row %d: %w", n+1, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("error iterating rows: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, err
	}
	return n, bw.Flush()
}

// writeRecord writes one record. A record holding a single empty string is
// written as a quoted empty field; csv.Writer would emit a blank line, which
// readers skip.
func writeRecord(cw *csv.Writer, bw *bufio.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return cw.Write(record)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := bw.WriteString("\"\"\n")
	return err
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return NullMarker
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// ReadCSV calls fn for every record of a headerless CSV stream. Fields equal
// to NullMarker are passed as nil; every other field, empty ones included,
// is passed as a string.
func ReadCSV(r io.Reader, columns int, fn func(record []any) error) (int64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = columns
	cr.ReuseRecord = true

	args := make([]any, columns)
	var n int64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to read record %d: %w", n+1, err)
		}
		for i, f := range rec {
			if f == NullMarker {
				args[i] = nil
			} else {
				args[i] = f
			}
		}
		if err := fn(args); err != nil {
			return n, err
		}
		n++
	}
}
