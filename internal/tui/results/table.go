package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/joacominatel/sqlgate/internal/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NullText is how SQL NULL is displayed.
const NullText = "NULL"

// Table is a query result laid out in field order.
type Table struct {
	Columns  []string
	Rows     [][]any
	RowCount int64
	Elapsed  time.Duration
	Message  string
}

// FromResult arranges a gateway result by its field list. Row objects carry
// no order of their own.
func FromResult(r *client.Result) *Table {
	t := &Table{
		Columns:  make([]string, len(r.Fields)),
		Rows:     make([][]any, len(r.Rows)),
		RowCount: r.RowCount,
		Elapsed:  time.Duration(r.ExecutionTime) * time.Millisecond,
		Message:  r.Message,
	}
	for i, f := range r.Fields {
		t.Columns[i] = f.Name
	}
	for i, row := range r.Rows {
		values := make([]any, len(t.Columns))
		for j, name := range t.Columns {
			values[j] = row[name]
		}
		t.Rows[i] = values
	}
	return t
}

// Cell returns the display text of a cell, or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if t == nil || row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return FormatValue(t.Rows[row][col])
}

// FormatValue renders a decoded JSON value for display.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return NullText
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// WriteCSV writes a header row followed by every row. NULL becomes an empty
// field.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) && row[i] != nil {
				record[i] = FormatValue(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the rows as a JSON array of objects with keys in column
// order.
func WriteJSON(w io.Writer, t *Table) error {
	stream := jsoniter.NewStream(json, w, 4096)
	stream.WriteArrayStart()
	for i, row := range t.Rows {
		if i > 0 {
			stream.WriteMore()
		}
		writeRow(stream, t.Columns, row)
	}
	stream.WriteArrayEnd()
	stream.WriteRaw("\n")
	if stream.Error != nil {
		return stream.Error
	}
	return stream.Flush()
}

// RowJSON returns one row as a JSON object with keys in column order.
func RowJSON(columns []string, row []any) (string, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)
	writeRow(stream, columns, row)
	if stream.Error != nil {
		return "", stream.Error
	}
	return string(stream.Buffer()), nil
}

func writeRow(stream *jsoniter.Stream, columns []string, row []any) {
	stream.WriteObjectStart()
	for i, col := range columns {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(col)
		if i < len(row) {
			stream.WriteVal(row[i])
		} else {
			stream.WriteNil()
		}
	}
	stream.WriteObjectEnd()
}

// RowCSV returns the header and one row as CSV.
func RowCSV(columns []string, row []any) (string, error) {
	var b strings.Builder
	err := WriteCSV(&b, &Table{Columns: columns, Rows: [][]any{row}})
	return b.String(), err
}
