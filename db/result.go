package db

import (
	"fmt"
	"io"
	"time"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/ps"
)

// ColumnInfo is one entry of a result header.
type ColumnInfo struct {
	Label string
	Type  core.ColumnType
}

// Record is one row of a result and the link to the next one.
type Record struct {
	Values core.Row
	next   *Record
}

// Result is the outcome of Execute. Statements that change rows report
// UpdateCount; queries carry a header and a chain of records that a single
// forward cursor consumes once.
type Result struct {
	UpdateCount int64
	Columns     []ColumnInfo
	Parameters  []*Parameter
	Transaction ps.Transaction
	Duration    time.Duration

	head    *Record
	current *Record
	rows    int
	sources []*op.Table
	closed  bool
	err     error
}

func newQueryResult(columns []ColumnInfo, rows []core.Row, sources []*op.Table) *Result {
	r := &Result{Columns: columns, rows: len(rows), sources: sources}
	var tail *Record
	for _, row := range rows {
		record := &Record{Values: row}
		if tail == nil {
			r.head = record
		} else {
			tail.next = record
		}
		tail = record
	}
	return r
}

// IsQuery reports whether the result has a header and rows.
func (r *Result) IsQuery() bool {
	return r.Columns != nil
}

// RowCount is the number of records the query produced.
func (r *Result) RowCount() int {
	return r.rows
}

// Next advances the cursor. It returns false at the end, after Close, or
// once a table the query read from has been dropped; Err tells which.
func (r *Result) Next() bool {
	if r.closed {
		if r.err == nil {
			r.err = core.NewCursorError(core.CodeCursorClosed, "cursor is closed")
		}
		return false
	}
	for _, table := range r.sources {
		if table.Dropped() {
			r.err = core.NewCursorError(core.CodeCursorInvalidated, "cursor invalidated: table %s was dropped", table.Name())
			r.release()
			return false
		}
	}
	if r.current == nil {
		r.current = r.head
		r.head = nil
	} else {
		r.current = r.current.next
	}
	return r.current != nil
}

// Row returns the record under the cursor.
func (r *Result) Row() core.Row {
	if r.current == nil {
		return nil
	}
	return r.current.Values
}

func (r *Result) Err() error {
	return r.err
}

// Close releases the records. Closing twice is harmless.
func (r *Result) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.release()
}

func (r *Result) release() {
	r.head = nil
	r.current = nil
	r.sources = nil
}

// Rows drains the remaining records.
func (r *Result) Rows() ([]core.Row, error) {
	var rows []core.Row
	for r.Next() {
		rows = append(rows, r.Row())
	}
	return rows, r.Err()
}

// Scalar returns the first column of the first row, or NULL when the
// query produced no rows.
func (r *Result) Scalar() (core.Value, error) {
	if !r.IsQuery() {
		return core.Value{}, core.NewCursorError(core.CodeCursorClosed, "statement returned no rows")
	}
	if r.Next() {
		return r.Row()[0], nil
	}
	if err := r.Err(); err != nil {
		return core.Value{}, err
	}
	return core.Null(r.Columns[0].Type), nil
}

// formatDuration formats a duration in human-readable form
func formatDuration(secs float64) string {
	if secs < 0.001 {
		return "<1ms"
	} else if secs < 1 {
		ms := secs * 1000
		if ms < 10 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	} else if secs < 60 {
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	}
	mins := int(secs / 60)
	remainSecs := int(secs) % 60
	if remainSecs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, remainSecs)
}

// Display consumes the cursor and writes the result as a text table
// followed by a one-line summary.
func (r *Result) Display(w io.Writer) error {
	elapsed := formatDuration(r.Duration.Seconds())
	if !r.IsQuery() {
		if r.Transaction.Id != "" {
			_, err := fmt.Fprintf(w, "checkpoint %s (%s)\n", r.Transaction, elapsed)
			return err
		}
		_, err := fmt.Fprintf(w, "%d row(s) affected (%s)\n", r.UpdateCount, elapsed)
		return err
	}

	table := newTextTable(w)
	headers := make([]string, len(r.Columns))
	for i, column := range r.Columns {
		headers[i] = column.Label
	}
	table.Header(headers)

	count := 0
	for r.Next() {
		row := r.Row()
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		table.Row(cells)
		count++
	}
	if err := r.Err(); err != nil {
		return err
	}
	if count > 0 {
		table.Render()
	}
	_, err := fmt.Fprintf(w, "%d rows (%s)\n", count, elapsed)
	return err
}
