package db

import (
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
)

type undoKind int

const (
	undoInsert undoKind = iota // undone by deleting the row
	undoDelete                 // undone by re-inserting the row
	undoUpdate                 // undone by restoring the previous image
)

// undoEntry is the inverse of one row mutation.
type undoEntry struct {
	kind  undoKind
	table *op.Table
	rowID int64
	row   core.Row
}

// undoLog records the row mutations of the open transaction in order.
type undoLog struct {
	entries []undoEntry
}

func (u *undoLog) recordInsert(table *op.Table, rowID int64) {
	u.entries = append(u.entries, undoEntry{kind: undoInsert, table: table, rowID: rowID})
}

func (u *undoLog) recordDelete(table *op.Table, rowID int64, row core.Row) {
	u.entries = append(u.entries, undoEntry{kind: undoDelete, table: table, rowID: rowID, row: row})
}

func (u *undoLog) recordUpdate(table *op.Table, rowID int64, previous core.Row) {
	u.entries = append(u.entries, undoEntry{kind: undoUpdate, table: table, rowID: rowID, row: previous})
}

// committedImages adds the image each logged row had before the first
// change the log holds for it. The oldest entry wins.
func (u *undoLog) committedImages(held map[*op.Table]op.Images) map[*op.Table]op.Images {
	for _, entry := range u.entries {
		if entry.table.Dropped() {
			continue
		}
		if held == nil {
			held = make(map[*op.Table]op.Images)
		}
		images := held[entry.table]
		if images == nil {
			images = make(op.Images)
			held[entry.table] = images
		}
		if _, seen := images[entry.rowID]; seen {
			continue
		}
		if entry.kind == undoInsert {
			images[entry.rowID] = nil
		} else {
			images[entry.rowID] = entry.row
		}
	}
	return held
}

// savepoint marks the current end of the log.
func (u *undoLog) savepoint() int {
	return len(u.entries)
}

func (u *undoLog) len() int {
	return len(u.entries)
}

// rollbackTo undoes every entry after mark, newest first, and truncates
// the log. Entries of dropped tables are skipped.
func (u *undoLog) rollbackTo(mark int) error {
	var firstErr error
	for i := len(u.entries) - 1; i >= mark; i-- {
		entry := u.entries[i]
		if entry.table.Dropped() {
			continue
		}
		var err error
		switch entry.kind {
		case undoInsert:
			_, err = entry.table.Delete(entry.rowID)
		case undoDelete:
			err = entry.table.InsertAt(entry.rowID, entry.row)
		case undoUpdate:
			_, err = entry.table.Update(entry.rowID, entry.row)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	clear(u.entries[mark:])
	u.entries = u.entries[:mark]
	return firstErr
}

// reset discards the log; the changes it covered become permanent.
func (u *undoLog) reset() {
	clear(u.entries)
	u.entries = u.entries[:0]
}
