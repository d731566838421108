package op

import (
	"iter"
	"math"
	"sync/atomic"
	"unicode/utf8"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/shopspring/decimal"
)

// Table is the live form of a table: its definition, rows and indexes.
type Table struct {
	Def     core.Table
	store   RowStore
	indexes []*Index
	dropped atomic.Bool
}

// Entry is one stored row and its id.
type Entry struct {
	ID  int64
	Row core.Row
}

// NewTable wires a definition to a row store and builds empty indexes for
// every index the definition declares.
func NewTable(def core.Table, store RowStore) (*Table, error) {
	t := &Table{Def: def, store: store}
	for _, indexDef := range def.Indexes {
		index, err := t.newIndex(indexDef)
		if err != nil {
			return nil, err
		}
		t.indexes = append(t.indexes, index)
	}
	return t, nil
}

func (t *Table) newIndex(def core.IndexDef) (*Index, error) {
	columns := make([]int, len(def.Columns))
	for i, name := range def.Columns {
		ordinal := t.Def.ColumnIndex(name)
		if ordinal < 0 {
			return nil, core.NewBindingError(core.CodeColumnNotFound, "column %s not found in table %s", name, t.Def.Name)
		}
		columns[i] = ordinal
	}
	return NewIndex(def, columns), nil
}

// rebuildIndexes fills every index from the stored rows.
func (t *Table) rebuildIndexes() error {
	for _, index := range t.indexes {
		index.Clear()
	}
	for entry, err := range t.Scan() {
		if err != nil {
			return err
		}
		for _, index := range t.indexes {
			if err := index.Insert(entry.Row, entry.ID); err != nil {
				return core.WrapStorage(err, "stored rows of %s violate index %s", t.Def.Name, index.Def.Name)
			}
		}
	}
	return nil
}

func (t *Table) Name() string {
	return t.Def.Name
}

func (t *Table) Store() RowStore {
	return t.store
}

func (t *Table) Indexes() []*Index {
	return t.indexes
}

func (t *Table) Index(name string) *Index {
	for _, index := range t.indexes {
		if index.Def.Name == name {
			return index
		}
	}
	return nil
}

func (t *Table) PrimaryIndex() *Index {
	for _, index := range t.indexes {
		if index.Def.Primary {
			return index
		}
	}
	return nil
}

// Dropped reports whether the table was dropped; open cursors over it are
// invalid from then on.
func (t *Table) Dropped() bool {
	return t.dropped.Load()
}

func (t *Table) Len() int {
	return t.store.Len()
}

func (t *Table) Get(rowID int64) (core.Row, bool, error) {
	return t.store.Get(rowID)
}

// Scan yields every row in row id order over a snapshot of the ids taken
// when iteration starts.
func (t *Table) Scan() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		t.yieldRows(t.store.IDs(), yield)
	}
}

// Fetch yields the rows with the given ids, skipping ids no longer present.
func (t *Table) Fetch(ids []int64) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		t.yieldRows(ids, yield)
	}
}

func (t *Table) yieldRows(ids []int64, yield func(Entry, error) bool) {
	for _, id := range ids {
		row, ok, err := t.store.Get(id)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		if !ok {
			continue
		}
		if !yield(Entry{ID: id, Row: row}, nil) {
			return
		}
	}
}

// ValidateRow converts every value to its column type and enforces
// NOT NULL and declared lengths. It returns the converted row.
func (t *Table) ValidateRow(row core.Row) (core.Row, error) {
	if len(row) != len(t.Def.Columns) {
		return nil, core.NewBindingError(core.CodeColumnCount, "table %s has %d columns, got %d values", t.Def.Name, len(t.Def.Columns), len(row))
	}
	out := make(core.Row, len(row))
	for i, column := range t.Def.Columns {
		v, err := core.Convert(row[i], column.Type)
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			if !column.Nullable {
				return nil, core.NewConstraintError(core.CodeNotNull, "column %s of %s may not be NULL", column.Name, t.Def.Name)
			}
		} else if column.Size > 0 {
			if column.Type == core.DecimalType {
				if v, err = fitPrecision(column, v); err != nil {
					return nil, err
				}
			} else if err := checkLength(column, v); err != nil {
				return nil, err
			}
		}
		out[i] = v
	}
	return out, nil
}

func checkLength(column core.Column, v core.Value) error {
	var length int
	switch {
	case column.Type.IsString():
		length = utf8.RuneCountInString(v.Str())
	case column.Type.IsBinary():
		length = len(v.Bytes())
	default:
		return nil
	}
	if length > column.Size {
		return core.NewConstraintError(core.CodeValueTooLong, "value of length %d too long for %s(%d) column %s", length, column.Type, column.Size, column.Name)
	}
	return nil
}

// fitPrecision rounds a DECIMAL(p,s) value to s fractional digits and
// rejects it when more than p-s integer digits remain.
func fitPrecision(column core.Column, v core.Value) (core.Value, error) {
	d := v.Decimal().Round(int32(column.Scale))
	limit := decimal.New(1, int32(column.Size-column.Scale))
	if d.Abs().Cmp(limit) >= 0 {
		return core.Value{}, core.NewConstraintError(core.CodeNumericOverflow, "value %s out of range for DECIMAL(%d,%d) column %s", v, column.Size, column.Scale, column.Name)
	}
	return core.NewDecimal(d), nil
}

// AssignIdentity fills a NULL identity column from the counter, or bumps
// the counter past an explicit value. It returns the identity value the
// row ends up with; the counter never moves backwards.
func (t *Table) AssignIdentity(row core.Row) (core.Row, core.Value, bool, error) {
	ordinal := t.Def.IdentityColumn()
	if ordinal < 0 {
		return row, core.Value{}, false, nil
	}
	column := t.Def.Columns[ordinal]
	v := row[ordinal]
	if v.IsNull() {
		next := t.Def.IdentityNext
		if column.Type == core.IntegerType {
			if next > math.MaxInt32 {
				return nil, core.Value{}, false, core.NewConstraintError(core.CodeNumericOverflow, "identity column %s of %s is exhausted", column.Name, t.Def.Name)
			}
			v = core.NewInteger(int32(next))
		} else {
			v = core.NewBigInt(next)
		}
		t.Def.IdentityNext++
		row = row.Clone()
		row[ordinal] = v
		return row, v, true, nil
	}

	converted, err := core.Convert(v, column.Type)
	if err != nil {
		return nil, core.Value{}, false, core.NewConstraintError(core.CodeInvalidIdentity, "invalid identity value '%s' for %s", v, column.Name)
	}
	if n := converted.Int64(); n >= t.Def.IdentityNext {
		t.Def.IdentityNext = n + 1
	}
	return row, converted, false, nil
}

// Insert stores a validated row under a fresh row id. If any index rejects
// the row, entries already added for it are removed and nothing is stored.
func (t *Table) Insert(row core.Row) (int64, error) {
	rowID := t.Def.NextRowID
	if err := t.InsertAt(rowID, row); err != nil {
		return 0, err
	}
	t.Def.NextRowID++
	return rowID, nil
}

// InsertAt stores row under a known id. Undo uses it to restore deleted rows.
func (t *Table) InsertAt(rowID int64, row core.Row) error {
	if err := t.indexRow(row, rowID); err != nil {
		return err
	}
	if err := t.store.Put(rowID, row); err != nil {
		t.unindexRow(row, rowID)
		return core.WrapStorage(err, "failed to store row of %s", t.Def.Name)
	}
	if rowID >= t.Def.NextRowID {
		t.Def.NextRowID = rowID + 1
	}
	return nil
}

func (t *Table) indexRow(row core.Row, rowID int64) error {
	for i, index := range t.indexes {
		if err := index.Insert(row, rowID); err != nil {
			for _, added := range t.indexes[:i] {
				added.Delete(row, rowID)
			}
			return err
		}
	}
	return nil
}

func (t *Table) unindexRow(row core.Row, rowID int64) {
	for _, index := range t.indexes {
		index.Delete(row, rowID)
	}
}

// Delete removes a row and returns it. Deleting a missing id is a no-op.
func (t *Table) Delete(rowID int64) (core.Row, error) {
	row, ok, err := t.store.Get(rowID)
	if err != nil || !ok {
		return nil, err
	}
	if err := t.store.Delete(rowID); err != nil {
		return nil, core.WrapStorage(err, "failed to delete row of %s", t.Def.Name)
	}
	t.unindexRow(row, rowID)
	return row, nil
}

// Update replaces the row stored under rowID and returns the previous
// version. On an index violation the table is left unchanged.
func (t *Table) Update(rowID int64, row core.Row) (core.Row, error) {
	old, ok, err := t.store.Get(rowID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.WrapStorage(errRowMissing, "failed to update row %d of %s", rowID, t.Def.Name)
	}

	t.unindexRow(old, rowID)
	if err := t.indexRow(row, rowID); err != nil {
		if restoreErr := t.indexRow(old, rowID); restoreErr != nil {
			return nil, core.WrapStorage(restoreErr, "failed to restore index entries of %s", t.Def.Name)
		}
		return nil, err
	}
	if err := t.store.Put(rowID, row); err != nil {
		t.unindexRow(row, rowID)
		t.indexRow(old, rowID)
		return nil, core.WrapStorage(err, "failed to store row of %s", t.Def.Name)
	}
	return old, nil
}

// CreateIndex builds a new index over the current rows. A unique index that
// the existing rows violate is not created.
func (t *Table) CreateIndex(def core.IndexDef) (*Index, error) {
	if t.Index(def.Name) != nil {
		return nil, core.NewBindingError(core.CodeIndexExists, "index %s already exists on %s", def.Name, t.Def.Name)
	}
	index, err := t.newIndex(def)
	if err != nil {
		return nil, err
	}
	for entry, err := range t.Scan() {
		if err != nil {
			return nil, err
		}
		if err := index.Insert(entry.Row, entry.ID); err != nil {
			return nil, err
		}
	}
	t.indexes = append(t.indexes, index)
	t.Def.Indexes = append(t.Def.Indexes, def)
	return index, nil
}

func (t *Table) DropIndex(name string) error {
	for i, index := range t.indexes {
		if index.Def.Name != name {
			continue
		}
		if index.Def.Primary {
			return core.NewConstraintError(core.CodeBadPrimaryKey, "cannot drop primary key index %s", name)
		}
		t.indexes = append(t.indexes[:i], t.indexes[i+1:]...)
		for j := range t.Def.Indexes {
			if t.Def.Indexes[j].Name == name {
				t.Def.Indexes = append(t.Def.Indexes[:j], t.Def.Indexes[j+1:]...)
				break
			}
		}
		return nil
	}
	return core.NewBindingError(core.CodeIndexNotFound, "index %s not found", name)
}

// markDropped releases the rows and invalidates the table.
func (t *Table) markDropped() {
	t.dropped.Store(true)
	t.store.Clear()
	for _, index := range t.indexes {
		index.Clear()
	}
}
