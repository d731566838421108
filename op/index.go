package op

import (
	"math"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/nickyhof/EmbedDB/core"
)

// indexEntry orders by key, then by row id so equal keys of a non-unique
// index stay distinct.
type indexEntry struct {
	key   core.Key
	rowID int64
}

func compareEntries(a, b interface{}) int {
	x := a.(indexEntry)
	y := b.(indexEntry)
	if c := core.CompareKeys(x.key, y.key); c != 0 {
		return c
	}
	switch {
	case x.rowID < y.rowID:
		return -1
	case x.rowID > y.rowID:
		return 1
	}
	return 0
}

// Index is an ordered map from key tuples to row ids.
type Index struct {
	Def     core.IndexDef
	columns []int
	tree    *redblacktree.Tree
}

// NewIndex builds an empty index over the given column ordinals.
func NewIndex(def core.IndexDef, columns []int) *Index {
	return &Index{
		Def:     def,
		columns: columns,
		tree:    redblacktree.NewWith(compareEntries),
	}
}

func (idx *Index) Columns() []int {
	return idx.columns
}

// KeyOf extracts this index's key from a full row.
func (idx *Index) KeyOf(row core.Row) core.Key {
	key := make(core.Key, len(idx.columns))
	for i, c := range idx.columns {
		key[i] = row[c]
	}
	return key
}

// Insert adds row under rowID. A unique index rejects a key that is
// already present unless the key contains a NULL.
func (idx *Index) Insert(row core.Row, rowID int64) error {
	key := idx.KeyOf(row)
	if idx.Def.Unique && !key.HasNull() && idx.contains(key) {
		if idx.Def.Primary {
			return core.NewConstraintError(core.CodeDuplicateKey, "duplicate primary key (%s) in %s", key, idx.Def.Name)
		}
		return core.NewConstraintError(core.CodeUniqueViolation, "unique constraint %s violated by (%s)", idx.Def.Name, key)
	}
	idx.tree.Put(indexEntry{key: key, rowID: rowID}, rowID)
	return nil
}

// Delete removes the entry of row stored under rowID.
func (idx *Index) Delete(row core.Row, rowID int64) {
	idx.tree.Remove(indexEntry{key: idx.KeyOf(row), rowID: rowID})
}

func (idx *Index) contains(key core.Key) bool {
	node, found := idx.tree.Ceiling(indexEntry{key: key, rowID: math.MinInt64})
	return found && core.CompareKeys(node.Key.(indexEntry).key, key) == 0
}

// Lookup returns the row ids whose key equals key, in row id order. A key
// containing NULL matches nothing.
func (idx *Index) Lookup(key core.Key) []int64 {
	if key.HasNull() {
		return nil
	}
	return idx.Range(key, true, key, true)
}

// Range returns the row ids whose key lies between low and high, in key
// order. A nil bound is open. NULL keys are never part of a range.
func (idx *Index) Range(low core.Key, lowInclusive bool, high core.Key, highInclusive bool) []int64 {
	var it redblacktree.Iterator
	if low != nil {
		start := indexEntry{key: low, rowID: math.MinInt64}
		if !lowInclusive {
			start.rowID = math.MaxInt64
		}
		node, found := idx.tree.Ceiling(start)
		if !found {
			return nil
		}
		it = idx.tree.IteratorAt(node)
	} else {
		it = idx.tree.Iterator()
		if !it.Next() {
			return nil
		}
	}

	var ids []int64
	for ok := true; ok; ok = it.Next() {
		entry := it.Key().(indexEntry)
		if entry.key.HasNull() {
			continue
		}
		if high != nil {
			c := core.CompareKeys(entry.key, high)
			if c > 0 || (c == 0 && !highInclusive) {
				break
			}
		}
		ids = append(ids, entry.rowID)
	}
	return ids
}

func (idx *Index) Len() int {
	return idx.tree.Size()
}

func (idx *Index) Clear() {
	idx.tree.Clear()
}
