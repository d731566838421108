package op

import (
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/ps"
)

// RowStore holds the rows of one table keyed by row id. Rows handed out by
// Get must not be modified; replace them through Put.
type RowStore interface {
	Get(rowID int64) (core.Row, bool, error)
	Put(rowID int64, row core.Row) error
	Delete(rowID int64) error
	Contains(rowID int64) bool
	Len() int
	// IDs returns a snapshot of all row ids in ascending order.
	IDs() []int64
	// Flush stages every row changed since the last checkpoint and
	// returns the number of staged operations. Rows listed in held are
	// staged with their committed image instead of their current one.
	Flush(table string, txn *ps.TransactionBuilder, held Images) (int, error)
	// Clean forgets the changes staged by Flush once they are committed.
	// Rows listed in held stay dirty.
	Clean(held Images)
	Clear()
}

// Images maps row ids to the row they held before the open transactions
// changed them. A nil row means the row did not exist.
type Images map[int64]core.Row

// stage writes row under rowID, or deletes the record when row is nil.
func stage(table string, txn *ps.TransactionBuilder, rowID int64, row core.Row) error {
	if row == nil {
		return txn.DeleteRecord(table, rowID)
	}
	data, err := core.EncodeRow(row)
	if err != nil {
		return err
	}
	return txn.PutRecord(table, rowID, data)
}

func idsOf(set *treeset.Set) []int64 {
	ids := make([]int64, 0, set.Size())
	it := set.Iterator()
	for it.Next() {
		ids = append(ids, it.Value().(int64))
	}
	return ids
}

// MemoryStore keeps every row in process memory.
type MemoryStore struct {
	rows  map[int64]core.Row
	ids   *treeset.Set
	dirty map[int64]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:  make(map[int64]core.Row),
		ids:   treeset.NewWith(utils.Int64Comparator),
		dirty: make(map[int64]struct{}),
	}
}

func (s *MemoryStore) Get(rowID int64) (core.Row, bool, error) {
	row, ok := s.rows[rowID]
	return row, ok, nil
}

func (s *MemoryStore) Put(rowID int64, row core.Row) error {
	if _, ok := s.rows[rowID]; !ok {
		s.ids.Add(rowID)
	}
	s.rows[rowID] = row
	s.dirty[rowID] = struct{}{}
	return nil
}

// load installs a persisted row without marking it dirty.
func (s *MemoryStore) load(rowID int64, row core.Row) {
	s.rows[rowID] = row
	s.ids.Add(rowID)
}

func (s *MemoryStore) Delete(rowID int64) error {
	if _, ok := s.rows[rowID]; !ok {
		return nil
	}
	delete(s.rows, rowID)
	s.ids.Remove(rowID)
	s.dirty[rowID] = struct{}{}
	return nil
}

func (s *MemoryStore) Contains(rowID int64) bool {
	_, ok := s.rows[rowID]
	return ok
}

func (s *MemoryStore) Len() int {
	return len(s.rows)
}

func (s *MemoryStore) IDs() []int64 {
	return idsOf(s.ids)
}

func (s *MemoryStore) Flush(table string, txn *ps.TransactionBuilder, held Images) (int, error) {
	staged := 0
	for rowID := range s.dirty {
		row, ok := held[rowID]
		if !ok {
			row = s.rows[rowID]
		}
		if err := stage(table, txn, rowID, row); err != nil {
			return staged, err
		}
		staged++
	}
	return staged, nil
}

func (s *MemoryStore) Clean(held Images) {
	for rowID := range s.dirty {
		if _, ok := held[rowID]; !ok {
			delete(s.dirty, rowID)
		}
	}
}

func (s *MemoryStore) Clear() {
	clear(s.rows)
	clear(s.dirty)
	s.ids.Clear()
}
