package op

import (
	"errors"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/golang/groupcache/lru"
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/ps"
)

const DefaultCacheSize = 1024

var errRowMissing = errors.New("row missing from storage")

// CachedStore keeps only row ids in memory. Checkpointed rows are read back
// from persistence through a bounded LRU; rows changed since the last
// checkpoint are held until the next flush.
type CachedStore struct {
	table       string
	persistence *ps.Persistence
	types       []core.ColumnType
	ids         *treeset.Set
	cache       *lru.Cache
	pending     map[int64]core.Row
	deleted     map[int64]struct{}
}

// NewCachedStore creates an empty store for table. Load reads the row ids
// of an existing table.
func NewCachedStore(table string, types []core.ColumnType, persistence *ps.Persistence, cacheSize int) *CachedStore {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	s := &CachedStore{
		table:       table,
		persistence: persistence,
		types:       types,
		ids:         treeset.NewWith(utils.Int64Comparator),
		cache:       lru.New(cacheSize),
		pending:     make(map[int64]core.Row),
		deleted:     make(map[int64]struct{}),
	}
	return s
}

// Load registers the row ids of the last checkpoint.
func (s *CachedStore) Load() error {
	ids, err := s.persistence.ListRecordIDs(s.table)
	if err != nil {
		return core.WrapStorage(err, "failed to list rows of %s", s.table)
	}
	for _, id := range ids {
		s.ids.Add(id)
	}
	return nil
}

func (s *CachedStore) Get(rowID int64) (core.Row, bool, error) {
	if !s.ids.Contains(rowID) {
		return nil, false, nil
	}
	if row, ok := s.pending[rowID]; ok {
		return row, true, nil
	}
	if cached, ok := s.cache.Get(rowID); ok {
		return cached.(core.Row), true, nil
	}

	data, found, err := s.persistence.GetRecord(s.table, rowID)
	if err != nil {
		return nil, false, core.WrapStorage(err, "failed to read row %d of %s", rowID, s.table)
	}
	if !found {
		return nil, false, core.WrapStorage(errRowMissing, "failed to read row %d of %s", rowID, s.table)
	}
	row, err := core.DecodeRow(data, s.types)
	if err != nil {
		return nil, false, core.WrapStorage(err, "failed to decode row %d of %s", rowID, s.table)
	}
	s.cache.Add(rowID, row)
	return row, true, nil
}

func (s *CachedStore) Put(rowID int64, row core.Row) error {
	s.ids.Add(rowID)
	s.pending[rowID] = row
	delete(s.deleted, rowID)
	s.cache.Remove(rowID)
	return nil
}

func (s *CachedStore) Delete(rowID int64) error {
	if !s.ids.Contains(rowID) {
		return nil
	}
	s.ids.Remove(rowID)
	delete(s.pending, rowID)
	s.deleted[rowID] = struct{}{}
	s.cache.Remove(rowID)
	return nil
}

func (s *CachedStore) Contains(rowID int64) bool {
	return s.ids.Contains(rowID)
}

func (s *CachedStore) Len() int {
	return s.ids.Size()
}

func (s *CachedStore) IDs() []int64 {
	return idsOf(s.ids)
}

// Flush stages pending rows and deletions.
func (s *CachedStore) Flush(table string, txn *ps.TransactionBuilder, held Images) (int, error) {
	staged := 0
	for rowID := range s.deleted {
		row, ok := held[rowID]
		if !ok {
			row = nil
		}
		if err := stage(table, txn, rowID, row); err != nil {
			return staged, err
		}
		staged++
	}
	for rowID, row := range s.pending {
		if image, ok := held[rowID]; ok {
			row = image
		}
		if err := stage(table, txn, rowID, row); err != nil {
			return staged, err
		}
		staged++
	}
	return staged, nil
}

// Clean moves committed rows into the LRU so the next read does not go
// back to storage.
func (s *CachedStore) Clean(held Images) {
	for rowID, row := range s.pending {
		if _, ok := held[rowID]; ok {
			continue
		}
		s.cache.Add(rowID, row)
		delete(s.pending, rowID)
	}
	for rowID := range s.deleted {
		if _, ok := held[rowID]; !ok {
			delete(s.deleted, rowID)
		}
	}
}

func (s *CachedStore) Clear() {
	s.ids.Clear()
	s.cache.Clear()
	clear(s.pending)
	clear(s.deleted)
}

// CachedRows reports how many decoded rows the LRU currently holds.
func (s *CachedStore) CachedRows() int {
	return s.cache.Len()
}
