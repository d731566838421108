package ps

import (
	"fmt"
	"iter"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nickyhof/EmbedDB/core"
)

const (
	catalogDir = "catalog"
	dataDir    = "data"
	aliasDir   = "aliases"
)

// escapeName makes a table or alias name safe as a single path segment.
// Quoted identifiers may contain '/', '.' or spaces.
func escapeName(name string) string {
	return strings.ReplaceAll(url.PathEscape(name), ".", "%2E")
}

func TablePath(table string) string {
	return fmt.Sprintf("%s/%s.table", catalogDir, escapeName(table))
}

func TableDataPath(table string) string {
	return fmt.Sprintf("%s/%s", dataDir, escapeName(table))
}

func RecordPath(table string, rowID int64) string {
	return fmt.Sprintf("%s/%s/%d", dataDir, escapeName(table), rowID)
}

func AliasPath(alias string) string {
	return fmt.Sprintf("%s/%s.alias", aliasDir, escapeName(alias))
}

// CatalogPaths are the metadata directories rewritten as a whole on every
// checkpoint.
func CatalogPaths() []string {
	return []string{catalogDir, aliasDir}
}

// ListTables returns every table definition of the last checkpoint.
func (persistence *Persistence) ListTables() ([]core.Table, error) {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	entries, err := persistence.ListEntriesDirect(catalogDir)
	if err != nil {
		return nil, err
	}

	var tables []core.Table
	for _, entry := range entries {
		if entry.IsDir || !strings.HasSuffix(entry.Name, ".table") {
			continue
		}
		data, found, err := persistence.ReadFileDirect(catalogDir + "/" + entry.Name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		var table core.Table
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to unmarshal table %s: %w", entry.Name, err)
		}
		tables = append(tables, table)
	}

	return tables, nil
}

// ListAliases returns every alias definition of the last checkpoint.
func (persistence *Persistence) ListAliases() ([]core.Alias, error) {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	entries, err := persistence.ListEntriesDirect(aliasDir)
	if err != nil {
		return nil, err
	}

	var aliases []core.Alias
	for _, entry := range entries {
		if entry.IsDir || !strings.HasSuffix(entry.Name, ".alias") {
			continue
		}
		data, found, err := persistence.ReadFileDirect(aliasDir + "/" + entry.Name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		var alias core.Alias
		if err := json.Unmarshal(data, &alias); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alias %s: %w", entry.Name, err)
		}
		aliases = append(aliases, alias)
	}

	return aliases, nil
}

// GetRecord reads the blob of one row as of the last checkpoint.
func (persistence *Persistence) GetRecord(table string, rowID int64) (data []byte, exists bool, err error) {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	return persistence.ReadFileDirect(RecordPath(table, rowID))
}

// ListRecordIDs returns the row ids stored for table in ascending order.
func (persistence *Persistence) ListRecordIDs(table string) ([]int64, error) {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	entries, err := persistence.ListEntriesDirect(TableDataPath(table))
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		id, err := strconv.ParseInt(entry.Name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids, nil
}

// Record is the stored blob of one row.
type Record struct {
	ID   int64
	Data []byte
}

// Scan streams every stored row of table in row id order. A row that is
// listed but cannot be read ends the scan with an error.
func (persistence *Persistence) Scan(table string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		ids, err := persistence.ListRecordIDs(table)
		if err != nil {
			yield(Record{}, fmt.Errorf("failed to list rows of %s: %w", table, err))
			return
		}
		for _, id := range ids {
			data, found, err := persistence.GetRecord(table, id)
			if err == nil && !found {
				err = fmt.Errorf("row %d of %s is listed but missing", id, table)
			}
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(Record{ID: id, Data: data}, nil) {
				return
			}
		}
	}
}

// PutTable stages a table definition.
func (tb *TransactionBuilder) PutTable(table core.Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to marshal table: %w", err)
	}
	return tb.AddWrite(TablePath(table.Name), data)
}

// DeleteTable stages removal of a table definition and all of its rows.
func (tb *TransactionBuilder) DeleteTable(table string) error {
	if err := tb.AddDelete(TablePath(table)); err != nil {
		return err
	}
	return tb.AddDelete(TableDataPath(table))
}

func (tb *TransactionBuilder) PutAlias(alias core.Alias) error {
	data, err := json.Marshal(alias)
	if err != nil {
		return fmt.Errorf("failed to marshal alias: %w", err)
	}
	return tb.AddWrite(AliasPath(alias.Name), data)
}

func (tb *TransactionBuilder) PutRecord(table string, rowID int64, data []byte) error {
	return tb.AddWrite(RecordPath(table, rowID), data)
}

func (tb *TransactionBuilder) DeleteRecord(table string, rowID int64) error {
	return tb.AddDelete(RecordPath(table, rowID))
}

