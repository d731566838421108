package db

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
)

const snapshotVersion = 1

// snapshot is the content of a backup: every table definition with its
// rows, and every alias. It is stored as zstd-compressed JSON.
type snapshot struct {
	Version int             `json:"version"`
	Tables  []tableSnapshot `json:"tables"`
	Aliases []core.Alias    `json:"aliases"`
}

type tableSnapshot struct {
	Definition core.Table    `json:"definition"`
	Rows       []snapshotRow `json:"rows"`
}

type snapshotRow struct {
	ID     int64           `json:"id"`
	Values json.RawMessage `json:"values"`
}

func takeSnapshot(catalog *op.Catalog) (*snapshot, error) {
	snap := &snapshot{Version: snapshotVersion, Aliases: catalog.Aliases()}
	for _, table := range catalog.Tables() {
		ts := tableSnapshot{Definition: table.Def}
		for entry, err := range table.Scan() {
			if err != nil {
				return nil, err
			}
			data, err := core.EncodeRow(entry.Row)
			if err != nil {
				return nil, core.WrapStorage(err, "failed to encode row %d of %s", entry.ID, table.Name())
			}
			ts.Rows = append(ts.Rows, snapshotRow{ID: entry.ID, Values: data})
		}
		snap.Tables = append(snap.Tables, ts)
	}
	return snap, nil
}

func writeSnapshot(w io.Writer, snap *snapshot) error {
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(encoder).Encode(snap); err != nil {
		encoder.Close()
		return err
	}
	return encoder.Close()
}

func readSnapshot(r io.Reader) (*snapshot, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var snap snapshot
	if err := json.NewDecoder(decoder).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported backup version %d", snap.Version)
	}
	return &snap, nil
}

func (ch *Channel) executeBackupStatement(ctx context.Context, url string) error {
	snap, err := takeSnapshot(ch.db.catalog)
	if err != nil {
		return err
	}
	w, err := openBackupWriter(ctx, url, ch.db.config.S3)
	if err != nil {
		return core.WrapStorage(err, "cannot open backup target %s", url)
	}
	if err := writeSnapshot(w, snap); err != nil {
		w.Close()
		return core.WrapStorage(err, "failed to write backup to %s", url)
	}
	if err := w.Close(); err != nil {
		return core.WrapStorage(err, "failed to write backup to %s", url)
	}
	ch.db.logger.Info("backup written", "database", ch.db.name, "url", url, "tables", len(snap.Tables))
	return nil
}

// executeRestoreStatement replaces every table and alias with the content
// of the backup at url. The backup is decoded completely before the
// catalog changes.
func (ch *Channel) executeRestoreStatement(ctx context.Context, url string) error {
	r, err := openBackupReader(ctx, url, ch.db.config.S3)
	if err != nil {
		return core.WrapStorage(err, "cannot open backup %s", url)
	}
	defer r.Close()
	snap, err := readSnapshot(r)
	if err != nil {
		return core.WrapStorage(err, "failed to read backup %s", url)
	}

	decoded := make([][]core.Row, len(snap.Tables))
	for i, ts := range snap.Tables {
		types := ts.Definition.ColumnTypes()
		for _, row := range ts.Rows {
			values, err := core.DecodeRow(row.Values, types)
			if err != nil {
				return core.WrapStorage(err, "failed to decode row %d of %s", row.ID, ts.Definition.Name)
			}
			decoded[i] = append(decoded[i], values)
		}
	}

	catalog := ch.db.catalog
	for _, table := range catalog.Tables() {
		if err := catalog.DropTable(table.Name()); err != nil {
			return err
		}
	}
	for _, alias := range catalog.Aliases() {
		if err := catalog.DropAlias(alias.Name); err != nil {
			return err
		}
	}
	clear(ch.db.bindings)

	for i, ts := range snap.Tables {
		table, err := catalog.CreateTable(ts.Definition)
		if err != nil {
			return err
		}
		for j, row := range ts.Rows {
			if err := table.InsertAt(row.ID, decoded[i][j]); err != nil {
				return err
			}
		}
	}
	for _, alias := range snap.Aliases {
		if err := catalog.CreateAlias(alias); err != nil {
			return err
		}
	}
	ch.db.logger.Info("database restored", "database", ch.db.name, "url", url, "tables", len(snap.Tables))
	return nil
}
