package db

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/ps"
)

const remoteName = "origin"

// Database owns the catalog, the alias bindings and the open channels of
// one database. Statements of all channels run one at a time under mu.
type Database struct {
	name        string
	config      Config
	logger      *slog.Logger
	defaultMode core.StorageMode

	mu          sync.Mutex
	persistence *ps.Persistence
	catalog     *op.Catalog
	functions   *FunctionRegistry
	bindings    map[string]*AliasBinding
	channels    map[uuid.UUID]*Channel
	auth        *authenticator
	closed      bool
}

// NewDatabase opens the database described by cfg without registering it.
// Most callers want OpenDatabase.
func NewDatabase(cfg Config) (*Database, error) {
	cfg = cfg.withDefaults()

	mode, ok := core.ParseStorageMode(cfg.DefaultTableType)
	if !ok {
		return nil, core.NewConnectionError(core.CodeInvalidProperties, "invalid default table type %q", cfg.DefaultTableType)
	}

	var persistence *ps.Persistence
	var err error
	if cfg.Path == "" {
		persistence, err = ps.NewMemoryPersistence()
	} else {
		var remote *string
		if cfg.Remote != "" {
			remote = &cfg.Remote
		}
		persistence, err = ps.NewFilePersistence(cfg.Path, remote)
	}
	if err != nil {
		return nil, core.WrapStorage(err, "failed to open storage of %s", cfg.Name)
	}

	catalog := op.NewCatalog(persistence, cfg.CacheSize)
	if err := catalog.Load(); err != nil {
		return nil, err
	}

	db := &Database{
		name:        cfg.Name,
		config:      cfg,
		logger:      cfg.Logger.With("database", cfg.Name),
		defaultMode: mode,
		persistence: persistence,
		catalog:     catalog,
		functions:   cfg.Functions,
		bindings:    make(map[string]*AliasBinding),
		channels:    make(map[uuid.UUID]*Channel),
		auth:        newAuthenticator(cfg),
	}
	db.logger.Info("database opened", "path", cfg.Path, "tables", len(catalog.Tables()))
	return db, nil
}

func (db *Database) Name() string {
	return db.name
}

// Functions is the registry alias targets resolve against.
func (db *Database) Functions() *FunctionRegistry {
	return db.functions
}

// Connect authenticates user and opens a new channel.
func (db *Database) Connect(user, password string) (*Channel, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, core.NewConnectionError(core.CodeDatabaseClosed, "database %s is closed", db.name)
	}

	name, err := db.auth.authenticate(user, password)
	if err != nil {
		db.logger.Info("authentication failed", "user", user)
		return nil, err
	}
	ch := newChannel(db, name)
	db.channels[ch.id] = ch
	db.logger.Debug("channel opened", "channel", ch.id, "user", name)
	return ch, nil
}

// binding returns the binding of an alias, creating it for aliases loaded
// from storage.
func (db *Database) binding(name string) *AliasBinding {
	if b, ok := db.bindings[name]; ok {
		return b
	}
	alias, ok := db.catalog.Alias(name)
	if !ok {
		return nil
	}
	b := &AliasBinding{Alias: alias}
	db.bindings[name] = b
	return b
}

// Checkpoint writes every table and alias to storage as one commit.
func (db *Database) Checkpoint() (ps.Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ps.Transaction{}, core.NewConnectionError(core.CodeDatabaseClosed, "database %s is closed", db.name)
	}
	return db.checkpointLocked("CHECKPOINT")
}

func (db *Database) checkpointLocked(message string) (ps.Transaction, error) {
	txn, err := db.catalog.CheckpointCommitted(db.config.Identity, message, db.uncommitted())
	if err != nil {
		return ps.Transaction{}, err
	}
	db.logger.Info("checkpoint", "transaction", txn.Id)

	if db.config.Remote != "" && !db.persistence.IsMemory() {
		if err := db.push(); err != nil {
			return txn, err
		}
	}
	return txn, nil
}

// uncommitted collects, per table, the committed image of every row an
// open transaction has changed.
func (db *Database) uncommitted() map[*op.Table]op.Images {
	var held map[*op.Table]op.Images
	for _, ch := range db.channels {
		held = ch.undo.committedImages(held)
	}
	return held
}

func (db *Database) push() error {
	if err := db.persistence.EnsureRemote(remoteName, db.config.Remote); err != nil {
		return core.WrapStorage(err, "failed to configure remote %s", db.config.Remote)
	}
	branch, err := db.persistence.CurrentBranch()
	if err != nil {
		return core.WrapStorage(err, "failed to read current branch")
	}
	if err := db.persistence.Push(remoteName, branch, db.config.RemoteAuth); err != nil {
		return core.WrapStorage(err, "failed to push to %s", db.config.Remote)
	}
	db.logger.Info("pushed", "remote", db.config.Remote, "branch", branch)
	return nil
}

// autoCheckpoint persists after a committed change when AutoCheckpoint is
// set.
func (db *Database) autoCheckpoint() error {
	if !db.config.AutoCheckpoint {
		return nil
	}
	_, err := db.checkpointLocked("auto checkpoint")
	return err
}

// Close rolls back the open transactions of every channel, checkpoints a
// file-backed database and removes it from the registry.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}

	var firstErr error
	for _, ch := range db.channels {
		if err := ch.closeLocked(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if !db.persistence.IsMemory() {
		if _, err := db.checkpointLocked("close"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	db.closed = true
	unregister(db)
	db.logger.Info("database closed")
	return firstErr
}

func (db *Database) String() string {
	return fmt.Sprintf("Database(%s)", db.name)
}
