package db

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/sql"
)

// Channel is one session against a database: its autocommit mode, the undo
// log of the open transaction, its @variables and its open cursor. A
// Channel must not be used from more than one goroutine at a time.
type Channel struct {
	id   uuid.UUID
	user string
	db   *Database

	autoCommit    bool
	inTransaction bool
	undo          undoLog

	variables    map[string]*variable
	lastIdentity core.Value
	cursor       *Result
	closed       bool
}

func newChannel(db *Database, user string) *Channel {
	return &Channel{
		id:           uuid.New(),
		user:         user,
		db:           db,
		autoCommit:   true,
		variables:    make(map[string]*variable),
		lastIdentity: core.Null(core.BigIntType),
	}
}

func (ch *Channel) ID() string {
	return ch.id.String()
}

func (ch *Channel) User() string {
	return ch.user
}

func (ch *Channel) Database() *Database {
	return ch.db
}

// AutoCommit reports whether statements outside BEGIN commit on their own.
func (ch *Channel) AutoCommit() bool {
	ch.db.mu.Lock()
	defer ch.db.mu.Unlock()
	return ch.autoCommit
}

// SetAutoCommit switches autocommit mode. Turning it on commits the open
// transaction.
func (ch *Channel) SetAutoCommit(enabled bool) error {
	ch.db.mu.Lock()
	defer ch.db.mu.Unlock()
	if err := ch.checkOpen(); err != nil {
		return err
	}
	return ch.setAutoCommit(enabled)
}

func (ch *Channel) setAutoCommit(enabled bool) error {
	if enabled && ch.inTransaction {
		if err := ch.commit(); err != nil {
			return err
		}
	}
	ch.autoCommit = enabled
	return nil
}

// InTransaction reports whether an undo log is open.
func (ch *Channel) InTransaction() bool {
	ch.db.mu.Lock()
	defer ch.db.mu.Unlock()
	return ch.inTransaction
}

// Variable returns the value of a declared @variable.
func (ch *Channel) Variable(name string) (core.Value, bool) {
	ch.db.mu.Lock()
	defer ch.db.mu.Unlock()
	v, ok := ch.variables[normalizeName(strings.TrimPrefix(name, "@"))]
	if !ok {
		return core.Value{}, false
	}
	return v.value, true
}

func (ch *Channel) checkOpen() error {
	if ch.closed {
		return core.NewTransactionError(core.CodeChannelClosed, "channel is closed")
	}
	if ch.db.closed {
		return core.NewConnectionError(core.CodeDatabaseClosed, "database %s is closed", ch.db.name)
	}
	return nil
}

// Execute runs a batch of ;-separated statements and returns the result of
// the last one. Parameters named @x bind channel variables; unnamed ones
// fill ? markers in order and named ones fill :name markers. Output
// parameters are written back before Execute returns. The previous result
// of the channel is closed.
func (ch *Channel) Execute(ctx context.Context, text string, params ...*Parameter) (*Result, error) {
	start := time.Now()
	ch.db.mu.Lock()
	defer ch.db.mu.Unlock()

	if err := ch.checkOpen(); err != nil {
		return nil, err
	}
	ch.closeCursor()

	statements, err := sql.ParseAll(text)
	if err != nil {
		return nil, err
	}

	bound, err := ch.bindParameters(params)
	if err != nil {
		return nil, err
	}

	ec := &evalContext{ch: ch}
	result := &Result{}
	var returnValue *core.Value
	for _, statement := range statements {
		if err := ctx.Err(); err != nil {
			e := core.NewTransactionError(core.CodeCancelled, "execution cancelled")
			e.Err = err
			return nil, e
		}
		ec.now = time.Now()

		if call, ok := statement.(sql.CallStatement); ok {
			r, v, err := ch.executeCallStatement(ec, call, bound)
			if err != nil {
				return nil, err
			}
			result, returnValue = r, &v
			continue
		}
		if result, err = ch.executeStatement(ctx, ec, statement, bound); err != nil {
			return nil, err
		}
	}

	if err := ch.writeParameters(params, returnValue); err != nil {
		return nil, err
	}
	for _, p := range params {
		if p.Direction != Input {
			result.Parameters = append(result.Parameters, p)
		}
	}
	if result.IsQuery() {
		ch.cursor = result
	}
	result.Duration = time.Since(start)
	return result, nil
}

// bindParameters assigns input @variables and collects the values of ?
// and :name markers.
func (ch *Channel) bindParameters(params []*Parameter) (*paramSet, error) {
	set := &paramSet{named: make(map[string]core.Value)}
	for _, p := range params {
		switch {
		case p.isVariable() || (p.writes() && p.Name != ""):
			name := p.variableName()
			if p.reads() {
				if err := ch.setVariable(name, p.Value); err != nil {
					return nil, err
				}
			} else if _, ok := ch.variables[name]; !ok {
				ch.variables[name] = &variable{spec: sql.TypeSpec{Type: p.Value.Type()}, value: core.Null(p.Value.Type())}
			}
		case p.Direction == ReturnValue:
		case p.Name == "":
			set.positional = append(set.positional, p.Value)
		default:
			set.named[normalizeName(strings.TrimPrefix(p.Name, ":"))] = p.Value
		}
	}
	return set, nil
}

func (ch *Channel) writeParameters(params []*Parameter, returnValue *core.Value) error {
	for _, p := range params {
		switch {
		case p.Direction == ReturnValue:
			if returnValue != nil {
				p.Value = *returnValue
			}
		case p.writes():
			if v, ok := ch.variables[p.variableName()]; ok {
				p.Value = v.value
			}
		}
	}
	return nil
}

func (ch *Channel) executeStatement(ctx context.Context, ec *evalContext, statement sql.Statement, params *paramSet) (*Result, error) {
	switch s := statement.(type) {
	case *sql.SelectStatement:
		return ch.executeSelectStatement(ec, s, params)

	case sql.InsertStatement:
		return ch.runMutation(func() (int64, error) { return ch.executeInsertStatement(ec, s, params) })
	case sql.UpdateStatement:
		return ch.runMutation(func() (int64, error) { return ch.executeUpdateStatement(ec, s, params) })
	case sql.DeleteStatement:
		return ch.runMutation(func() (int64, error) { return ch.executeDeleteStatement(ec, s, params) })

	case sql.CreateTableStatement:
		return ch.runDDL(func() error { return ch.executeCreateTableStatement(ec, s) })
	case sql.DropTableStatement:
		return ch.runDDL(func() error { return ch.executeDropTableStatement(s) })
	case sql.CreateIndexStatement:
		return ch.runDDL(func() error { return ch.executeCreateIndexStatement(s) })
	case sql.DropIndexStatement:
		return ch.runDDL(func() error { return ch.executeDropIndexStatement(s) })
	case sql.CreateAliasStatement:
		return ch.runDDL(func() error { return ch.executeCreateAliasStatement(s) })
	case sql.DropAliasStatement:
		return ch.runDDL(func() error { return ch.executeDropAliasStatement(s) })
	case sql.RestoreStatement:
		return ch.runDDL(func() error { return ch.executeRestoreStatement(ctx, s.URL) })

	case sql.BackupStatement:
		return &Result{}, ch.executeBackupStatement(ctx, s.URL)

	case sql.DeclareStatement:
		ch.executeDeclareStatement(s)
		return &Result{}, nil
	case sql.SetVariableStatement:
		return &Result{}, ch.executeSetVariableStatement(ec, s, params)
	case sql.SetAutoCommitStatement:
		return &Result{}, ch.setAutoCommit(s.Enabled)

	case sql.BeginStatement:
		if ch.inTransaction {
			return nil, core.NewTransactionError(core.CodeTransactionActive, "a transaction is already active")
		}
		ch.inTransaction = true
		return &Result{}, nil
	case sql.CommitStatement:
		return &Result{}, ch.commit()
	case sql.RollbackStatement:
		return &Result{}, ch.rollback()
	case sql.CheckpointStatement:
		txn, err := ch.db.checkpointLocked("CHECKPOINT")
		if err != nil {
			return nil, err
		}
		return &Result{Transaction: txn}, nil

	case sql.ShowDatabasesStatement:
		return ch.executeShowDatabasesStatement(), nil
	case sql.ShowTablesStatement:
		return ch.executeShowTablesStatement(), nil
	case sql.ShowAliasStatement:
		return ch.executeShowAliasStatement(), nil
	case sql.ShowParametersStatement:
		return ch.executeShowParametersStatement(s)
	case sql.ShowColumnsStatement:
		return ch.executeShowColumnsStatement(s)
	}
	return nil, core.NewSyntaxError(core.CodeUnknownStatement, "unsupported statement type %d", statement.Type())
}

// runMutation executes one row-changing statement atomically: on error
// every row change it made is undone. Outside a transaction a successful
// statement commits at once, unless autocommit is off, in which case it
// opens the transaction.
func (ch *Channel) runMutation(run func() (int64, error)) (*Result, error) {
	mark := ch.undo.savepoint()
	count, err := run()
	if err != nil {
		if undoErr := ch.undo.rollbackTo(mark); undoErr != nil {
			ch.db.logger.Error("statement rollback failed", "channel", ch.id, "error", undoErr)
		}
		return nil, err
	}

	if !ch.inTransaction {
		if !ch.autoCommit {
			ch.inTransaction = true
		} else {
			ch.undo.reset()
			if err := ch.db.autoCheckpoint(); err != nil {
				return nil, err
			}
		}
	}
	return &Result{UpdateCount: count}, nil
}

// runDDL commits the open transaction, then applies a catalog change.
// Catalog changes are not undo-logged.
func (ch *Channel) runDDL(run func() error) (*Result, error) {
	if ch.inTransaction {
		if err := ch.commit(); err != nil {
			return nil, err
		}
	}
	if err := run(); err != nil {
		return nil, err
	}
	if err := ch.db.autoCheckpoint(); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (ch *Channel) commit() error {
	if !ch.inTransaction {
		return nil
	}
	ch.undo.reset()
	ch.inTransaction = false
	return ch.db.autoCheckpoint()
}

func (ch *Channel) rollback() error {
	if !ch.inTransaction {
		return nil
	}
	ch.inTransaction = false
	if err := ch.undo.rollbackTo(0); err != nil {
		return core.WrapStorage(err, "rollback failed")
	}
	return nil
}

// Commit makes the changes of the open transaction permanent.
func (ch *Channel) Commit() error {
	ch.db.mu.Lock()
	defer ch.db.mu.Unlock()
	if err := ch.checkOpen(); err != nil {
		return err
	}
	return ch.commit()
}

// Rollback undoes the changes of the open transaction in reverse order.
func (ch *Channel) Rollback() error {
	ch.db.mu.Lock()
	defer ch.db.mu.Unlock()
	if err := ch.checkOpen(); err != nil {
		return err
	}
	return ch.rollback()
}

func (ch *Channel) closeCursor() {
	if ch.cursor == nil {
		return
	}
	if !ch.cursor.closed {
		ch.db.logger.Debug("cursor closed by new statement", "channel", ch.id)
	}
	ch.cursor.Close()
	ch.cursor = nil
}

// Close rolls back an open transaction and releases the channel. Closing
// twice is harmless.
func (ch *Channel) Close() error {
	ch.db.mu.Lock()
	defer ch.db.mu.Unlock()
	if ch.closed {
		return nil
	}
	return ch.closeLocked()
}

func (ch *Channel) closeLocked() error {
	ch.closeCursor()
	var err error
	if ch.inTransaction {
		ch.db.logger.Debug("rolling back open transaction", "channel", ch.id)
		err = ch.rollback()
	}
	ch.closed = true
	delete(ch.db.channels, ch.id)
	ch.db.logger.Debug("channel closed", "channel", ch.id, "user", ch.user)
	return err
}
