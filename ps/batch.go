package ps

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/nickyhof/EmbedDB/core"
)

// Operation represents a single path-level change in a transaction
type Operation struct {
	Type OperationType
	Path string
	Data []byte
}

type OperationType int

const (
	WriteOp OperationType = iota
	DeleteOp
)

// TransactionBuilder allows batching multiple write operations into a single commit
type TransactionBuilder struct {
	persistence *Persistence
	operations  []Operation
	started     bool
}

// BeginTransaction creates a new transaction builder for batching operations
func (persistence *Persistence) BeginTransaction() (*TransactionBuilder, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return nil, err
	}

	return &TransactionBuilder{
		persistence: persistence,
		operations:  make([]Operation, 0),
		started:     true,
	}, nil
}

// AddWrite stores data at path when the batch commits.
func (tb *TransactionBuilder) AddWrite(path string, data []byte) error {
	if !tb.started {
		return fmt.Errorf("transaction not started")
	}

	tb.operations = append(tb.operations, Operation{
		Type: WriteOp,
		Path: path,
		Data: data,
	})

	return nil
}

// AddDelete removes path, a file or a whole directory, when the batch
// commits. Deletes are applied before writes at the same tree level.
func (tb *TransactionBuilder) AddDelete(path string) error {
	if !tb.started {
		return fmt.Errorf("transaction not started")
	}

	tb.operations = append(tb.operations, Operation{
		Type: DeleteOp,
		Path: path,
	})

	return nil
}

// Commit applies all batched operations in a single git commit using plumbing API
func (tb *TransactionBuilder) Commit(identity core.Identity, message string) (Transaction, error) {
	if !tb.started {
		return Transaction{}, fmt.Errorf("transaction not started")
	}

	if len(tb.operations) == 0 {
		return Transaction{}, fmt.Errorf("no operations to commit")
	}

	p := tb.persistence
	p.mu.Lock()
	defer p.mu.Unlock()

	currentTree, err := p.getCurrentTree()
	if err != nil {
		return Transaction{}, err
	}

	changes := make([]TreeChange, 0, len(tb.operations))
	for _, op := range tb.operations {
		switch op.Type {
		case WriteOp:
			blobHash, err := p.createBlob(op.Data)
			if err != nil {
				return Transaction{}, fmt.Errorf("failed to create blob for %s: %w", op.Path, err)
			}
			changes = append(changes, TreeChange{
				Path:     op.Path,
				BlobHash: blobHash,
			})
		case DeleteOp:
			changes = append(changes, TreeChange{
				Path:     op.Path,
				IsDelete: true,
			})
		}
	}

	newTree, err := p.batchUpdateTree(currentTree, changes)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}

	tb.started = false
	tb.operations = nil

	// nothing changed, keep HEAD
	if newTree == currentTree && currentTree != plumbing.ZeroHash {
		return p.headTransaction(), nil
	}

	if message == "" {
		message = fmt.Sprintf("Batch transaction: %d operation(s)", len(changes))
	}
	txn, err := p.createCommitDirect(newTree, identity, message)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to commit: %w", err)
	}
	txn.Author = fmt.Sprintf("%s <%s>", identity.Name, identity.Email)

	if err := p.syncWorktree(); err != nil {
		return Transaction{}, fmt.Errorf("failed to sync worktree: %w", err)
	}

	return txn, nil
}

// Rollback discards all batched operations without committing
func (tb *TransactionBuilder) Rollback() {
	tb.started = false
	tb.operations = nil
}

// OperationCount returns the number of pending operations
func (tb *TransactionBuilder) OperationCount() int {
	return len(tb.operations)
}
