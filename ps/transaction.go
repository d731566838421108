package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Transaction identifies one commit, i.e. one checkpoint.
type Transaction struct {
	Id     string
	When   time.Time
	Author string // "Name <email>" format
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

// LatestTransaction returns the last checkpoint, or the zero Transaction
// for a repository without commits.
func (persistence *Persistence) LatestTransaction() Transaction {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	return persistence.headTransaction()
}

func (persistence *Persistence) headTransaction() Transaction {
	headRef, err := persistence.repo.Head()
	if err != nil || headRef == nil {
		// No commits yet
		return Transaction{}
	}

	commit, err := persistence.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}

	author := ""
	if commit.Author.Name != "" || commit.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email)
	}

	return Transaction{
		Id:     headRef.Hash().String(),
		When:   commit.Committer.When,
		Author: author,
	}
}

// TransactionsSince lists checkpoints committed at or after asof, newest first.
func (persistence *Persistence) TransactionsSince(asof time.Time) []Transaction {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	var transactions []Transaction

	cIter, err := persistence.repo.Log(&git.LogOptions{
		Since: &asof,
	})
	if err != nil {
		return nil
	}

	cIter.ForEach(func(c *object.Commit) error {
		transactions = append(transactions, Transaction{
			Id:   c.Hash.String(),
			When: c.Committer.When,
		})
		return nil
	})

	return transactions
}
