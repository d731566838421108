package ps

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

var (
	ErrNotInitialized = errors.New("persistence layer not initialized")
	ErrRepoNotFound   = errors.New("repository not found")
)

// Persistence is the backing store of one database: a git repository whose
// commits are checkpoints.
type Persistence struct {
	repo         *git.Repository
	mu           sync.RWMutex
	isMemoryMode bool
	head         atomic.Pointer[object.Tree] // memoized HEAD tree, reset on commit
}

// IsInitialized returns true if the persistence layer has a valid repository
func (p *Persistence) IsInitialized() bool {
	return p != nil && p.repo != nil
}

// ensureInitialized checks if the persistence layer is initialized and returns an error if not
func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// IsMemory reports whether the repository lives only in process memory.
func (p *Persistence) IsMemory() bool {
	return p.isMemoryMode
}

func NewMemoryPersistence() (*Persistence, error) {
	wt := memfs.New()
	storer := memory.NewStorage()

	repo, err := git.Init(storer, git.WithWorkTree(wt))
	if err != nil {
		return nil, err
	}

	return &Persistence{
		repo:         repo,
		isMemoryMode: true,
	}, nil
}

// NewFilePersistence opens the repository under baseDir, creating it when
// missing. A non-nil gitUrl clones a fresh directory from that remote.
func NewFilePersistence(baseDir string, gitUrl *string) (*Persistence, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	wt := osfs.New(baseDir)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository

	_, statErr := os.Stat(fs.Root())
	switch {
	case statErr == nil:
		repo, err = git.Open(storer, wt)
	case gitUrl != nil:
		repo, err = git.Clone(storer, wt, &git.CloneOptions{
			URL: *gitUrl,
		})
	default:
		repo, err = git.Init(storer, git.WithWorkTree(wt))
	}
	if err != nil {
		return nil, err
	}

	return &Persistence{
		repo: repo,
	}, nil
}
