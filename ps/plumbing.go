package ps

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/EmbedDB/core"
)

// createBlob creates a blob object directly in the object store without filesystem I/O
func (p *Persistence) createBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return hash, nil
}

// getCurrentTree returns the tree hash from the current HEAD commit.
// Returns ZeroHash if repository has no commits yet.
func (p *Persistence) getCurrentTree() (plumbing.Hash, error) {
	headRef, err := p.repo.Head()
	if err != nil {
		// No commits yet - return zero hash
		return plumbing.ZeroHash, nil
	}

	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get head commit: %w", err)
	}

	return commit.TreeHash, nil
}

// getTreeEntries reads all entries from an existing tree, returning a map of path -> hash/mode
func (p *Persistence) getTreeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)

	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(p.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}

	return entries, nil
}

// buildTreeFromEntries creates a tree object from a list of entries
func (p *Persistence) buildTreeFromEntries(entries []object.TreeEntry) (plumbing.Hash, error) {
	// Sort entries by name (Git requirement)
	sort.Slice(entries, func(i, j int) bool {
		// Directories are sorted with trailing slash for comparison
		nameI := entries[i].Name
		nameJ := entries[j].Name
		if entries[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entries[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	tree := &object.Tree{Entries: entries}

	obj := p.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// TreeChange represents a single change to apply to a tree
type TreeChange struct {
	Path     string        // File path (e.g., "data/BOOKS/42")
	BlobHash plumbing.Hash // Blob hash to set (ZeroHash = delete)
	IsDelete bool          // True if this is a deletion
}

// batchUpdateTree applies multiple changes to a tree in a single operation.
// At every level deletions are applied before descending into
// subdirectories, so deleting a directory and writing new files under the
// same name in one batch leaves only the new files.
func (p *Persistence) batchUpdateTree(rootTreeHash plumbing.Hash, changes []TreeChange) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return rootTreeHash, nil
	}

	// Group changes by top-level directory
	grouped := make(map[string][]TreeChange)
	leafChanges := make([]TreeChange, 0)

	for _, change := range changes {
		parts := strings.Split(change.Path, "/")
		if len(parts) == 1 {
			// Leaf change at root level
			leafChanges = append(leafChanges, change)
		} else {
			// Group by first directory
			dir := parts[0]
			subChange := TreeChange{
				Path:     strings.Join(parts[1:], "/"),
				BlobHash: change.BlobHash,
				IsDelete: change.IsDelete,
			}
			grouped[dir] = append(grouped[dir], subChange)
		}
	}

	// Get current tree entries
	entries, err := p.getTreeEntries(rootTreeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	// Apply leaf changes at this level
	for _, change := range leafChanges {
		name := change.Path
		if change.IsDelete {
			delete(entries, name)
		} else {
			entries[name] = object.TreeEntry{
				Name: name,
				Mode: filemode.Regular,
				Hash: change.BlobHash,
			}
		}
	}

	// Recursively apply grouped changes to subdirectories
	for dir, subChanges := range grouped {
		var subTreeHash plumbing.Hash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			subTreeHash = existing.Hash
		} else {
			subTreeHash = plumbing.ZeroHash
		}

		newSubTreeHash, err := p.batchUpdateTree(subTreeHash, subChanges)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		if newSubTreeHash == plumbing.ZeroHash {
			// Subtree is now empty, remove directory entry
			delete(entries, dir)
		} else {
			entries[dir] = object.TreeEntry{
				Name: dir,
				Mode: filemode.Dir,
				Hash: newSubTreeHash,
			}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}

	// Convert map to slice and build new tree
	entrySlice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entrySlice = append(entrySlice, entry)
	}

	return p.buildTreeFromEntries(entrySlice)
}

// createCommitDirect creates a commit object directly without using worktree
func (p *Persistence) createCommitDirect(treeHash plumbing.Hash, identity core.Identity, message string) (Transaction, error) {
	// Handle empty tree case - create an actual empty tree object
	actualTreeHash := treeHash
	if treeHash == plumbing.ZeroHash {
		emptyTree := &object.Tree{Entries: []object.TreeEntry{}}
		obj := p.repo.Storer.NewEncodedObject()
		if err := emptyTree.Encode(obj); err != nil {
			return Transaction{}, fmt.Errorf("failed to encode empty tree: %w", err)
		}
		var err error
		actualTreeHash, err = p.repo.Storer.SetEncodedObject(obj)
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to store empty tree: %w", err)
		}
	}

	// Get parent commit
	var parentHashes []plumbing.Hash
	headRef, err := p.repo.Head()
	if err == nil {
		parentHashes = []plumbing.Hash{headRef.Hash()}
	}

	sig := object.Signature{
		Name:  identity.Name,
		Email: identity.Email,
		When:  time.Now(),
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     actualTreeHash,
		ParentHashes: parentHashes,
	}

	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return Transaction{}, fmt.Errorf("failed to encode commit: %w", err)
	}

	commitHash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to store commit: %w", err)
	}

	// Update HEAD reference
	branchName := plumbing.Master
	if headRef != nil && headRef.Name().IsBranch() {
		branchName = headRef.Name()
	}

	ref := plumbing.NewHashReference(branchName, commitHash)
	if err := p.repo.Storer.SetReference(ref); err != nil {
		return Transaction{}, fmt.Errorf("failed to update HEAD: %w", err)
	}
	p.head.Store(nil)

	return Transaction{
		Id:   commitHash.String(),
		When: sig.When,
	}, nil
}

// syncWorktree updates the worktree filesystem to match HEAD
// For memory mode, this is skipped since reads use Git tree directly
func (p *Persistence) syncWorktree() error {
	// Skip sync in memory mode - reads go directly to Git tree
	if p.isMemoryMode {
		return nil
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return err
	}

	headRef, err := p.repo.Head()
	if err != nil {
		return err
	}

	// Check if tree is empty (happens after DROP operations)
	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return err
	}

	tree, err := commit.Tree()
	if err != nil {
		return err
	}

	// If tree is empty, manually clean the filesystem instead of reset
	// (git reset fails with "base dir cannot be removed" on empty tree)
	if len(tree.Entries) == 0 {
		// Remove all files from filesystem manually
		fs := wt.Filesystem
		entries, err := fs.ReadDir("/")
		if err != nil {
			return nil // Dir might not exist, that's fine
		}
		for _, entry := range entries {
			if entry.Name() != ".git" {
				fs.Remove(entry.Name())
			}
		}
		return nil
	}

	return wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: headRef.Hash(),
	})
}

// headTree returns the tree of the HEAD commit, or nil when nothing has
// been committed yet. The tree is memoized until the next commit.
func (p *Persistence) headTree() (*object.Tree, error) {
	if !p.IsInitialized() {
		return nil, ErrNotInitialized
	}
	if tree := p.head.Load(); tree != nil {
		return tree, nil
	}

	headRef, err := p.repo.Head()
	if err != nil {
		return nil, nil
	}

	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	p.head.Store(tree)
	return tree, nil
}

// ReadFileDirect reads a file from the HEAD tree, bypassing the worktree.
// found is false when the path does not exist.
func (p *Persistence) ReadFileDirect(filePath string) (data []byte, found bool, err error) {
	tree, err := p.headTree()
	if err != nil || tree == nil {
		return nil, false, err
	}

	file, err := tree.File(filePath)
	if err == object.ErrFileNotFound || err == object.ErrDirectoryNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to open %s: %w", filePath, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	return []byte(content), true, nil
}

// TreeEntry represents a directory entry from the Git tree
type TreeEntry struct {
	Name  string
	IsDir bool
}

// ListEntriesDirect lists a directory of the HEAD tree. A missing
// directory lists as empty.
func (p *Persistence) ListEntriesDirect(dirPath string) ([]TreeEntry, error) {
	tree, err := p.headTree()
	if err != nil || tree == nil {
		return nil, err
	}

	if dirPath != "" && dirPath != "." {
		tree, err = tree.Tree(dirPath)
		if err != nil {
			return nil, nil
		}
	}

	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		entries = append(entries, TreeEntry{
			Name:  entry.Name,
			IsDir: entry.Mode == filemode.Dir,
		})
	}

	return entries, nil
}
