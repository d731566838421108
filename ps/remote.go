package ps

import (
	"fmt"
	"os"
	"slices"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
)

// AuthType defines the type of authentication
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeBasic AuthType = "basic"
)

// RemoteAuth holds authentication configuration for remote operations
type RemoteAuth struct {
	Type       AuthType
	Token      string // For token auth
	KeyPath    string // For SSH key auth
	Passphrase string // For SSH key with passphrase
	Username   string // For basic auth
	Password   string // For basic auth
}

// getAuthMethod converts RemoteAuth to go-git's AuthMethod
func (auth *RemoteAuth) getAuthMethod() (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case AuthTypeNone:
		return nil, nil

	case AuthTypeToken:
		// Token auth uses username "git" or any non-empty string
		return &http.BasicAuth{
			Username: "git",
			Password: auth.Token,
		}, nil

	case AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			// Default to ~/.ssh/id_rsa
			home, _ := os.UserHomeDir()
			keyPath = home + "/.ssh/id_rsa"
		}

		if auth.Passphrase != "" {
			return ssh.NewPublicKeysFromFile("git", keyPath, auth.Passphrase)
		}
		return ssh.NewPublicKeysFromFile("git", keyPath, "")

	case AuthTypeBasic:
		return &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", auth.Type)
	}
}

// EnsureRemote points the named remote at url, creating or replacing it.
func (p *Persistence) EnsureRemote(name, url string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	if remote, err := p.repo.Remote(name); err == nil {
		if slices.Equal(remote.Config().URLs, []string{url}) {
			return nil
		}
		if err := p.repo.DeleteRemote(name); err != nil {
			return fmt.Errorf("failed to replace remote '%s': %w", name, err)
		}
	}

	_, err := p.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("failed to add remote '%s': %w", name, err)
	}
	return nil
}

// Push pushes a branch to a remote. An up-to-date remote is not an error.
func (p *Persistence) Push(remoteName, branch string, auth *RemoteAuth) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	// Default to origin if not specified
	if remoteName == "" {
		remoteName = "origin"
	}

	// Default to current branch if not specified
	if branch == "" {
		currentBranch, err := p.CurrentBranch()
		if err != nil {
			return fmt.Errorf("failed to get current branch: %w", err)
		}
		branch = currentBranch
	}

	authMethod, err := auth.getAuthMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))

	err = p.repo.Push(&git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       authMethod,
	})

	if err == git.NoErrAlreadyUpToDate {
		return nil // Not an error
	}
	if err != nil {
		return fmt.Errorf("failed to push to '%s': %w", remoteName, err)
	}
	return nil
}

// CurrentBranch returns the name of the checked out branch
func (p *Persistence) CurrentBranch() (string, error) {
	if err := p.ensureInitialized(); err != nil {
		return "", err
	}

	headRef, err := p.repo.Head()
	if err != nil {
		return plumbing.Master.Short(), nil
	}

	if headRef.Name().IsBranch() {
		return headRef.Name().Short(), nil
	}

	return "", fmt.Errorf("HEAD is detached at %s", headRef.Hash().String()[:7])
}
