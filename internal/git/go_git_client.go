package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	httpAuth "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/lockwhz/iac-analytics-service/internal/logger"
	"github.com/lockwhz/iac-analytics-service/internal/vault"
)

// BundleFetcher installs the custom rule bundle into the local policy directory.
type BundleFetcher struct {
	Vault vault.VaultClient
}

// Fetch clones repoURL into dir, or pulls when dir is already a checkout.
// An empty repoURL means no bundle is configured and is not an error.
func (f *BundleFetcher) Fetch(ctx context.Context, repoURL, dir string) error {
	defer logger.Trace("BundleFetcher.Fetch", time.Now())

	if repoURL == "" {
		logger.Log.Debug("BundleFetcher: no bundle repository configured; skipping")
		return nil
	}

	auth, err := f.auth()
	if err != nil {
		return err
	}

	repo, err := git.PlainOpen(dir)
	switch {
	case err == nil:
		return f.pull(ctx, repo, auth, dir)
	case !errors.Is(err, git.ErrRepositoryNotExists):
		return fmt.Errorf("open bundle %s: %w", dir, err)
	}

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          repoURL,
		Auth:         auth,
		Depth:        1,
		SingleBranch: true,
		Progress:     os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("clone bundle %s: %w", repoURL, err)
	}
	logger.Log.Debugf("BundleFetcher: bundle cloned into %s", dir)
	return nil
}

func (f *BundleFetcher) pull(ctx context.Context, repo *git.Repository, auth transport.AuthMethod, dir string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree %s: %w", dir, err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{Auth: auth, Depth: 1, SingleBranch: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull bundle %s: %w", dir, err)
	}
	logger.Log.Debugf("BundleFetcher: bundle in %s is up to date", dir)
	return nil
}

func (f *BundleFetcher) auth() (transport.AuthMethod, error) {
	if f.Vault == nil {
		return nil, nil
	}
	creds, err := f.Vault.GetGitCredentials()
	if err != nil {
		return nil, fmt.Errorf("get git credentials: %w", err)
	}
	if creds == nil || creds.Token == "" {
		return nil, nil
	}
	return &httpAuth.BasicAuth{Username: creds.Username, Password: creds.Token}, nil
}

// Remove deletes the installed bundle.
func (f *BundleFetcher) Remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove bundle %s: %w", dir, err)
	}
	return nil
}
