// Package gitrepo replicates the artifact tree through a git
// repository: Stage adds the working tree, Commit records a snapshot,
// Push propagates it to the configured remote.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/replicate"
)

// Config captures the parameters for the git replication backend.
type Config struct {
	// Path is the repository root; the artifact store base directory
	// must live inside it.
	Path string `mapstructure:"path" yaml:"path"`
	// Remote is the remote to push to. Defaults to origin.
	Remote string `mapstructure:"remote" yaml:"remote"`
	// AuthorName and AuthorEmail identify checkpoint commits.
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
}

// Replicator implements replicate.Replicator on a local git clone.
type Replicator struct {
	repo   *git.Repository
	cfg    Config
	logger *zap.Logger
}

// Open opens the repository at cfg.Path.
func Open(cfg Config, logger *zap.Logger) (*Replicator, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("repository path is required")
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "pubmed-pipeline"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "pipeline@localhost"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, err := git.PlainOpen(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &Replicator{repo: repo, cfg: cfg, logger: logger}, nil
}

// Stage adds every change in the working tree to the index.
func (r *Replicator) Stage(context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}
	return nil
}

// Commit records the staged changes. A clean worktree is a no-op, not
// an error.
func (r *Replicator) Commit(_ context.Context, message string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		r.logger.Debug("nothing to commit")
		return nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.cfg.AuthorName,
			Email: r.cfg.AuthorEmail,
			When:  time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.Info("committed checkpoint",
		zap.String("hash", hash.String()[:8]),
		zap.String("message", firstLine(message)),
	)
	return nil
}

// Push propagates local commits to the configured remote. Already
// up-to-date is success.
func (r *Replicator) Push(ctx context.Context) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{RemoteName: r.cfg.Remote})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("push to %s: %w", r.cfg.Remote, err)
	}
	return nil
}

// Status reports the worktree state and the last checkpoint commit.
func (r *Replicator) Status(context.Context) (replicate.Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return replicate.Status{}, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return replicate.Status{}, fmt.Errorf("worktree status: %w", err)
	}

	out := replicate.Status{HasChanges: !status.IsClean()}

	head, err := r.repo.Head()
	if err != nil {
		// Empty repository: no commits yet.
		return out, nil
	}
	out.Branch = head.Name().Short()

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return out, fmt.Errorf("read head commit: %w", err)
	}
	out.LastCommit = fmt.Sprintf("%s %s", head.Hash().String()[:8], firstLine(commit.Message))
	return out, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
