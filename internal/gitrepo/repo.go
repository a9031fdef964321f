// Package gitrepo wraps the git plumbing the sync engine needs: staging
// files and committing them under the sync identity.
package gitrepo

import (
	"fmt"
	"os/exec"
	"strings"

	"tract-sync/internal/common"
)

// Repo runs git commands against a single working tree.
type Repo struct {
	root   string
	author string
}

// New creates a repo handle rooted at path, committing as the given
// identity.
func New(path string, identity common.IdentityConfig) *Repo {
	return &Repo{
		root:   path,
		author: fmt.Sprintf("%s <%s>", identity.User, identity.Email),
	}
}

// Root returns the working tree path.
func (r *Repo) Root() string {
	return r.root
}

func (r *Repo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.root
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", common.NewGitError("command_failed",
			fmt.Sprintf("git %s failed", strings.Join(args, " "))).
			WithDetails(strings.TrimSpace(string(output))).
			WithCause(err)
	}
	return string(output), nil
}

// Add stages the given paths (relative to the repo root). Deleted
// paths are staged as removals.
func (r *Repo) Add(paths ...string) error {
	args := append([]string{"add", "--all", "--"}, paths...)
	_, err := r.git(args...)
	return err
}

// Commit records staged changes with the sync identity as author.
// Committing with nothing staged is not an error; it is reported as
// committed=false.
func (r *Repo) Commit(message string) (bool, error) {
	staged, err := r.git("diff", "--cached", "--name-only")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(staged) == "" {
		return false, nil
	}
	if _, err := r.git("commit", "--author", r.author, "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

// AddAndCommit stages the given paths and commits them in one step.
func (r *Repo) AddAndCommit(message string, paths ...string) (bool, error) {
	if err := r.Add(paths...); err != nil {
		return false, err
	}
	return r.Commit(message)
}

// HasChanges reports whether the given pathspec has uncommitted
// changes (staged, unstaged, or untracked).
func (r *Repo) HasChanges(pathspec string) (bool, error) {
	output, err := r.git("status", "--porcelain", "--", pathspec)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) != "", nil
}
