package gitrepo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"tract-sync/internal/common"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "sync-bot@example.com"},
		{"config", "user.name", "sync-bot"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	return New(dir, common.IdentityConfig{User: "sync-bot", Email: "sync-bot@example.com"})
}

func writeFile(t *testing.T, repo *Repo, rel, content string) {
	t.Helper()
	path := filepath.Join(repo.Root(), rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func lastAuthor(t *testing.T, repo *Repo) string {
	t.Helper()
	cmd := exec.Command("git", "log", "-1", "--format=%an <%ae>")
	cmd.Dir = repo.Root()
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git log: %v\n%s", err, out)
	}
	return strings.TrimSpace(string(out))
}

func TestCommitNothingStaged(t *testing.T) {
	repo := newTestRepo(t)

	committed, err := repo.Commit("empty")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed {
		t.Errorf("committed = true with nothing staged")
	}
}

func TestAddAndCommit(t *testing.T) {
	repo := newTestRepo(t)
	writeFile(t, repo, "issues/PROJ-1.md", "content\n")

	committed, err := repo.AddAndCommit("Sync PROJ-1 from Jira", "issues/PROJ-1.md")
	if err != nil {
		t.Fatalf("AddAndCommit: %v", err)
	}
	if !committed {
		t.Fatalf("committed = false")
	}
	if got := lastAuthor(t, repo); got != "sync-bot <sync-bot@example.com>" {
		t.Errorf("author = %q", got)
	}

	// Committing the same content again stages nothing.
	committed, err = repo.AddAndCommit("Sync PROJ-1 from Jira", "issues/PROJ-1.md")
	if err != nil {
		t.Fatalf("AddAndCommit: %v", err)
	}
	if committed {
		t.Errorf("committed = true with no new changes")
	}
}

func TestAddStagesDeletions(t *testing.T) {
	repo := newTestRepo(t)
	writeFile(t, repo, "issues/PROJ-1.md", "content\n")
	if _, err := repo.AddAndCommit("add", "issues/PROJ-1.md"); err != nil {
		t.Fatalf("AddAndCommit: %v", err)
	}

	if err := os.Remove(filepath.Join(repo.Root(), "issues", "PROJ-1.md")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	committed, err := repo.AddAndCommit("delete", "issues/PROJ-1.md")
	if err != nil {
		t.Fatalf("AddAndCommit: %v", err)
	}
	if !committed {
		t.Errorf("deletion was not committed")
	}
}

func TestHasChanges(t *testing.T) {
	repo := newTestRepo(t)

	dirty, err := repo.HasChanges("worklogs")
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if dirty {
		t.Errorf("fresh repo reported dirty")
	}

	writeFile(t, repo, "worklogs/2026-08.jsonl", "{}\n")

	dirty, err = repo.HasChanges("worklogs")
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if !dirty {
		t.Errorf("untracked file not reported")
	}

	// Changes outside the pathspec do not count.
	dirty, err = repo.HasChanges("issues")
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if dirty {
		t.Errorf("pathspec leaked changes from another directory")
	}
}

func TestGitErrorSurfacesOutput(t *testing.T) {
	repo := New(t.TempDir(), common.IdentityConfig{User: "sync-bot", Email: "sync-bot@example.com"})

	// Not a git repository.
	_, err := repo.Commit("nope")
	if err == nil {
		t.Fatalf("expected error outside a repository")
	}
	if !common.HasCode(err, "command_failed") {
		t.Errorf("err = %v, want command_failed", err)
	}
}
