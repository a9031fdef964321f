package services

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"testing"

	"tract-sync/internal/common"
	"tract-sync/internal/gitrepo"
	"tract-sync/internal/jira"
	"tract-sync/internal/models"
	"tract-sync/internal/schema"
)

// fakeRemote is an in-memory Remote double. Error fields force the
// corresponding call to fail; recorded slices capture what was sent.
type fakeRemote struct {
	issues      map[string]*jira.Issue
	transitions []jira.TransitionInfo

	createKeys []string
	createErr  error
	getErr     error
	updateErr  error
	commentErr error
	worklogErr error

	created      []jira.CreatePayload
	updates      []map[string]any
	transitioned []string
	comments     []commentCall
	linksAdded   []linkCall
	linksDeleted []string
	worklogs     []worklogCall
	getCalls     int

	searchResults []jira.Issue
	searchErr     error

	nextCommentID int
}

type commentCall struct {
	key  string
	body string
}

type linkCall struct {
	typeName   string
	inwardKey  string
	outwardKey string
}

type worklogCall struct {
	key     string
	payload jira.WorklogPayload
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{issues: make(map[string]*jira.Issue)}
}

func (f *fakeRemote) GetIssue(ctx context.Context, key string) (*jira.Issue, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	issue, ok := f.issues[key]
	if !ok {
		return nil, common.NewRemoteRejectedError("issue not found")
	}
	return issue, nil
}

func (f *fakeRemote) CreateIssue(ctx context.Context, payload jira.CreatePayload) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, payload)
	if len(f.createKeys) == 0 {
		return fmt.Sprintf("%s-%d", payload.Fields.Project.Key, len(f.created)), nil
	}
	key := f.createKeys[0]
	f.createKeys = f.createKeys[1:]
	return key, nil
}

func (f *fakeRemote) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeRemote) GetTransitions(ctx context.Context, key string) ([]jira.TransitionInfo, error) {
	return f.transitions, nil
}

func (f *fakeRemote) DoTransition(ctx context.Context, key, transitionID string) error {
	f.transitioned = append(f.transitioned, transitionID)
	return nil
}

func (f *fakeRemote) AddComment(ctx context.Context, key, body string) (string, error) {
	if f.commentErr != nil {
		return "", f.commentErr
	}
	f.comments = append(f.comments, commentCall{key: key, body: body})
	f.nextCommentID++
	return fmt.Sprintf("c-%d", f.nextCommentID), nil
}

func (f *fakeRemote) CreateLink(ctx context.Context, typeName, inwardKey, outwardKey string) error {
	f.linksAdded = append(f.linksAdded, linkCall{typeName: typeName, inwardKey: inwardKey, outwardKey: outwardKey})
	return nil
}

func (f *fakeRemote) DeleteLink(ctx context.Context, linkID string) error {
	f.linksDeleted = append(f.linksDeleted, linkID)
	return nil
}

func (f *fakeRemote) AddWorklog(ctx context.Context, key string, payload jira.WorklogPayload) error {
	if f.worklogErr != nil {
		return f.worklogErr
	}
	f.worklogs = append(f.worklogs, worklogCall{key: key, payload: payload})
	return nil
}

func (f *fakeRemote) SearchIssues(ctx context.Context, jql string, max int) ([]jira.Issue, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

// fakeStore is an in-memory Store double.
type fakeStore struct {
	queue  map[string]*models.QueueItem
	ledger map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		queue:  make(map[string]*models.QueueItem),
		ledger: make(map[string]bool),
	}
}

func (s *fakeStore) Put(item *models.QueueItem) error {
	s.queue[item.TempID] = item
	return nil
}

func (s *fakeStore) Get(tempID string) (*models.QueueItem, error) {
	return s.queue[tempID], nil
}

func (s *fakeStore) Delete(tempID string) error {
	delete(s.queue, tempID)
	return nil
}

func (s *fakeStore) List() ([]*models.QueueItem, error) {
	keys := make([]string, 0, len(s.queue))
	for k := range s.queue {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]*models.QueueItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, s.queue[k])
	}
	return items, nil
}

func (s *fakeStore) Len() (int, error) {
	return len(s.queue), nil
}

func (s *fakeStore) MarkOwnComment(commentID string) error {
	s.ledger[commentID] = true
	return nil
}

func (s *fakeStore) IsOwnComment(commentID string) bool {
	return s.ledger[commentID]
}

func (s *fakeStore) Close() error {
	return nil
}

// initGitRepo creates a committable git repository in a temp dir.
func initGitRepo(t *testing.T) string {
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
	return dir
}

// gitLog returns the subject lines of every commit, newest first.
func gitLog(t *testing.T, dir string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "--format=%s")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git log: %v\n%s", err, out)
	}
	return string(out)
}

// commitCount counts commits on all refs; zero on a fresh repository.
func commitCount(t *testing.T, dir string) int {
	t.Helper()
	cmd := exec.Command("git", "rev-list", "--all", "--count")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git rev-list: %v\n%s", err, out)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("rev-list output %q: %v", out, err)
	}
	return n
}

func testConfig(repoPath string) *common.Config {
	return &common.Config{
		Jira: common.JiraConfig{
			URL:      "http://localhost:8080",
			Username: "sync-bot",
			Token:    "token",
		},
		Repo: common.RepoConfig{
			Path:        repoPath,
			IssuesDir:   "issues",
			WorklogsDir: "worklogs",
		},
		Identity: common.IdentityConfig{
			User:  "sync-bot",
			Email: "sync-bot@example.com",
		},
	}
}

func newTestRepo(cfg *common.Config) *gitrepo.Repo {
	return gitrepo.New(cfg.Repo.Path, cfg.Identity)
}

func testMapper(t *testing.T) *schema.Mapper {
	t.Helper()
	return schema.NewMapper(common.GetLogger())
}

func testDocStore(t *testing.T, cfg *common.Config) *docStore {
	t.Helper()
	docs, err := newDocStore(cfg.IssuesPath())
	if err != nil {
		t.Fatalf("newDocStore: %v", err)
	}
	return docs
}
