package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tract-sync/internal/common"
	"tract-sync/internal/models"
)

func newTestWorklogs(t *testing.T, remote *fakeRemote) (*WorklogService, *common.Config) {
	t.Helper()
	cfg := testConfig(initGitRepo(t))
	s, err := NewWorklogService(cfg, remote, newTestRepo(cfg), common.GetLogger())
	if err != nil {
		t.Fatalf("NewWorklogService: %v", err)
	}
	return s, cfg
}

func TestAppendWritesMonthBucket(t *testing.T) {
	remote := newFakeRemote()
	s, cfg := newTestWorklogs(t, remote)

	entry, err := s.Append(context.Background(), "PROJ-1", models.WorklogRequest{
		Author:  "alice",
		Time:    "2h",
		Comment: "debugging",
		Started: "2026-03-05T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if entry.Seconds != 7200 {
		t.Errorf("seconds = %d, want 7200", entry.Seconds)
	}

	bucket := filepath.Join(cfg.WorklogsPath(), "2026-03.jsonl")
	data, err := os.ReadFile(bucket)
	if err != nil {
		t.Fatalf("bucket missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("bucket lines = %d, want 1", len(lines))
	}
	if !strings.Contains(lines[0], `"issue":"PROJ-1"`) || !strings.Contains(lines[0], `"seconds":7200`) {
		t.Errorf("bucket line = %s", lines[0])
	}

	if len(remote.worklogs) != 1 {
		t.Fatalf("remote worklogs = %d, want 1", len(remote.worklogs))
	}
	if remote.worklogs[0].key != "PROJ-1" || remote.worklogs[0].payload.TimeSpentSeconds != 7200 {
		t.Errorf("remote worklog = %+v", remote.worklogs[0])
	}
}

func TestAppendRemoteFailureKeepsLocalEntry(t *testing.T) {
	remote := newFakeRemote()
	remote.worklogErr = common.NewRemoteUnavailableError("connection refused")
	s, _ := newTestWorklogs(t, remote)

	if _, err := s.Append(context.Background(), "PROJ-1", models.WorklogRequest{Author: "alice", Time: "1h"}); err != nil {
		t.Fatalf("Append must survive a remote failure: %v", err)
	}

	entries, err := s.Worklogs("PROJ-1")
	if err != nil {
		t.Fatalf("Worklogs: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestAppendRejectsBadDuration(t *testing.T) {
	s, cfg := newTestWorklogs(t, newFakeRemote())

	_, err := s.Append(context.Background(), "PROJ-1", models.WorklogRequest{Author: "alice", Time: "soon"})
	if !common.IsNoSeconds(err) {
		t.Fatalf("err = %v, want no-seconds", err)
	}

	names, _ := os.ReadDir(cfg.WorklogsPath())
	if len(names) != 0 {
		t.Errorf("rejected entry left files behind: %v", names)
	}
}

func TestAppendRejectsBadStarted(t *testing.T) {
	s, _ := newTestWorklogs(t, newFakeRemote())

	_, err := s.Append(context.Background(), "PROJ-1", models.WorklogRequest{
		Author:  "alice",
		Time:    "1h",
		Started: "yesterday",
	})
	if !common.HasCode(err, "bad_started") {
		t.Errorf("err = %v, want bad_started", err)
	}
}

func TestWorklogsFiltersByIssue(t *testing.T) {
	s, _ := newTestWorklogs(t, newFakeRemote())
	ctx := context.Background()

	seed := []struct {
		issue   string
		started string
	}{
		{"PROJ-1", "2026-03-05T10:00:00Z"},
		{"PROJ-2", "2026-03-05T11:00:00Z"},
		{"PROJ-1", "2026-04-01T09:00:00Z"},
	}
	for _, e := range seed {
		if _, err := s.Append(ctx, e.issue, models.WorklogRequest{Author: "alice", Time: "1h", Started: e.started}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := s.Worklogs("PROJ-1")
	if err != nil {
		t.Fatalf("Worklogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if !entries[0].StartedAt.Before(entries[1].StartedAt) {
		t.Errorf("entries not sorted oldest first")
	}
}

func TestTimesheetFilters(t *testing.T) {
	s, _ := newTestWorklogs(t, newFakeRemote())
	ctx := context.Background()

	seed := []struct {
		author  string
		time    string
		started string
	}{
		{"alice", "2h", "2026-03-05T10:00:00Z"},
		{"alice", "1h", "2026-03-06T10:00:00Z"},
		{"alice", "4h", "2026-04-01T10:00:00Z"},
		{"bob", "8h", "2026-03-05T10:00:00Z"},
	}
	for _, e := range seed {
		if _, err := s.Append(ctx, "PROJ-1", models.WorklogRequest{Author: e.author, Time: e.time, Started: e.started}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	tests := []struct {
		name    string
		filter  models.TimesheetFilter
		entries int
		total   int
	}{
		{"all", models.TimesheetFilter{}, 3, 25200},
		{"single day", models.TimesheetFilter{Date: "2026-03-05"}, 1, 7200},
		{"iso week", models.TimesheetFilter{Week: "2026-W10"}, 2, 10800},
		{"month", models.TimesheetFilter{Month: "2026-03"}, 2, 10800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, total, err := s.Timesheet("alice", tt.filter)
			if err != nil {
				t.Fatalf("Timesheet: %v", err)
			}
			if len(entries) != tt.entries {
				t.Errorf("entries = %d, want %d", len(entries), tt.entries)
			}
			if total != tt.total {
				t.Errorf("total = %d, want %d", total, tt.total)
			}
		})
	}
}

func TestFlushCommitsPendingEntries(t *testing.T) {
	s, cfg := newTestWorklogs(t, newFakeRemote())

	if _, err := s.Append(context.Background(), "PROJ-1", models.WorklogRequest{Author: "alice", Time: "1h"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s.Flush()

	if !strings.Contains(gitLog(t, cfg.Repo.Path), "Worklog entries") {
		t.Errorf("worklog commit missing:\n%s", gitLog(t, cfg.Repo.Path))
	}

	dirty, err := s.repo.HasChanges(cfg.Repo.WorklogsDir)
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if dirty {
		t.Errorf("worklog directory still dirty after flush")
	}
}

func TestFlushWithNothingPendingIsQuiet(t *testing.T) {
	s, cfg := newTestWorklogs(t, newFakeRemote())

	s.Flush()

	if n := commitCount(t, cfg.Repo.Path); n != 0 {
		t.Errorf("commits = %d, want 0", n)
	}
}
