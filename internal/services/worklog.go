package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"tract-sync/internal/common"
	"tract-sync/internal/gitrepo"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/jira"
	"tract-sync/internal/models"
	"tract-sync/internal/schema"
)

// commitInterval is the debounce window for batched worklog commits.
const commitInterval = 5 * time.Minute

// WorklogService appends time-log entries to month-bucketed JSONL
// files. The file write is synchronous; the git commit is batched
// behind a debounce timer and forced on shutdown via Flush.
type WorklogService struct {
	config    *common.Config
	remote    interfaces.Remote
	repo      *gitrepo.Repo
	scheduler *commitScheduler
	logger    arbor.ILogger

	mu sync.Mutex
}

func NewWorklogService(config *common.Config, remote interfaces.Remote, repo *gitrepo.Repo, logger arbor.ILogger) (*WorklogService, error) {
	if err := os.MkdirAll(config.WorklogsPath(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create worklogs directory: %w", err)
	}

	s := &WorklogService{
		config: config,
		remote: remote,
		repo:   repo,
		logger: logger,
	}
	s.scheduler = newCommitScheduler(commitInterval, s.commitBatch)
	return s, nil
}

// Append validates and stores one entry. The local write happens
// before and independently of the remote post; a remote failure never
// undoes it.
func (s *WorklogService) Append(ctx context.Context, issueID string, req models.WorklogRequest) (*models.WorklogEntry, error) {
	seconds, err := schema.ToSeconds(req.Time)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()
	if req.Started != "" {
		parsed, err := time.Parse(time.RFC3339, req.Started)
		if err != nil {
			return nil, common.NewError(common.ErrorTypeWorklog, "bad_started", "started timestamp is not RFC3339").
				WithCause(err).
				WithContext("started", req.Started)
		}
		startedAt = parsed.UTC()
	}

	entry := &models.WorklogEntry{
		IssueID:   issueID,
		Author:    req.Author,
		StartedAt: startedAt,
		Seconds:   seconds,
		Comment:   req.Comment,
	}

	if err := s.writeEntry(entry); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("issue", issueID).
		Str("author", req.Author).
		Int("seconds", seconds).
		Msg("Worklog entry recorded")

	// Best effort: the entry is durable locally either way.
	payload := jira.WorklogPayload{
		TimeSpentSeconds: seconds,
		Comment:          req.Comment,
		Started:          startedAt.Format("2006-01-02T15:04:05.000-0700"),
	}
	if err := s.remote.AddWorklog(ctx, issueID, payload); err != nil {
		s.logger.Warn().Err(err).Str("issue", issueID).Msg("Failed to post worklog to remote")
	}

	s.scheduler.Schedule()
	return entry, nil
}

// writeEntry appends one JSON line to the month bucket for the entry's
// start time.
func (s *WorklogService) writeEntry(entry *models.WorklogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return common.NewInternalError("marshal_failed", "failed to encode worklog entry").WithCause(err)
	}

	path := s.bucketPath(entry.StartedAt)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return common.NewStorageError("write_failed", "failed to open worklog bucket").
			WithCause(err).
			WithContext("path", path)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return common.NewStorageError("write_failed", "failed to append worklog entry").
			WithCause(err).
			WithContext("path", path)
	}
	return f.Sync()
}

func (s *WorklogService) bucketPath(at time.Time) string {
	return filepath.Join(s.config.WorklogsPath(), at.Format("2006-01")+".jsonl")
}

// Worklogs returns every entry for an issue, oldest first.
func (s *WorklogService) Worklogs(issueID string) ([]models.WorklogEntry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}

	var out []models.WorklogEntry
	for _, e := range entries {
		if e.IssueID == issueID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Timesheet returns the author's entries matching the filter, oldest
// first, with the total across them.
func (s *WorklogService) Timesheet(author string, filter models.TimesheetFilter) ([]models.WorklogEntry, int, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, 0, err
	}

	var out []models.WorklogEntry
	total := 0
	for _, e := range entries {
		if e.Author != author || !matchesFilter(e.StartedAt, filter) {
			continue
		}
		out = append(out, e)
		total += e.Seconds
	}
	return out, total, nil
}

func matchesFilter(at time.Time, filter models.TimesheetFilter) bool {
	switch {
	case filter.Date != "":
		return at.Format("2006-01-02") == filter.Date
	case filter.Week != "":
		year, week := at.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week) == filter.Week
	case filter.Month != "":
		return at.Format("2006-01") == filter.Month
	default:
		return true
	}
}

// FormatTotal renders a total in the d/h/m notation used by reports.
func (s *WorklogService) FormatTotal(seconds int) string {
	return schema.FormatSeconds(seconds)
}

func (s *WorklogService) readAll() ([]models.WorklogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.config.WorklogsPath()
	names, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.NewStorageError("read_failed", "failed to read worklogs directory").WithCause(err)
	}

	var entries []models.WorklogEntry
	for _, name := range names {
		if name.IsDir() || !strings.HasSuffix(name.Name(), ".jsonl") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, name.Name()))
		if err != nil {
			return nil, common.NewStorageError("read_failed", "failed to open worklog bucket").
				WithCause(err).
				WithContext("file", name.Name())
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var e models.WorklogEntry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				s.logger.Warn().Err(err).Str("file", name.Name()).Msg("Skipping unreadable worklog line")
				continue
			}
			entries = append(entries, e)
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, common.NewStorageError("read_failed", "failed to scan worklog bucket").
				WithCause(err).
				WithContext("file", name.Name())
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})
	return entries, nil
}

// commitBatch commits every pending worklog file under the engine
// identity, skipping the commit entirely when the directory is clean.
func (s *WorklogService) commitBatch() {
	dirty, err := s.repo.HasChanges(s.config.Repo.WorklogsDir)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to check worklog changes")
		return
	}
	if !dirty {
		return
	}

	message := fmt.Sprintf("Worklog entries %s\n\n%s",
		time.Now().UTC().Format("2006-01-02 15:04:05"), syncMarker)
	committed, err := s.repo.AddAndCommit(message, s.config.Repo.WorklogsDir)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to commit worklog batch")
		return
	}
	if committed {
		s.logger.Info().Msg("Committed worklog batch")
	}
}

// Flush cancels any pending timer and commits immediately. Called on
// shutdown so already-written entries do not sit uncommitted.
func (s *WorklogService) Flush() {
	s.scheduler.Flush()
}

// commitScheduler debounces a single background commit: Schedule arms
// the timer once and lets later calls ride the same window, Flush
// cancels and runs the commit inline.
type commitScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	commit   func()
}

func newCommitScheduler(interval time.Duration, commit func()) *commitScheduler {
	return &commitScheduler{interval: interval, commit: commit}
}

func (cs *commitScheduler) Schedule() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.timer != nil {
		return
	}
	cs.timer = time.AfterFunc(cs.interval, func() {
		cs.mu.Lock()
		cs.timer = nil
		cs.mu.Unlock()
		cs.commit()
	})
}

func (cs *commitScheduler) Flush() {
	cs.mu.Lock()
	if cs.timer != nil {
		cs.timer.Stop()
		cs.timer = nil
	}
	cs.mu.Unlock()
	cs.commit()
}
