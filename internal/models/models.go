package models

import (
	"regexp"
	"time"

	"tract-sync/internal/jira"
)

// Webhook event types delivered by the remote service.
const (
	EventIssueCreated   = "jira:issue_created"
	EventIssueUpdated   = "jira:issue_updated"
	EventCommentCreated = "comment_created"
	EventCommentUpdated = "comment_updated"
)

// WebhookEvent is the inbound payload from the remote service.
type WebhookEvent struct {
	WebhookEvent string        `json:"webhookEvent"`
	User         *jira.User    `json:"user,omitempty"`
	Issue        *jira.Issue   `json:"issue,omitempty"`
	Comment      *jira.Comment `json:"comment,omitempty"`
}

// ChangedFile is one file from a version-control push notification.
type ChangedFile struct {
	Path       string `json:"path"`
	OldContent string `json:"oldContent"`
	NewContent string `json:"newContent"`
}

// GitPushPayload is the outbound change notification posted by the
// post-receive hook.
type GitPushPayload struct {
	ChangedFiles []ChangedFile `json:"changedFiles"`
}

// CreateRequest is a ticket creation payload. It is persisted verbatim
// in the offline queue for replay.
type CreateRequest struct {
	Title       string   `json:"title"`
	Type        string   `json:"type,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Description string   `json:"description,omitempty"`
	Components  []string `json:"components,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Creation outcome states.
const (
	StateCreated = "created"
	StateOffline = "offline"
)

// CreateResult reports the outcome of a creation attempt. Offline
// creation is a successful outcome, distinguished only by State.
type CreateResult struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// QueueItem is one durable offline-creation intent, keyed by temp id.
type QueueItem struct {
	TempID     string        `json:"tempId"`
	ProjectKey string        `json:"projectKey"`
	Payload    CreateRequest `json:"payload"`
	CreatedAt  time.Time     `json:"createdAt"`
}

var tempIDRe = regexp.MustCompile(`^[A-Z][A-Z0-9]*-TEMP-\d+$`)

// IsTempID reports whether id is a temporary offline-creation id of
// the form <PROJECT>-TEMP-<millis>.
func IsTempID(id string) bool {
	return tempIDRe.MatchString(id)
}

// ReconcileResult reports one reconciliation run.
type ReconcileResult struct {
	Promoted    int `json:"promoted"`
	StillQueued int `json:"stillQueued"`
}

// WorklogEntry is one immutable time-log record, stored append-only.
// Correcting a log is a new entry, never a mutation.
type WorklogEntry struct {
	IssueID   string    `json:"issue"`
	Author    string    `json:"author"`
	StartedAt time.Time `json:"started"`
	Seconds   int       `json:"seconds"`
	Comment   string    `json:"comment,omitempty"`
}

// WorklogRequest is the API payload for appending a worklog entry.
type WorklogRequest struct {
	Author  string `json:"author"`
	Time    string `json:"time"`
	Comment string `json:"comment,omitempty"`
	Started string `json:"started,omitempty"`
}

// TimesheetFilter restricts a timesheet query. At most one of Date,
// Week, or Month applies, checked in that order.
type TimesheetFilter struct {
	Date  string // YYYY-MM-DD
	Week  string // ISO week, e.g. 2026-W35
	Month string // YYYY-MM
}

// PushOutcome reports the outbound result for one changed file. Field
// groups fail independently: a rejected link reconciliation does not
// stop comment posting.
type PushOutcome struct {
	ID      string            `json:"id"`
	Applied []string          `json:"applied,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
	Skipped string            `json:"skipped,omitempty"`
}

// Fail records a field-group failure.
func (p *PushOutcome) Fail(group string, err error) {
	if p.Failed == nil {
		p.Failed = make(map[string]string)
	}
	p.Failed[group] = err.Error()
}
