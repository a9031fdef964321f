package interfaces

import (
	"context"

	"tract-sync/internal/jira"
	"tract-sync/internal/models"
)

// Remote is the surface of the remote ticketing API the sync engine
// uses. Implemented by jira.Client; test doubles implement it too.
type Remote interface {
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
	CreateIssue(ctx context.Context, payload jira.CreatePayload) (string, error)
	UpdateIssue(ctx context.Context, key string, fields map[string]any) error
	GetTransitions(ctx context.Context, key string) ([]jira.TransitionInfo, error)
	DoTransition(ctx context.Context, key, transitionID string) error
	AddComment(ctx context.Context, key, body string) (string, error)
	CreateLink(ctx context.Context, typeName, inwardKey, outwardKey string) error
	DeleteLink(ctx context.Context, linkID string) error
	AddWorklog(ctx context.Context, key string, payload jira.WorklogPayload) error
	SearchIssues(ctx context.Context, jql string, max int) ([]jira.Issue, error)
}

// Queue is the durable offline-creation queue, one record per temp id.
type Queue interface {
	Put(item *models.QueueItem) error
	Get(tempID string) (*models.QueueItem, error)
	Delete(tempID string) error
	List() ([]*models.QueueItem, error)
	Len() (int, error)
}

// Ledger records dedup keys for writes the engine itself performed
// against the remote, so the loop-guard can recognize them when they
// come back as inbound events.
type Ledger interface {
	MarkOwnComment(commentID string) error
	IsOwnComment(commentID string) bool
}

// Store combines the bbolt-backed persistence surfaces.
type Store interface {
	Queue
	Ledger
	Close() error
}

// Inbound applies remote webhook events to the document store.
type Inbound interface {
	HandleWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	Backfill(ctx context.Context, jql string) (int, error)
}

// Outbound pushes local document changes to the remote service.
type Outbound interface {
	ProcessPush(ctx context.Context, payload *models.GitPushPayload) []models.PushOutcome
}

// Creator handles ticket creation with the offline-queue fallback and
// queue reconciliation.
type Creator interface {
	CreateTicket(ctx context.Context, projectKey string, req models.CreateRequest) (*models.CreateResult, error)
	Reconcile(ctx context.Context) (*models.ReconcileResult, error)
}

// Worklogs records and reports append-only time-log entries.
type Worklogs interface {
	Append(ctx context.Context, issueID string, req models.WorklogRequest) (*models.WorklogEntry, error)
	Worklogs(issueID string) ([]models.WorklogEntry, error)
	Timesheet(author string, filter models.TimesheetFilter) ([]models.WorklogEntry, int, error)
	FormatTotal(seconds int) string
	Flush()
}

// WebService is a startable HTTP front end.
type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}
