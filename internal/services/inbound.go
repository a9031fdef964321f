package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"tract-sync/internal/common"
	"tract-sync/internal/convert"
	"tract-sync/internal/gitrepo"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/jira"
	"tract-sync/internal/models"
	"tract-sync/internal/schema"
	"tract-sync/internal/ticket"
)

// conflictPolicy names the strategy for applying a remote snapshot
// over a local document.
type conflictPolicy string

// PolicyRemoteWins overwrites the whole local document with the remote
// state. Local edits that were never pushed are lost; the git history
// keeps the previous revision.
const PolicyRemoteWins conflictPolicy = "remote-wins"

// InboundSync applies remote webhook events to the local document
// store and commits the result under the engine identity.
type InboundSync struct {
	config *common.Config
	remote interfaces.Remote
	ledger interfaces.Ledger
	mapper *schema.Mapper
	repo   *gitrepo.Repo
	docs   *docStore
	locks  *ticketLocks
	policy conflictPolicy
	logger arbor.ILogger
}

func NewInboundSync(config *common.Config, remote interfaces.Remote, ledger interfaces.Ledger, mapper *schema.Mapper, repo *gitrepo.Repo, docs *docStore, locks *ticketLocks, logger arbor.ILogger) *InboundSync {
	return &InboundSync{
		config: config,
		remote: remote,
		ledger: ledger,
		mapper: mapper,
		repo:   repo,
		docs:   docs,
		locks:  locks,
		policy: PolicyRemoteWins,
		logger: logger,
	}
}

// HandleWebhookEvent dispatches one remote event. Events the engine
// itself caused are dropped before any other work.
func (i *InboundSync) HandleWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	if i.isLoopback(event) {
		i.logger.Debug().Str("event", event.WebhookEvent).Msg("Dropping loopback event")
		return nil
	}

	switch event.WebhookEvent {
	case models.EventIssueCreated, models.EventIssueUpdated:
		if event.Issue == nil {
			return common.NewInternalError("missing_issue", "issue event without issue payload")
		}
		return i.applyIssue(ctx, event.Issue)

	case models.EventCommentCreated, models.EventCommentUpdated:
		// Comment events carry only the comment; re-fetch the full
		// issue so the comments section is rebuilt in order.
		if event.Issue == nil {
			return common.NewInternalError("missing_issue", "comment event without issue payload")
		}
		issue, err := i.remote.GetIssue(ctx, event.Issue.Key)
		if err != nil {
			return err
		}
		return i.applyIssue(ctx, issue)

	default:
		i.logger.Debug().Str("event", event.WebhookEvent).Msg("Ignoring event type")
		return nil
	}
}

// Backfill imports every issue matching the query, applying each
// remote snapshot the same way a webhook event would. Issues that fail
// to apply are logged and skipped; the count of applied issues is
// returned.
func (i *InboundSync) Backfill(ctx context.Context, jql string) (int, error) {
	issues, err := i.remote.SearchIssues(ctx, jql, 0)
	if err != nil {
		return 0, err
	}

	applied := 0
	for idx := range issues {
		if err := i.applyIssue(ctx, &issues[idx]); err != nil {
			i.logger.Warn().Err(err).Str("id", issues[idx].Key).Msg("Backfill skipped issue")
			continue
		}
		applied++
	}

	i.logger.Info().
		Int("matched", len(issues)).
		Int("applied", applied).
		Msg("Backfill finished")
	return applied, nil
}

// isLoopback recognizes events the engine caused itself: the acting
// user is one of the engine's identities, the comment id is in the
// sync ledger, or the comment carries the legacy marker token. The
// engine acts under two names, the git commit identity and the remote
// API account, and echo events carry the latter.
func (i *InboundSync) isLoopback(event *models.WebhookEvent) bool {
	if actor := event.User.Ident(); actor != "" {
		if actor == i.config.Identity.User || actor == i.config.Jira.Username {
			return true
		}
	}
	if event.Comment != nil {
		if event.Comment.ID != "" && i.ledger.IsOwnComment(event.Comment.ID) {
			return true
		}
		if strings.Contains(event.Comment.Body, syncMarker) {
			return true
		}
	}
	return false
}

// applyIssue writes the remote snapshot over the local document and
// commits it. PolicyRemoteWins is the only policy: the whole document
// is replaced, never merged.
func (i *InboundSync) applyIssue(ctx context.Context, issue *jira.Issue) error {
	unlock := i.locks.Lock(issue.Key)
	defer unlock()

	t := i.buildTicket(issue)
	content := ticket.Serialize(t)

	if err := i.docs.Write(t.ID, content); err != nil {
		return common.NewStorageError("write_failed", "failed to write ticket document").
			WithCause(err).
			WithContext("id", t.ID)
	}

	message := fmt.Sprintf("Sync %s from Jira\n\n%s", t.ID, syncMarker)
	committed, err := i.repo.AddAndCommit(message, i.docs.RelPath(i.repo.Root(), t.ID))
	if err != nil {
		return err
	}

	i.logger.Info().
		Str("id", t.ID).
		Bool("committed", committed).
		Msg("Applied remote snapshot to document store")
	return nil
}

// buildTicket maps a remote record onto the local schema, normalizing
// every enumerated field and converting rich text to markdown.
func (i *InboundSync) buildTicket(issue *jira.Issue) *ticket.Ticket {
	f := issue.Fields

	t := &ticket.Ticket{
		ID:          issue.Key,
		Title:       f.Summary,
		Type:        i.mapper.NormalizeType(f.IssueType.Name),
		Status:      i.mapper.NormalizeStatus(f.Status.Name),
		Priority:    i.mapper.NormalizePriority(priorityName(f.Priority)),
		Assignee:    f.Assignee.Ident(),
		Reporter:    f.Reporter.Ident(),
		Labels:      f.Labels,
		Created:     f.Created,
		Updated:     f.Updated,
		Description: convert.ToMarkdown(f.Description),
	}

	for _, c := range f.Components {
		t.Components = append(t.Components, c.Name)
	}
	if len(f.FixVersions) > 0 {
		t.FixVersion = f.FixVersions[0].Name
	}
	if len(f.Versions) > 0 {
		t.AffectedVersion = f.Versions[0].Name
	}
	if f.Resolution != nil {
		t.Resolution = f.Resolution.Name
		t.Resolved = f.ResolutionDate
	}
	if f.Parent != nil {
		t.Parent = f.Parent.Key
	}
	if f.TimeTracking != nil {
		t.Time = ticket.TimeTracking{
			EstimateSeconds:  f.TimeTracking.OriginalEstimateSeconds,
			LoggedSeconds:    f.TimeTracking.TimeSpentSeconds,
			RemainingSeconds: f.TimeTracking.RemainingEstimateSeconds,
		}
	}

	for _, l := range f.IssueLinks {
		switch {
		case l.OutwardIssue != nil:
			t.Links = append(t.Links, ticket.Link{
				Relation: string(schema.CanonicalRelation(l.Type.Name, false)),
				TargetID: l.OutwardIssue.Key,
			})
		case l.InwardIssue != nil:
			t.Links = append(t.Links, ticket.Link{
				Relation: string(schema.CanonicalRelation(l.Type.Name, true)),
				TargetID: l.InwardIssue.Key,
			})
		}
	}

	if f.Comment != nil {
		for _, c := range f.Comment.Comments {
			author := c.Author.Ident()
			if author == "" {
				author = "unknown"
			}
			t.Comments = append(t.Comments, ticket.Comment{
				Author:    author,
				Timestamp: c.Created,
				Body:      convert.ToMarkdown(c.Body),
			})
		}
	}

	return t
}

func priorityName(p *jira.Named) string {
	if p == nil {
		return ""
	}
	return p.Name
}
