package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/ternarybob/arbor"

	"tract-sync/internal/common"
	"tract-sync/internal/convert"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/models"
	"tract-sync/internal/schema"
	"tract-sync/internal/ticket"
)

// syncMarker tags every write the engine performs so older deployments
// without a comment ledger can still recognize echoed events.
const syncMarker = "[tract-sync]"

// OutboundSync pushes local document changes to the remote service.
type OutboundSync struct {
	config *common.Config
	remote interfaces.Remote
	ledger interfaces.Ledger
	mapper *schema.Mapper
	locks  *ticketLocks
	logger arbor.ILogger
}

func NewOutboundSync(config *common.Config, remote interfaces.Remote, ledger interfaces.Ledger, mapper *schema.Mapper, locks *ticketLocks, logger arbor.ILogger) *OutboundSync {
	return &OutboundSync{
		config: config,
		remote: remote,
		ledger: ledger,
		mapper: mapper,
		locks:  locks,
		logger: logger,
	}
}

// ProcessPush handles a post-receive notification: every changed
// ticket document is diffed against its previous revision and the
// delta is applied to the remote.
func (o *OutboundSync) ProcessPush(ctx context.Context, payload *models.GitPushPayload) []models.PushOutcome {
	var outcomes []models.PushOutcome
	for _, file := range payload.ChangedFiles {
		if !o.isTicketDocument(file.Path) {
			continue
		}
		outcomes = append(outcomes, o.ProcessChangedFile(ctx, file))
	}
	return outcomes
}

func (o *OutboundSync) isTicketDocument(filePath string) bool {
	dir := strings.Trim(o.config.Repo.IssuesDir, "/")
	clean := path.Clean(strings.ReplaceAll(filePath, "\\", "/"))
	return strings.HasPrefix(clean, dir+"/") && strings.HasSuffix(clean, ".md")
}

// ProcessChangedFile diffs one document revision pair and applies the
// change-set. A file that fails to parse is reported and skipped; it
// never aborts the rest of the push.
func (o *OutboundSync) ProcessChangedFile(ctx context.Context, file models.ChangedFile) models.PushOutcome {
	// A file with no previous revision diffs against itself: creation
	// flows through the offline queue, not the push path.
	oldContent := file.OldContent
	if strings.TrimSpace(oldContent) == "" {
		oldContent = file.NewContent
	}

	newTicket, err := ticket.Parse([]byte(file.NewContent))
	if err != nil {
		o.logger.Warn().Err(err).Str("path", file.Path).Msg("Skipping malformed ticket document")
		return models.PushOutcome{ID: file.Path, Failed: map[string]string{"document": err.Error()}}
	}

	oldTicket, err := ticket.Parse([]byte(oldContent))
	if err != nil {
		o.logger.Warn().Err(err).Str("path", file.Path).Msg("Previous revision is malformed")
		return models.PushOutcome{ID: newTicket.ID, Failed: map[string]string{"document": err.Error()}}
	}

	outcome := models.PushOutcome{ID: newTicket.ID}

	if models.IsTempID(newTicket.ID) {
		outcome.Skipped = "offline ticket pending promotion"
		return outcome
	}

	changes := ticket.Diff(oldTicket, newTicket)
	if changes.Empty() {
		outcome.Skipped = "no changes"
		return outcome
	}

	o.logger.Info().
		Str("id", newTicket.ID).
		Str("fields", strings.Join(changes.Fields(), ",")).
		Msg("Pushing local changes to remote")

	unlock := o.locks.Lock(newTicket.ID)
	defer unlock()

	o.applyChanges(ctx, newTicket, changes, &outcome)
	return outcome
}

func (o *OutboundSync) applyChanges(ctx context.Context, t *ticket.Ticket, changes ticket.ChangeSet, outcome *models.PushOutcome) {
	if changes.Has(ticket.FieldStatus) {
		if err := o.transition(ctx, t.ID, t.Status); err != nil {
			outcome.Fail("status", err)
		} else {
			outcome.Applied = append(outcome.Applied, "status")
		}
	}

	if fields := o.fieldUpdates(changes); len(fields) > 0 {
		if err := o.remote.UpdateIssue(ctx, t.ID, fields); err != nil {
			outcome.Fail("fields", err)
		} else {
			outcome.Applied = append(outcome.Applied, "fields")
		}
	}

	if changes.Has(ticket.FieldLinks) {
		if err := o.reconcileLinks(ctx, t.ID, t.Links); err != nil {
			outcome.Fail("links", err)
		} else {
			outcome.Applied = append(outcome.Applied, "links")
		}
	}

	if comments := changes.NewComments(); len(comments) > 0 {
		if err := o.postComments(ctx, t.ID, comments); err != nil {
			outcome.Fail("comments", err)
		} else {
			outcome.Applied = append(outcome.Applied, "comments")
		}
	}
}

// transition resolves the workflow transition whose destination matches
// the target status. The remote workflow decides reachability; when no
// listed transition lands on the target the status change is dropped
// with an error while every other field group still applies.
func (o *OutboundSync) transition(ctx context.Context, key, targetStatus string) error {
	transitions, err := o.remote.GetTransitions(ctx, key)
	if err != nil {
		return err
	}

	target := o.mapper.NormalizeStatus(targetStatus)
	for _, t := range transitions {
		if strings.EqualFold(t.To.Name, targetStatus) || o.mapper.NormalizeStatus(t.To.Name) == target {
			return o.remote.DoTransition(ctx, key, t.ID)
		}
	}

	available := make([]string, 0, len(transitions))
	for _, t := range transitions {
		available = append(available, t.To.Name)
	}
	return common.NewNoTransitionPathError(
		fmt.Sprintf("no transition reaches status %q", targetStatus)).
		WithContext("issue", key).
		WithContext("available", strings.Join(available, ", "))
}

// fieldUpdates coalesces every plain field change into one update call.
func (o *OutboundSync) fieldUpdates(changes ticket.ChangeSet) map[string]any {
	fields := make(map[string]any)

	if v, ok := changes[ticket.FieldTitle]; ok {
		fields["summary"] = v.(string)
	}
	if v, ok := changes[ticket.FieldType]; ok {
		fields["issuetype"] = map[string]string{"name": schema.RemoteName(v.(string))}
	}
	if v, ok := changes[ticket.FieldPriority]; ok {
		fields["priority"] = map[string]string{"name": schema.RemoteName(v.(string))}
	}
	if v, ok := changes[ticket.FieldAssignee]; ok {
		if name := v.(string); name != "" {
			fields["assignee"] = map[string]string{"name": name}
		} else {
			fields["assignee"] = nil
		}
	}
	if v, ok := changes[ticket.FieldLabels]; ok {
		fields["labels"] = v.([]string)
	}
	if v, ok := changes[ticket.FieldComponents]; ok {
		fields["components"] = namedList(v.([]string))
	}
	if v, ok := changes[ticket.FieldFixVersion]; ok {
		fields["fixVersions"] = namedList(versionList(v.(string)))
	}
	if v, ok := changes[ticket.FieldAffectedVersion]; ok {
		fields["versions"] = namedList(versionList(v.(string)))
	}
	if v, ok := changes[ticket.FieldParent]; ok {
		if key := v.(string); key != "" {
			fields["parent"] = map[string]string{"key": key}
		}
	}
	if v, ok := changes[ticket.FieldDescription]; ok {
		fields["description"] = convert.ToWiki(v.(string))
	}
	if v, ok := changes[ticket.FieldTime]; ok {
		tt := v.(ticket.TimeTracking)
		timetracking := make(map[string]any)
		if tt.EstimateSeconds > 0 {
			timetracking["originalEstimate"] = schema.FormatSeconds(tt.EstimateSeconds)
		}
		if tt.RemainingSeconds > 0 {
			timetracking["remainingEstimate"] = schema.FormatSeconds(tt.RemainingSeconds)
		}
		if len(timetracking) > 0 {
			fields["timetracking"] = timetracking
		}
	}

	return fields
}

func namedList(names []string) []map[string]string {
	out := make([]map[string]string, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]string{"name": n})
	}
	return out
}

func versionList(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

// remoteLinkRecord is one existing remote link in canonical form.
type remoteLinkRecord struct {
	linkID   string
	relation schema.Relation
	targetID string
}

// reconcileLinks converges the remote link set onto the document's
// link list by set difference: links missing remotely are added, links
// absent locally are removed. Links added remotely between fetch and
// write survive as long as the document also carries them.
func (o *OutboundSync) reconcileLinks(ctx context.Context, key string, desired []ticket.Link) error {
	issue, err := o.remote.GetIssue(ctx, key)
	if err != nil {
		return err
	}

	existing := make([]remoteLinkRecord, 0, len(issue.Fields.IssueLinks))
	for _, l := range issue.Fields.IssueLinks {
		switch {
		case l.OutwardIssue != nil:
			existing = append(existing, remoteLinkRecord{
				linkID:   l.ID,
				relation: schema.CanonicalRelation(l.Type.Name, false),
				targetID: l.OutwardIssue.Key,
			})
		case l.InwardIssue != nil:
			existing = append(existing, remoteLinkRecord{
				linkID:   l.ID,
				relation: schema.CanonicalRelation(l.Type.Name, true),
				targetID: l.InwardIssue.Key,
			})
		}
	}

	desiredSet := make(map[string]bool, len(desired))
	for _, d := range desired {
		desiredSet[linkKey(schema.Relation(d.Relation), d.TargetID)] = true
	}
	existingSet := make(map[string]bool, len(existing))
	for _, e := range existing {
		existingSet[linkKey(e.relation, e.targetID)] = true
	}

	var firstErr error

	for _, e := range existing {
		if desiredSet[linkKey(e.relation, e.targetID)] {
			continue
		}
		if err := o.remote.DeleteLink(ctx, e.linkID); err != nil {
			o.logger.Warn().Err(err).Str("issue", key).Str("target", e.targetID).Msg("Failed to delete remote link")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	for _, d := range desired {
		if existingSet[linkKey(schema.Relation(d.Relation), d.TargetID)] {
			continue
		}
		typeName, inward := schema.MapRelation(schema.Relation(d.Relation))
		inwardKey, outwardKey := key, d.TargetID
		if inward {
			inwardKey, outwardKey = d.TargetID, key
		}
		if err := o.remote.CreateLink(ctx, typeName, inwardKey, outwardKey); err != nil {
			o.logger.Warn().Err(err).Str("issue", key).Str("target", d.TargetID).Msg("Failed to create remote link")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func linkKey(rel schema.Relation, target string) string {
	return string(rel) + "\x00" + target
}

// postComments appends each new comment remotely, prefixing the local
// author when it differs from the engine identity, and records the
// returned comment id so the webhook echo is recognized as our own.
func (o *OutboundSync) postComments(ctx context.Context, key string, comments []ticket.Comment) error {
	var firstErr error
	for _, c := range comments {
		body := convert.ToWiki(c.Body)
		if c.Author != "" && c.Author != o.config.Identity.User {
			body = fmt.Sprintf("[%s]\n\n%s", c.Author, body)
		}

		commentID, err := o.remote.AddComment(ctx, key, body)
		if err != nil {
			o.logger.Warn().Err(err).Str("issue", key).Str("author", c.Author).Msg("Failed to post comment")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := o.ledger.MarkOwnComment(commentID); err != nil {
			o.logger.Warn().Err(err).Str("comment", commentID).Msg("Failed to record comment in sync ledger")
		}
	}
	return firstErr
}
