package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"tract-sync/internal/common"
	"tract-sync/internal/gitrepo"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/jira"
	"tract-sync/internal/models"
	"tract-sync/internal/schema"
	"tract-sync/internal/ticket"
)

// Creator handles ticket creation with an offline fallback: when the
// remote refuses or is unreachable, the ticket is written locally
// under a temporary id and queued for later promotion.
type Creator struct {
	config *common.Config
	remote interfaces.Remote
	queue  interfaces.Queue
	mapper *schema.Mapper
	repo   *gitrepo.Repo
	docs   *docStore
	locks  *ticketLocks
	logger arbor.ILogger

	// tempMu serializes temp id allocation so two creations in the
	// same millisecond cannot collide.
	tempMu     sync.Mutex
	lastTempID int64
}

func NewCreator(config *common.Config, remote interfaces.Remote, queue interfaces.Queue, mapper *schema.Mapper, repo *gitrepo.Repo, docs *docStore, locks *ticketLocks, logger arbor.ILogger) *Creator {
	return &Creator{
		config: config,
		remote: remote,
		queue:  queue,
		mapper: mapper,
		repo:   repo,
		docs:   docs,
		locks:  locks,
		logger: logger,
	}
}

// CreateTicket attempts remote creation first and falls back to the
// offline queue on any remote failure. The fallback is a successful
// outcome for the caller, distinguished only by the returned state.
func (c *Creator) CreateTicket(ctx context.Context, projectKey string, req models.CreateRequest) (*models.CreateResult, error) {
	if req.Title == "" {
		return nil, common.NewMalformedDocumentError("ticket title is required")
	}

	key, err := c.remote.CreateIssue(ctx, c.createPayload(projectKey, req))
	if err != nil {
		c.logger.Warn().Err(err).Str("project", projectKey).Msg("Remote creation failed, queueing offline")
		return c.createOffline(projectKey, req)
	}

	if err := c.writeDocument(key, req, false); err != nil {
		// The remote record exists; the next inbound event rebuilds
		// the document, so report but do not fail the creation.
		c.logger.Warn().Err(err).Str("id", key).Msg("Failed to write document for created ticket")
	}

	c.logger.Info().Str("id", key).Str("project", projectKey).Msg("Created ticket on remote")
	return &models.CreateResult{ID: key, State: models.StateCreated}, nil
}

// createOffline allocates a temp id, writes the document with the
// offline marker, and persists the creation intent for replay. This
// path never fails the caller unless local durability itself fails.
func (c *Creator) createOffline(projectKey string, req models.CreateRequest) (*models.CreateResult, error) {
	tempID := c.allocTempID(projectKey)

	if err := c.writeDocument(tempID, req, true); err != nil {
		return nil, err
	}

	item := &models.QueueItem{
		TempID:     tempID,
		ProjectKey: projectKey,
		Payload:    req,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.queue.Put(item); err != nil {
		return nil, err
	}

	c.logger.Info().Str("id", tempID).Str("project", projectKey).Msg("Created ticket offline")
	return &models.CreateResult{ID: tempID, State: models.StateOffline}, nil
}

// allocTempID returns <PROJECT>-TEMP-<millis>, strictly increasing
// within the process.
func (c *Creator) allocTempID(projectKey string) string {
	c.tempMu.Lock()
	defer c.tempMu.Unlock()

	millis := time.Now().UnixMilli()
	if millis <= c.lastTempID {
		millis = c.lastTempID + 1
	}
	c.lastTempID = millis
	return fmt.Sprintf("%s-TEMP-%d", projectKey, millis)
}

func (c *Creator) writeDocument(id string, req models.CreateRequest, offline bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	t := &ticket.Ticket{
		ID:          id,
		Title:       req.Title,
		Type:        c.mapper.NormalizeType(req.Type),
		Status:      "open",
		Priority:    c.mapper.NormalizePriority(req.Priority),
		Assignee:    req.Assignee,
		Reporter:    c.config.Identity.User,
		Labels:      req.Labels,
		Components:  req.Components,
		Created:     now,
		Updated:     now,
		Offline:     offline,
		Description: req.Description,
	}

	if err := c.docs.Write(id, ticket.Serialize(t)); err != nil {
		return common.NewStorageError("write_failed", "failed to write ticket document").
			WithCause(err).
			WithContext("id", id)
	}

	message := fmt.Sprintf("Create %s: %s\n\n%s", id, req.Title, syncMarker)
	if _, err := c.repo.AddAndCommit(message, c.docs.RelPath(c.repo.Root(), id)); err != nil {
		return err
	}
	return nil
}

// Reconcile retries remote creation for every queued item. A failing
// item stays queued and never blocks promotion of the others; running
// it repeatedly is safe.
//
// Links in other documents that reference a temp id are not rewritten
// at promotion. The temp document itself is renamed in one commit;
// stale link targets surface on the next outbound pass for the
// referencing ticket.
func (c *Creator) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	items, err := c.queue.List()
	if err != nil {
		return nil, err
	}

	result := &models.ReconcileResult{}
	for _, item := range items {
		if err := c.promote(ctx, item); err != nil {
			c.logger.Warn().Err(err).Str("tempId", item.TempID).Msg("Queue item not promoted")
			result.StillQueued++
			continue
		}
		result.Promoted++
	}

	if len(items) > 0 {
		c.logger.Info().
			Int("promoted", result.Promoted).
			Int("stillQueued", result.StillQueued).
			Msg("Offline queue reconciled")
	}
	return result, nil
}

// promote creates the remote record for one queued item and renames
// the local document to the real key in a single commit. The lock is
// taken before the remote call and the queue is re-checked under it:
// overlapping reconciliations list the same items, and each temp id
// must be created remotely exactly once.
func (c *Creator) promote(ctx context.Context, item *models.QueueItem) error {
	unlock := c.locks.Lock(item.TempID)
	defer unlock()

	pending, err := c.queue.Get(item.TempID)
	if err != nil {
		return err
	}
	if pending == nil {
		c.logger.Debug().Str("tempId", item.TempID).Msg("Queue item already promoted")
		return nil
	}

	key, err := c.remote.CreateIssue(ctx, c.createPayload(item.ProjectKey, item.Payload))
	if err != nil {
		return err
	}

	if c.docs.Exists(item.TempID) {
		content, err := c.docs.Read(item.TempID)
		if err != nil {
			return common.NewStorageError("read_failed", "failed to read offline document").
				WithCause(err).
				WithContext("tempId", item.TempID)
		}

		t, err := ticket.Parse(content)
		if err != nil {
			return err
		}
		t.ID = key
		t.Offline = false
		t.Updated = time.Now().UTC().Format(time.RFC3339)

		if err := c.docs.Write(key, ticket.Serialize(t)); err != nil {
			return common.NewStorageError("write_failed", "failed to write promoted document").
				WithCause(err).
				WithContext("id", key)
		}
		if err := c.docs.Remove(item.TempID); err != nil {
			c.logger.Warn().Err(err).Str("tempId", item.TempID).Msg("Failed to remove promoted temp document")
		}

		message := fmt.Sprintf("Promote %s to %s from offline queue\n\n%s", item.TempID, key, syncMarker)
		root := c.repo.Root()
		if _, err := c.repo.AddAndCommit(message,
			c.docs.RelPath(root, item.TempID), c.docs.RelPath(root, key)); err != nil {
			return err
		}
	}

	if err := c.queue.Delete(item.TempID); err != nil {
		return err
	}

	c.logger.Info().Str("tempId", item.TempID).Str("id", key).Msg("Promoted offline ticket")
	return nil
}

func (c *Creator) createPayload(projectKey string, req models.CreateRequest) jira.CreatePayload {
	fields := jira.CreateFields{
		Project:     jira.ProjectRef{Key: projectKey},
		Summary:     req.Title,
		IssueType:   jira.Named{Name: schema.RemoteName(c.mapper.NormalizeType(req.Type))},
		Description: req.Description,
		Labels:      req.Labels,
	}
	if req.Priority != "" {
		fields.Priority = &jira.Named{Name: schema.RemoteName(c.mapper.NormalizePriority(req.Priority))}
	}
	if req.Assignee != "" {
		fields.Assignee = &jira.User{Name: req.Assignee}
	}
	for _, comp := range req.Components {
		fields.Components = append(fields.Components, jira.Named{Name: comp})
	}
	return jira.CreatePayload{Fields: fields}
}
