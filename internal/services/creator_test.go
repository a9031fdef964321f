package services

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"tract-sync/internal/common"
	"tract-sync/internal/models"
	"tract-sync/internal/ticket"
)

func newTestCreator(t *testing.T, remote *fakeRemote, store *fakeStore) (*Creator, *common.Config) {
	t.Helper()
	cfg := testConfig(initGitRepo(t))
	docs := testDocStore(t, cfg)
	repo := newTestRepo(cfg)
	c := NewCreator(cfg, remote, store, testMapper(t), repo, docs, newTicketLocks(), common.GetLogger())
	return c, cfg
}

func TestCreateTicketRemote(t *testing.T) {
	remote := newFakeRemote()
	remote.createKeys = []string{"PROJ-10"}
	store := newFakeStore()
	c, cfg := newTestCreator(t, remote, store)

	result, err := c.CreateTicket(context.Background(), "PROJ", models.CreateRequest{
		Title:    "Add rate limiting",
		Type:     "story",
		Priority: "high",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if result.State != models.StateCreated || result.ID != "PROJ-10" {
		t.Fatalf("result = %+v", result)
	}

	content, err := c.docs.Read("PROJ-10")
	if err != nil {
		t.Fatalf("document missing: %v", err)
	}
	parsed, err := ticket.Parse(content)
	if err != nil {
		t.Fatalf("document does not parse: %v", err)
	}
	if parsed.Offline {
		t.Errorf("ticket marked offline after remote creation")
	}
	if parsed.Type != "story" || parsed.Status != "open" {
		t.Errorf("normalized fields: type=%q status=%q", parsed.Type, parsed.Status)
	}
	if parsed.Reporter != cfg.Identity.User {
		t.Errorf("reporter = %q, want %q", parsed.Reporter, cfg.Identity.User)
	}

	if n, _ := store.Len(); n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
	if !strings.Contains(gitLog(t, cfg.Repo.Path), "Create PROJ-10: Add rate limiting") {
		t.Errorf("creation commit missing:\n%s", gitLog(t, cfg.Repo.Path))
	}
}

func TestCreateTicketOfflineFallback(t *testing.T) {
	remote := newFakeRemote()
	remote.createErr = common.NewRemoteUnavailableError("connection refused")
	store := newFakeStore()
	c, _ := newTestCreator(t, remote, store)

	result, err := c.CreateTicket(context.Background(), "PROJ", models.CreateRequest{Title: "Offline work"})
	if err != nil {
		t.Fatalf("offline fallback must not fail the caller: %v", err)
	}
	if result.State != models.StateOffline {
		t.Fatalf("state = %q, want %q", result.State, models.StateOffline)
	}
	if !models.IsTempID(result.ID) {
		t.Fatalf("id = %q, not a temp id", result.ID)
	}

	content, err := c.docs.Read(result.ID)
	if err != nil {
		t.Fatalf("offline document missing: %v", err)
	}
	parsed, err := ticket.Parse(content)
	if err != nil {
		t.Fatalf("offline document does not parse: %v", err)
	}
	if !parsed.Offline {
		t.Errorf("offline marker not set")
	}

	item, _ := store.Get(result.ID)
	if item == nil {
		t.Fatalf("queue item missing for %s", result.ID)
	}
	if item.Payload.Title != "Offline work" || item.ProjectKey != "PROJ" {
		t.Errorf("queue item = %+v", item)
	}
}

func TestCreateTicketRejectedFallsBackToo(t *testing.T) {
	remote := newFakeRemote()
	remote.createErr = common.NewRemoteRejectedError("field 'customfield_1' is required")
	c, _ := newTestCreator(t, remote, newFakeStore())

	result, err := c.CreateTicket(context.Background(), "PROJ", models.CreateRequest{Title: "Rejected"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if result.State != models.StateOffline {
		t.Errorf("state = %q, want offline on rejection as well", result.State)
	}
}

func TestCreateTicketRequiresTitle(t *testing.T) {
	c, _ := newTestCreator(t, newFakeRemote(), newFakeStore())

	_, err := c.CreateTicket(context.Background(), "PROJ", models.CreateRequest{})
	if !common.IsMalformedDocument(err) {
		t.Errorf("err = %v, want malformed document", err)
	}
}

func TestAllocTempIDMonotonic(t *testing.T) {
	c, _ := newTestCreator(t, newFakeRemote(), newFakeStore())

	var prev int64
	for i := 0; i < 50; i++ {
		id := c.allocTempID("PROJ")
		if !models.IsTempID(id) {
			t.Fatalf("id = %q, not a temp id", id)
		}
		millis, err := strconv.ParseInt(strings.TrimPrefix(id, "PROJ-TEMP-"), 10, 64)
		if err != nil {
			t.Fatalf("id = %q: %v", id, err)
		}
		if millis <= prev {
			t.Fatalf("ids not strictly increasing: %d then %d", prev, millis)
		}
		prev = millis
	}
}

func TestReconcilePromotes(t *testing.T) {
	remote := newFakeRemote()
	remote.createErr = common.NewRemoteUnavailableError("connection refused")
	store := newFakeStore()
	c, cfg := newTestCreator(t, remote, store)

	result, err := c.CreateTicket(context.Background(), "PROJ", models.CreateRequest{Title: "Queued"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	tempID := result.ID

	remote.createErr = nil
	remote.createKeys = []string{"PROJ-7"}

	rec, err := c.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec.Promoted != 1 || rec.StillQueued != 0 {
		t.Fatalf("reconcile = %+v", rec)
	}

	if c.docs.Exists(tempID) {
		t.Errorf("temp document still present after promotion")
	}
	content, err := c.docs.Read("PROJ-7")
	if err != nil {
		t.Fatalf("promoted document missing: %v", err)
	}
	parsed, err := ticket.Parse(content)
	if err != nil {
		t.Fatalf("promoted document does not parse: %v", err)
	}
	if parsed.ID != "PROJ-7" || parsed.Offline {
		t.Errorf("promoted ticket = id %q offline %v", parsed.ID, parsed.Offline)
	}

	if n, _ := store.Len(); n != 0 {
		t.Errorf("queue length = %d after promotion", n)
	}
	if !strings.Contains(gitLog(t, cfg.Repo.Path), "Promote "+tempID+" to PROJ-7") {
		t.Errorf("promotion commit missing:\n%s", gitLog(t, cfg.Repo.Path))
	}
}

func TestPromoteAlreadyPromotedItemIsNoop(t *testing.T) {
	remote := newFakeRemote()
	remote.createErr = common.NewRemoteUnavailableError("connection refused")
	store := newFakeStore()
	c, _ := newTestCreator(t, remote, store)

	result, err := c.CreateTicket(context.Background(), "PROJ", models.CreateRequest{Title: "Queued"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	stale, err := store.Get(result.ID)
	if err != nil || stale == nil {
		t.Fatalf("queue item missing: %v", err)
	}

	remote.createErr = nil
	remote.createKeys = []string{"PROJ-7"}
	if _, err := c.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(remote.created) != 1 {
		t.Fatalf("created %d issues, want 1", len(remote.created))
	}

	// A second promotion of the same item, as two overlapping
	// reconciliations would attempt, must not create a second issue.
	if err := c.promote(context.Background(), stale); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if len(remote.created) != 1 {
		t.Errorf("created %d issues after repeat promotion, want 1", len(remote.created))
	}
}

func TestReconcileKeepsFailingItems(t *testing.T) {
	remote := newFakeRemote()
	remote.createErr = common.NewRemoteUnavailableError("connection refused")
	store := newFakeStore()
	c, _ := newTestCreator(t, remote, store)

	if _, err := c.CreateTicket(context.Background(), "PROJ", models.CreateRequest{Title: "Stuck"}); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	rec, err := c.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec.Promoted != 0 || rec.StillQueued != 1 {
		t.Fatalf("reconcile = %+v", rec)
	}
	if n, _ := store.Len(); n != 1 {
		t.Errorf("queue length = %d, want 1", n)
	}
}
