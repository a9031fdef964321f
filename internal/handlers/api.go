package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tract-sync/internal/common"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/models"

	"github.com/ternarybob/arbor"
)

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config    *common.Config
	store     interfaces.Store
	inbound   interfaces.Inbound
	outbound  interfaces.Outbound
	creator   interfaces.Creator
	worklogs  interfaces.Worklogs
	wsHub     *WebSocketHub
	logger    arbor.ILogger
	startTime time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
}

// StatusResponse represents the sync engine status response
type StatusResponse struct {
	Running     bool    `json:"running"`
	Uptime      float64 `json:"uptime_seconds"`
	QueuedItems int     `json:"queued_items"`
	JiraURL     string  `json:"jira_url"`
	RepoPath    string  `json:"repo_path"`
}

// ConfigResponse represents the sanitized configuration response.
// Credentials are never included.
type ConfigResponse struct {
	Sync    *common.SyncConfig    `json:"sync"`
	Repo    *common.RepoConfig    `json:"repo"`
	Storage *common.StorageConfig `json:"storage"`
	Logging *common.LoggingConfig `json:"logging"`
}

// TimesheetResponse rolls up a user's worklog entries.
type TimesheetResponse struct {
	Author       string                `json:"author"`
	Entries      []models.WorklogEntry `json:"entries"`
	TotalSeconds int                   `json:"total_seconds"`
	Total        string                `json:"total"`
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(config *common.Config, store interfaces.Store, inbound interfaces.Inbound, outbound interfaces.Outbound, creator interfaces.Creator, worklogs interfaces.Worklogs, wsHub *WebSocketHub, logger arbor.ILogger) *APIHandlers {
	return &APIHandlers{
		config:    config,
		store:     store,
		inbound:   inbound,
		outbound:  outbound,
		creator:   creator,
		worklogs:  worklogs,
		wsHub:     wsHub,
		logger:    logger,
		startTime: time.Now(),
	}
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Service:   h.config.Sync.Name,
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}
	h.writeJSON(w, http.StatusOK, health)
}

// StatusHandler returns sync engine status and queue depth
func (h *APIHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	queued, err := h.store.Len()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to read queue length")
	}

	status := StatusResponse{
		Running:     true,
		Uptime:      time.Since(h.startTime).Seconds(),
		QueuedItems: queued,
		JiraURL:     h.config.Jira.URL,
		RepoPath:    h.config.Repo.Path,
	}
	h.writeJSON(w, http.StatusOK, status)
}

// ConfigHandler returns system configuration without credentials
func (h *APIHandlers) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	syncCfg := h.config.Sync
	syncCfg.WebhookSecret = ""

	config := ConfigResponse{
		Sync:    &syncCfg,
		Repo:    &h.config.Repo,
		Storage: &h.config.Storage,
		Logging: &h.config.Logging,
	}
	h.writeJSON(w, http.StatusOK, config)
}

// JiraWebhookHandler receives remote change events
func (h *APIHandlers) JiraWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if secret := h.config.Sync.WebhookSecret; secret != "" {
		if r.Header.Get("X-Jira-Webhook-Signature") != secret {
			h.writeError(w, http.StatusUnauthorized, "invalid webhook signature")
			return
		}
	}

	var event models.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if err := h.inbound.HandleWebhookEvent(r.Context(), &event); err != nil {
		h.logger.Error().Err(err).Str("event", event.WebhookEvent).Msg("Webhook processing failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.wsHub.SendSyncEvent("inbound", map[string]string{"event": event.WebhookEvent})
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GitWebhookHandler receives post-receive change notifications
func (h *APIHandlers) GitWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload models.GitPushPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid push payload")
		return
	}

	if len(payload.ChangedFiles) == 0 {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "no changes"})
		return
	}

	outcomes := h.outbound.ProcessPush(r.Context(), &payload)

	h.wsHub.SendSyncEvent("outbound", outcomes)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"outcomes": outcomes,
	})
}

// CreateHandler creates a ticket in the project named by the path
func (h *APIHandlers) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectKey := strings.Trim(strings.TrimPrefix(r.URL.Path, "/create/"), "/")
	if projectKey == "" {
		h.writeError(w, http.StatusBadRequest, "project key required")
		return
	}

	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid creation payload")
		return
	}

	result, err := h.creator.CreateTicket(r.Context(), projectKey, req)
	if err != nil {
		h.logger.Error().Err(err).Str("project", projectKey).Msg("Ticket creation failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.wsHub.SendSyncEvent("created", result)
	h.writeJSON(w, http.StatusCreated, result)
}

// SyncQueueHandler reconciles the offline creation queue on demand
func (h *APIHandlers) SyncQueueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.creator.Reconcile(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Queue reconciliation failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.wsHub.SendSyncEvent("reconciled", result)
	h.writeJSON(w, http.StatusOK, result)
}

// BackfillHandler imports every remote issue matching a JQL query
func (h *APIHandlers) BackfillHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		JQL string `json:"jql"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid backfill payload")
		return
	}
	if req.JQL == "" {
		h.writeError(w, http.StatusBadRequest, "jql required")
		return
	}

	applied, err := h.inbound.Backfill(r.Context(), req.JQL)
	if err != nil {
		h.logger.Error().Err(err).Str("jql", req.JQL).Msg("Backfill failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.wsHub.SendSyncEvent("backfill", map[string]int{"applied": applied})
	h.writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

// WorklogHandler appends or lists worklog entries for one issue
func (h *APIHandlers) WorklogHandler(w http.ResponseWriter, r *http.Request) {
	issueID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/worklog/"), "/")
	if issueID == "" {
		h.writeError(w, http.StatusBadRequest, "issue id required")
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handleAppendWorklog(w, r, issueID)
	case http.MethodGet:
		h.handleListWorklogs(w, issueID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandlers) handleAppendWorklog(w http.ResponseWriter, r *http.Request, issueID string) {
	var req models.WorklogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid worklog payload")
		return
	}
	if req.Author == "" || req.Time == "" {
		h.writeError(w, http.StatusBadRequest, "author and time required")
		return
	}

	entry, err := h.worklogs.Append(r.Context(), issueID, req)
	if err != nil {
		if common.IsNoSeconds(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("issue", issueID).Msg("Worklog append failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.wsHub.SendSyncEvent("worklog", entry)
	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *APIHandlers) handleListWorklogs(w http.ResponseWriter, issueID string) {
	entries, err := h.worklogs.Worklogs(issueID)
	if err != nil {
		h.logger.Error().Err(err).Str("issue", issueID).Msg("Worklog lookup failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []models.WorklogEntry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"issue":    issueID,
		"worklogs": entries,
	})
}

// TimesheetHandler reports one user's logged time, filtered by
// date, week, or month query parameters
func (h *APIHandlers) TimesheetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	author := strings.Trim(strings.TrimPrefix(r.URL.Path, "/timesheet/"), "/")
	if author == "" {
		h.writeError(w, http.StatusBadRequest, "author required")
		return
	}

	filter := models.TimesheetFilter{
		Date:  r.URL.Query().Get("date"),
		Week:  r.URL.Query().Get("week"),
		Month: r.URL.Query().Get("month"),
	}

	entries, total, err := h.worklogs.Timesheet(author, filter)
	if err != nil {
		h.logger.Error().Err(err).Str("author", author).Msg("Timesheet lookup failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []models.WorklogEntry{}
	}

	h.writeJSON(w, http.StatusOK, TimesheetResponse{
		Author:       author,
		Entries:      entries,
		TotalSeconds: total,
		Total:        h.worklogs.FormatTotal(total),
	})
}

func (h *APIHandlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
