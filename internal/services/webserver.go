package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tract-sync/internal/common"
	"tract-sync/internal/handlers"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/middleware"

	"github.com/ternarybob/arbor"
)

// webServer provides the HTTP surface: webhooks in, creation and
// worklog endpoints, and monitoring.
type webServer struct {
	config  *common.Config
	server  *http.Server
	logger  arbor.ILogger
	wsHub   *handlers.WebSocketHub
	running bool
}

// NewWebServer wires the handler set onto a mux with the logging and
// CORS middleware chain.
func NewWebServer(cfg *common.Config, store interfaces.Store, inbound interfaces.Inbound, outbound interfaces.Outbound, creator interfaces.Creator, worklogs interfaces.Worklogs, logger arbor.ILogger) (interfaces.WebService, error) {
	mux := http.NewServeMux()

	wsHub := handlers.NewWebSocketHub(logger)
	apiHandlers := handlers.NewAPIHandlers(cfg, store, inbound, outbound, creator, worklogs, wsHub, logger)

	ws := &webServer{
		config: cfg,
		logger: logger,
		wsHub:  wsHub,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Sync.Port),
			Handler: mux,
		},
	}

	logMiddleware := middleware.Logging(logger)
	corsMiddleware := middleware.CORS

	mux.HandleFunc("/health", logMiddleware(corsMiddleware(apiHandlers.HealthHandler)))
	mux.HandleFunc("/status", logMiddleware(corsMiddleware(apiHandlers.StatusHandler)))
	mux.HandleFunc("/config", logMiddleware(corsMiddleware(apiHandlers.ConfigHandler)))
	mux.HandleFunc("/webhook/jira", logMiddleware(corsMiddleware(apiHandlers.JiraWebhookHandler)))
	mux.HandleFunc("/webhook/git", logMiddleware(corsMiddleware(apiHandlers.GitWebhookHandler)))
	mux.HandleFunc("/create/", logMiddleware(corsMiddleware(apiHandlers.CreateHandler)))
	mux.HandleFunc("/sync/queue", logMiddleware(corsMiddleware(apiHandlers.SyncQueueHandler)))
	mux.HandleFunc("/sync/backfill", logMiddleware(corsMiddleware(apiHandlers.BackfillHandler)))
	mux.HandleFunc("/worklog/", logMiddleware(corsMiddleware(apiHandlers.WorklogHandler)))
	mux.HandleFunc("/timesheet/", logMiddleware(corsMiddleware(apiHandlers.TimesheetHandler)))

	mux.HandleFunc("/ws", corsMiddleware(wsHub.WebSocketHandler))

	return ws, nil
}

// Start starts the web server
func (ws *webServer) Start(ctx context.Context) error {
	ws.running = true

	go func() {
		ws.logger.Info().Int("port", ws.config.Sync.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// IsRunning returns true if the web server is running
func (ws *webServer) IsRunning() bool {
	return ws.running
}
