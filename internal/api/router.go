package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/rampart-ai/rampart/internal/auth"
	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/events"
	"github.com/rampart-ai/rampart/internal/response"
	"github.com/rampart-ai/rampart/internal/storage"
	"github.com/rampart-ai/rampart/internal/store"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Store        *store.Store // nil when running without Postgres
	Orchestrator *engine.Orchestrator
	Auth         auth.Authenticator
	EventLogger  *events.Logger
	Responses    *response.Manager
	Reader       *storage.Reader // nil if ClickHouse unavailable
	Logger       *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Validation endpoint (auth required via Bearer rk_ token)
	mux.HandleFunc("POST /v1/validate", deps.authMiddleware(deps.handleValidate))

	// Client CRUD (no auth; dashboard auth added later)
	mux.HandleFunc("POST /api/rampart/clients", deps.handleCreateClient)
	mux.HandleFunc("GET /api/rampart/clients", deps.handleListClients)
	mux.HandleFunc("GET /api/rampart/clients/{client_id}", deps.handleGetClient)
	mux.HandleFunc("PATCH /api/rampart/clients/{client_id}", deps.handleUpdateClient)
	mux.HandleFunc("DELETE /api/rampart/clients/{client_id}", deps.handleDeleteClient)
	mux.HandleFunc("POST /api/rampart/clients/{client_id}/rotate-key", deps.handleRotateKey)
	mux.HandleFunc("PUT /api/rampart/clients/{client_id}/detector-config", deps.handleUpdateDetectorConfig)

	// Events, metrics, alerts (no auth)
	mux.HandleFunc("GET /api/rampart/events", deps.handleListEvents)
	mux.HandleFunc("GET /api/rampart/events/{event_id}", deps.handleGetEvent)
	mux.HandleFunc("GET /api/rampart/metrics", deps.handleGetMetrics)
	mux.HandleFunc("GET /api/rampart/alerts", deps.handleListAlerts)

	// Progressive response administration (no auth)
	mux.HandleFunc("GET /api/rampart/progressive/{identifier}", deps.handleIdentifierStatus)
	mux.HandleFunc("POST /api/rampart/progressive/reset", deps.handleResetIdentifier)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
