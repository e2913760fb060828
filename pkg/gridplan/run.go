package gridplan

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Run starts the HTTP server.
//
// # API Endpoints
//
// Engines:
//
//	GET  /api/engines                                 - List engines and connection state
//	POST /api/engines/{engineId}/connect              - Connect an engine
//	POST /api/engines/{engineId}/disconnect           - Disconnect an engine
//
// Workspaces and schema:
//
//	GET  /api/engines/{engineId}/workspaces                          - List workspaces
//	GET  /api/engines/{engineId}/workspaces/{workspaceId}/models     - List models (Anaplan)
//	GET  /api/engines/{engineId}/workspaces/{workspaceId}/schema     - Workspace schema
//
// Dimensions and line items:
//
//	GET  /api/engines/{engineId}/workspaces/{workspaceId}/dimensions/{dimensionId}/items
//	GET  /api/engines/{engineId}/workspaces/{workspaceId}/modules/{moduleId}/lineitems/{lineItemId}/values
//
// Module data:
//
//	GET  /api/engines/{engineId}/workspaces/{workspaceId}/modules/{moduleId}/data
//	POST /api/engines/{engineId}/workspaces/{workspaceId}/modules/{moduleId}/cells
//
// Saved connections:
//
//	GET    /api/connections
//	POST   /api/connections
//	DELETE /api/connections/{id}
//
// Events:
//
//	GET  /ws/events    - WebSocket feed of cell-write events
//
// Health:
//
//	GET  /health, /api/health
//
// The server shuts down gracefully on context cancellation, allowing up to
// 5 seconds for in-flight requests.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.config.ServerPort),
		Handler: a.Router(),
	}

	go a.hub.run(ctx)

	a.log.Info().Str("addr", server.Addr).Msg("starting gridplan server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Router builds the full route table. Exposed separately so tests can
// drive the handlers without binding a port.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/engines", a.handleListEngines).Methods("GET")
	api.HandleFunc("/engines/{engineId}/connect", a.handleConnect).Methods("POST")
	api.HandleFunc("/engines/{engineId}/disconnect", a.handleDisconnect).Methods("POST")

	api.HandleFunc("/engines/{engineId}/workspaces", a.handleListWorkspaces).Methods("GET")
	api.HandleFunc("/engines/{engineId}/workspaces/{workspaceId}/models", a.handleListModels).Methods("GET")
	api.HandleFunc("/engines/{engineId}/workspaces/{workspaceId}/schema", a.handleGetSchema).Methods("GET")
	api.HandleFunc("/engines/{engineId}/workspaces/{workspaceId}/dimensions/{dimensionId}/items",
		a.handleDimensionItems).Methods("GET")
	api.HandleFunc("/engines/{engineId}/workspaces/{workspaceId}/modules/{moduleId}/lineitems/{lineItemId}/values",
		a.handleLineItemValues).Methods("GET")
	api.HandleFunc("/engines/{engineId}/workspaces/{workspaceId}/modules/{moduleId}/data",
		a.handleModuleData).Methods("GET")
	api.HandleFunc("/engines/{engineId}/workspaces/{workspaceId}/modules/{moduleId}/cells",
		a.handleWriteCells).Methods("POST")

	api.HandleFunc("/connections", a.handleListConnections).Methods("GET")
	api.HandleFunc("/connections", a.handleSaveConnection).Methods("POST")
	api.HandleFunc("/connections/{id}", a.handleDeleteConnection).Methods("DELETE")

	router.HandleFunc("/ws/events", a.handleEvents)
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	// Preflight requests match no route above; answer them directly.
	router.PathPrefix("/").Methods("OPTIONS").Handler(corsMiddleware(http.NotFoundHandler()))

	return router
}

// corsMiddleware mirrors the permissive CORS policy the grid UI expects:
// any origin, any method, any header.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
