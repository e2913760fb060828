package gridplan

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gridplan/gridplan/pkg/models"
)

// connectionStore keeps named engine credentials in memory so the UI can
// reconnect without re-entering tokens. Nothing is persisted across
// restarts.
type connectionStore struct {
	mu    sync.RWMutex
	saved map[string]models.SavedConnection
}

func newConnectionStore() *connectionStore {
	return &connectionStore{saved: map[string]models.SavedConnection{}}
}

func (s *connectionStore) list() []models.SavedConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SavedConnection, 0, len(s.saved))
	for _, c := range s.saved {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

func (s *connectionStore) add(req models.SaveConnectionRequest) models.SavedConnection {
	conn := models.SavedConnection{
		ID:        uuid.New().String(),
		Name:      req.Name,
		EngineID:  req.EngineID,
		Token:     req.Token,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Lock()
	s.saved[conn.ID] = conn
	s.mu.Unlock()
	return conn
}

func (s *connectionStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.saved[id]; !ok {
		return false
	}
	delete(s.saved, id)
	return true
}

func (a *App) handleListConnections(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.connections.list())
}

func (a *App) handleSaveConnection(w http.ResponseWriter, r *http.Request) {
	var req models.SaveConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Name == "" || req.EngineID == "" {
		respondError(w, http.StatusBadRequest, "name and engineId are required")
		return
	}
	if _, err := a.registry.Get(req.EngineID); err != nil {
		a.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a.connections.add(req))
}

func (a *App) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if !a.connections.remove(mux.Vars(r)["id"]) {
		respondError(w, http.StatusNotFound, "Connection not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
