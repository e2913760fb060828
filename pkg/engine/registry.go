package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gridplan/gridplan/pkg/models"
)

// Registry holds the registered engines, keyed by engine id. Engines are
// registered once at startup; lookups happen on every request.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: map[string]Engine{}}
}

// Register adds an engine. Registering two engines with the same id is a
// programming error and is rejected.
func (r *Registry) Register(e Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[e.ID()]; ok {
		return fmt.Errorf("engine %q is already registered", e.ID())
	}
	r.engines[e.ID()] = e
	return nil
}

// Get returns the engine with the given id, or a NotFoundError.
func (r *Registry) Get(id string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "engine", ID: id}
	}
	return e, nil
}

// List reports every registered engine and its connection state, ordered
// by id for stable output.
func (r *Registry) List() []models.EngineInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]models.EngineInfo, 0, len(r.engines))
	for _, e := range r.engines {
		infos = append(infos, models.EngineInfo{
			ID:        e.ID(),
			Name:      e.Name(),
			Type:      e.Type(),
			Connected: e.IsConnected(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
