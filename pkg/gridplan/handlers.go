package gridplan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/gridplan/gridplan/pkg/engine"
	"github.com/gridplan/gridplan/pkg/models"
)

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"engines": len(a.registry.List()),
	})
}

func (a *App) handleListEngines(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.registry.List())
}

func (a *App) handleConnect(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}

	var body models.ConnectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	if err := eng.Connect(r.Context(), body.Config()); err != nil {
		a.respondEngineError(w, err)
		return
	}
	a.log.Info().Str("engine", eng.ID()).Msg("engine connected")
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *App) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}
	if err := eng.Disconnect(r.Context()); err != nil {
		a.respondEngineError(w, err)
		return
	}
	a.log.Info().Str("engine", eng.ID()).Msg("engine disconnected")
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *App) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}
	workspaces, err := eng.Workspaces(r.Context())
	if err != nil {
		a.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, workspaces)
}

// modelLister is the optional extra nesting level some engines expose:
// models within a workspace. Only the Anaplan adapter implements it.
type modelLister interface {
	Models(ctx context.Context, workspaceID string) ([]models.ModelInfo, error)
}

func (a *App) handleListModels(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}
	lister, ok := eng.(modelLister)
	if !ok {
		respondError(w, http.StatusNotFound, "engine does not expose models")
		return
	}
	modelList, err := lister.Models(r.Context(), mux.Vars(r)["workspaceId"])
	if err != nil {
		a.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, modelList)
}

func (a *App) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}
	schema, err := eng.Schema(r.Context(), mux.Vars(r)["workspaceId"])
	if err != nil {
		a.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, schema)
}

func (a *App) handleDimensionItems(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	var parent *models.ParentFilter
	parentDim := r.URL.Query().Get("parentDimensionId")
	parentItems := r.URL.Query().Get("parentItemIds")
	if parentDim != "" && parentItems != "" {
		parent = &models.ParentFilter{
			DimensionID: parentDim,
			ItemIDs:     strings.Split(parentItems, ","),
		}
	}

	items, err := eng.DimensionItems(r.Context(), vars["workspaceId"], vars["dimensionId"], parent)
	if err != nil {
		a.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *App) handleLineItemValues(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	values, err := eng.LineItemValues(r.Context(),
		vars["workspaceId"], vars["moduleId"], vars["lineItemId"],
		r.URL.Query().Get("version"))
	if err != nil {
		a.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, values)
}

func (a *App) handleModuleData(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	req, err := moduleDataRequest(r)
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	data, err := eng.ModuleData(r.Context(), vars["workspaceId"], vars["moduleId"], req)
	if err != nil {
		a.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (a *App) handleWriteCells(w http.ResponseWriter, r *http.Request) {
	eng, ok := a.engineFor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	var body models.WriteCellsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := eng.WriteCells(r.Context(), vars["workspaceId"], vars["moduleId"], body.Version, body.Cells)
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	if result.Success {
		a.hub.broadcast(cellEvent{
			EngineID:    eng.ID(),
			WorkspaceID: vars["workspaceId"],
			ModuleID:    vars["moduleId"],
			Version:     body.Version,
			Cells:       len(body.Cells),
		})
	}
	respondJSON(w, http.StatusOK, result)
}

// engineFor resolves the engine named in the route, writing the error
// response itself when the id is unknown.
func (a *App) engineFor(w http.ResponseWriter, r *http.Request) (engine.Engine, bool) {
	eng, err := a.registry.Get(mux.Vars(r)["engineId"])
	if err != nil {
		a.respondEngineError(w, err)
		return nil, false
	}
	return eng, true
}

// moduleDataRequest decodes the data-route query parameters. The compound
// filter parameters travel as JSON-encoded query values; a parameter that
// fails to parse rejects the request rather than silently dropping the
// filter.
func moduleDataRequest(r *http.Request) (models.ModuleDataRequest, error) {
	q := r.URL.Query()
	req := models.ModuleDataRequest{
		Version:    q.Get("version"),
		LineItemID: q.Get("lineItemId"),
	}

	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Filters); err != nil {
			return req, &models.InvalidIdentifierError{Message: "malformed filters parameter"}
		}
	}
	if raw := q.Get("lineItemFilters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.LineItemFilters); err != nil {
			return req, &models.InvalidIdentifierError{Message: "malformed lineItemFilters parameter"}
		}
	}
	if raw := q.Get("numericFilters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.NumericFilters); err != nil {
			return req, &models.InvalidIdentifierError{Message: "malformed numericFilters parameter"}
		}
	}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return req, &models.InvalidIdentifierError{Message: "malformed page parameter"}
		}
		req.Page = page
	}
	if raw := q.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return req, &models.InvalidIdentifierError{Message: "malformed pageSize parameter"}
		}
		req.PageSize = size
	}
	return req, nil
}

// respondEngineError maps the structured engine error kinds onto HTTP
// statuses. Anything unrecognized is a 500.
func (a *App) respondEngineError(w http.ResponseWriter, err error) {
	var (
		notFound    *models.NotFoundError
		notEditable *models.NotEditableError
		invalid     *models.InvalidIdentifierError
		upstream    *models.UpstreamError
		validation  *models.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &notEditable):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invalid):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upstream):
		a.log.Error().Err(err).Msg("upstream engine failure")
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		a.log.Error().Err(err).Msg("unhandled engine error")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
