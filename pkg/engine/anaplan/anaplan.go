// Package anaplan adapts the Anaplan REST API v2 to the planning engine
// interface.
//
// Anaplan's vocabulary maps onto the neutral model as follows: a workspace
// id here is the composite "workspaceId:modelId" pair, lists become
// dimensions, module line items with a formula become non-editable, and
// the asynchronous export choreography (create export, run task, poll,
// download chunks) is collapsed into the synchronous ModuleData call.
// Filtering and pagination happen client-side over the exported rows: the
// export API has no server-side row selection.
package anaplan

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gridplan/gridplan/pkg/models"
)

// Engine is the Anaplan adapter. Schemas are cached per composite
// workspace id for the lifetime of a connection: Anaplan model structure
// changes far less often than its cell data, and the schema fan-out is
// one request per module.
type Engine struct {
	client *client
	log    zerolog.Logger

	mu      sync.Mutex
	schemas map[string]*models.WorkspaceSchema
}

func New(authURL, baseURL string, log zerolog.Logger) *Engine {
	return &Engine{
		client:  newClient(authURL, baseURL, nil),
		log:     log.With().Str("engine", "anaplan").Logger(),
		schemas: map[string]*models.WorkspaceSchema{},
	}
}

func (e *Engine) ID() string   { return "anaplan" }
func (e *Engine) Name() string { return "Anaplan" }
func (e *Engine) Type() string { return "anaplan" }

// Connect establishes credentials. A token (config or ANAPLAN_TOKEN) is
// used directly; otherwise email and password (config or ANAPLAN_EMAIL /
// ANAPLAN_PASSWORD) are exchanged for a token. Reconnecting drops the
// schema cache.
func (e *Engine) Connect(ctx context.Context, config map[string]string) error {
	token := firstNonEmpty(config["token"], os.Getenv("ANAPLAN_TOKEN"))
	email := firstNonEmpty(config["email"], os.Getenv("ANAPLAN_EMAIL"))
	password := firstNonEmpty(config["password"], os.Getenv("ANAPLAN_PASSWORD"))

	switch {
	case token != "":
		e.client.setToken(token)
	case email != "" && password != "":
		if err := e.client.authenticate(ctx, email, password); err != nil {
			return err
		}
	default:
		return &models.ValidationError{
			Message: "anaplan connect requires a token or email and password",
		}
	}

	e.mu.Lock()
	e.schemas = map[string]*models.WorkspaceSchema{}
	e.mu.Unlock()
	e.log.Info().Msg("connected")
	return nil
}

func (e *Engine) Disconnect(ctx context.Context) error {
	e.client.setToken("")
	e.mu.Lock()
	e.schemas = map[string]*models.WorkspaceSchema{}
	e.mu.Unlock()
	return nil
}

func (e *Engine) IsConnected() bool { return e.client.connected() }

func (e *Engine) Workspaces(ctx context.Context) ([]models.WorkspaceInfo, error) {
	if err := e.ensureConnected(); err != nil {
		return nil, err
	}
	var resp struct {
		Workspaces []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"workspaces"`
	}
	if err := e.client.get(ctx, "/workspaces", &resp); err != nil {
		return nil, err
	}
	out := make([]models.WorkspaceInfo, 0, len(resp.Workspaces))
	for _, ws := range resp.Workspaces {
		out = append(out, models.WorkspaceInfo{ID: ws.ID, Name: ws.Name})
	}
	return out, nil
}

// Models lists the models within one Anaplan workspace. This level of
// nesting is specific to Anaplan; the UI combines a workspace and model
// choice into the composite workspace id used everywhere else.
func (e *Engine) Models(ctx context.Context, workspaceID string) ([]models.ModelInfo, error) {
	if err := e.ensureConnected(); err != nil {
		return nil, err
	}
	var resp struct {
		Models []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := e.client.get(ctx, "/workspaces/"+workspaceID+"/models", &resp); err != nil {
		return nil, err
	}
	out := make([]models.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, models.ModelInfo{ID: m.ID, Name: m.Name})
	}
	return out, nil
}

func (e *Engine) Schema(ctx context.Context, workspaceID string) (*models.WorkspaceSchema, error) {
	if err := e.ensureConnected(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	cached := e.schemas[workspaceID]
	e.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	base, err := modelPath(workspaceID)
	if err != nil {
		return nil, err
	}

	var lists struct {
		Lists []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Parent struct {
				ID string `json:"id"`
			} `json:"parent"`
		} `json:"lists"`
	}
	if err := e.client.get(ctx, base+"/lists", &lists); err != nil {
		return nil, err
	}
	dimensions := make([]models.Dimension, 0, len(lists.Lists))
	for _, l := range lists.Lists {
		dimensions = append(dimensions, models.Dimension{
			ID:                l.ID,
			Name:              l.Name,
			ParentDimensionID: l.Parent.ID,
		})
	}

	var mods struct {
		Modules []struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			Dimensions []struct {
				ID string `json:"id"`
			} `json:"dimensions"`
		} `json:"modules"`
	}
	if err := e.client.get(ctx, base+"/modules", &mods); err != nil {
		return nil, err
	}
	modules := make([]models.ModuleMeta, 0, len(mods.Modules))
	for _, m := range mods.Modules {
		var lis struct {
			Items []struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Format  string `json:"format"`
				Formula string `json:"formula"`
			} `json:"items"`
		}
		if err := e.client.get(ctx, base+"/modules/"+m.ID+"/lineItems", &lis); err != nil {
			return nil, err
		}
		mod := models.ModuleMeta{ID: m.ID, Name: m.Name}
		for _, d := range m.Dimensions {
			mod.DimensionIDs = append(mod.DimensionIDs, d.ID)
		}
		for _, li := range lis.Items {
			mod.LineItems = append(mod.LineItems, models.LineItemMeta{
				ID:     li.ID,
				Name:   li.Name,
				Format: mapFormat(li.Format),
				// A formula-backed line item is derived upstream and
				// rejects direct writes.
				Editable: li.Formula == "",
			})
		}
		modules = append(modules, mod)
	}

	var vers struct {
		Versions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"versions"`
	}
	if err := e.client.get(ctx, base+"/versions", &vers); err != nil {
		return nil, err
	}
	versions := make([]models.DimensionItem, 0, len(vers.Versions))
	for _, v := range vers.Versions {
		versions = append(versions, models.DimensionItem{ID: v.ID, Name: v.Name})
	}

	schema := &models.WorkspaceSchema{Dimensions: dimensions, Modules: modules, Versions: versions}
	e.mu.Lock()
	e.schemas[workspaceID] = schema
	e.mu.Unlock()
	e.log.Debug().Str("workspace", workspaceID).
		Int("dimensions", len(dimensions)).Int("modules", len(modules)).
		Msg("schema loaded")
	return schema, nil
}

func (e *Engine) DimensionItems(ctx context.Context, workspaceID, dimensionID string, parent *models.ParentFilter) ([]models.DimensionItem, error) {
	if err := e.ensureConnected(); err != nil {
		return nil, err
	}
	base, err := modelPath(workspaceID)
	if err != nil {
		return nil, err
	}
	var resp struct {
		ListItems []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Parent struct {
				ID string `json:"id"`
			} `json:"parent"`
		} `json:"listItems"`
	}
	if err := e.client.get(ctx, base+"/lists/"+dimensionID+"/items", &resp); err != nil {
		return nil, err
	}
	items := make([]models.DimensionItem, 0, len(resp.ListItems))
	for _, it := range resp.ListItems {
		items = append(items, models.DimensionItem{
			ID:           it.ID,
			Name:         it.Name,
			ParentItemID: it.Parent.ID,
		})
	}
	if parent == nil || len(parent.ItemIDs) == 0 {
		return items, nil
	}
	want := map[string]bool{}
	for _, id := range parent.ItemIDs {
		want[id] = true
	}
	restricted := items[:0:len(items)]
	for _, it := range items {
		if it.ParentItemID != "" && want[it.ParentItemID] {
			restricted = append(restricted, it)
		}
	}
	return restricted, nil
}

// LineItemValues extracts the distinct text values of a line item through
// a full module export. Anaplan has no distinct-values endpoint, so this
// shares the ModuleData path with an unbounded page.
func (e *Engine) LineItemValues(ctx context.Context, workspaceID, moduleID, lineItemID, version string) ([]string, error) {
	data, err := e.ModuleData(ctx, workspaceID, moduleID, models.ModuleDataRequest{
		Version:  version,
		Page:     1,
		PageSize: int(^uint(0) >> 1),
	})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, row := range data.Rows {
		if s, ok := row.Cells[lineItemID].(string); ok && strings.TrimSpace(s) != "" {
			seen[s] = true
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func (e *Engine) ensureConnected() error {
	if !e.client.connected() {
		return &models.ValidationError{Message: "engine \"anaplan\" is not connected"}
	}
	return nil
}

// modelPath validates a composite "workspaceId:modelId" id and returns the
// API path prefix for the model.
func modelPath(workspaceID string) (string, error) {
	ws, model, ok := strings.Cut(workspaceID, ":")
	if !ok || ws == "" || model == "" {
		return "", &models.InvalidIdentifierError{
			Message: "invalid workspace id \"" + workspaceID + "\": expected \"workspaceId:modelId\"",
		}
	}
	return "/workspaces/" + ws + "/models/" + model, nil
}

// mapFormat normalizes Anaplan's free-form format strings.
func mapFormat(format string) models.CellFormat {
	f := strings.ToLower(format)
	switch {
	case strings.Contains(f, "currency"), strings.Contains(f, "money"):
		return models.FormatCurrency
	case strings.Contains(f, "percent"):
		return models.FormatPercentage
	case strings.Contains(f, "number"), strings.Contains(f, "decimal"), strings.Contains(f, "integer"):
		return models.FormatNumber
	}
	return models.FormatText
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
